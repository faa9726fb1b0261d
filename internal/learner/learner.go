// Package learner assembles the totally-ordered replicated log from
// DECISION/CATCHUP_RESP traffic and emits it in slot order.
package learner

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

// Learner maintains a sparse map of decided slots and a cursor over the
// next slot to emit, writing each slot's value exactly once to out in
// ascending order, one payload per line with no other content. Decided
// slots that arrive out of order are buffered until the gap in front of
// them closes.
type Learner struct {
	mu         sync.Mutex
	id         ballot.RoleID
	decided    map[ballot.Slot]wire.Value
	nextToEmit ballot.Slot
	out        io.Writer
	logger     *log.Logger
}

// New creates a Learner for role instance id that writes emitted values
// to out.
func New(id ballot.RoleID, out io.Writer, logger *log.Logger) *Learner {
	return &Learner{
		id:      id,
		decided: make(map[ballot.Slot]wire.Value),
		out:     out,
		logger:  logger,
	}
}

// NextToEmit reports the smallest slot not yet emitted.
func (l *Learner) NextToEmit() ballot.Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextToEmit
}

// StartupRequest builds the CATCHUP_REQ this learner should multicast on
// startup: its own id and the highest slot it has already emitted
// (nextToEmit-1), or wire.NoSlot if it has emitted nothing yet. Buffered
// slots above a gap are not counted.
func (l *Learner) StartupRequest() wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	highest := int64(wire.NoSlot)
	if l.nextToEmit > 0 {
		highest = int64(l.nextToEmit) - 1
	}
	return wire.Message{
		Tag:              wire.CatchupReq,
		From:             l.id,
		HighestKnownSlot: highest,
	}
}

// RecordDecision handles a DECISION or CATCHUP_RESP for slot s carrying
// value v: the two are treated identically. Recording is idempotent —
// re-recording an already-known slot is a no-op — so duplicate delivery
// from either source never emits a slot twice.
func (l *Learner) RecordDecision(s ballot.Slot, v wire.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, known := l.decided[s]; known {
		return
	}
	l.decided[s] = v
	l.drain()
}

// drain emits every contiguous decided slot starting at nextToEmit. Must
// be called with l.mu held.
func (l *Learner) drain() {
	for {
		v, ok := l.decided[l.nextToEmit]
		if !ok {
			return
		}
		fmt.Fprintln(l.out, v.Payload)
		l.logger.Printf("emitted slot %d: %s", l.nextToEmit, v)
		l.nextToEmit++
	}
}

// HandleCatchupReq answers a peer's CATCHUP_REQ with one CATCHUP_RESP per
// slot this learner knows about strictly above the requester's highest
// known slot. Each response is addressed to the requester via ToLearner
// so uninterested peers can ignore it cheaply even though it is
// multicast to the whole learner group.
func (l *Learner) HandleCatchupReq(requester ballot.RoleID, highestKnown int64) []wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	var resps []wire.Message
	for s, v := range l.decided {
		if int64(s) > highestKnown {
			resps = append(resps, wire.Message{
				Tag:       wire.CatchupResp,
				From:      l.id,
				ToLearner: requester,
				Slot:      s,
				Value:     v,
			})
		}
	}
	return resps
}

// Handle dispatches an incoming message to the appropriate learner logic.
// For CATCHUP_REQ it returns the responses to send back; for
// DECISION/CATCHUP_RESP it records the decision and returns nil.
func (l *Learner) Handle(m wire.Message) []wire.Message {
	switch m.Tag {
	case wire.Decision:
		l.RecordDecision(m.Slot, m.Value)
		return nil
	case wire.CatchupReq:
		if m.From == l.id {
			// Never answer our own catch-up request: answering
			// ourselves is a no-op that would only waste a multicast.
			return nil
		}
		return l.HandleCatchupReq(m.From, m.HighestKnownSlot)
	case wire.CatchupResp:
		if m.ToLearner != l.id {
			return nil
		}
		l.RecordDecision(m.Slot, m.Value)
		return nil
	default:
		return nil
	}
}
