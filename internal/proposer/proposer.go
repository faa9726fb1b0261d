// Package proposer drives each slot of the replicated log through
// two-phase Paxos: the pending-value FIFO, slot assignment under a
// pipelining window, Phase 1/Phase 2, and preemption/retry handling all
// live here.
package proposer

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

// DefaultWindow is the pipelining window W used when a deployment does
// not otherwise configure one: the number of slots beyond the highest
// known decision that may be started concurrently.
const DefaultWindow ballot.Slot = 8

// DefaultRetryInterval is the baseline fixed retry period used in place
// of exponential backoff.
const DefaultRetryInterval = 200 * time.Millisecond

// phase is which half of basic Paxos a slot is currently driving.
type phase int

const (
	phase1 phase = iota
	phase2
	decided
)

// dedupKey is the (client_id, client_seq) pair incoming PROPOSE messages
// are deduplicated on.
type dedupKey struct {
	clientID  ballot.RoleID
	clientSeq uint64
}

// slotState is one slot's in-flight Paxos round. Materialized only while
// the slot is active; deleted once decided.
type slotState struct {
	phase            phase
	currentBallot    ballot.Number
	highestRoundUsed uint32
	pendingValue     wire.Value
	hasPendingValue  bool
	phase1Replies    map[ballot.RoleID]wire.Message
	phase2Replies    map[ballot.RoleID]bool
	timerSeq         uint64
}

// Proposer assigns client values to slots and drives each through
// Phase 1 and Phase 2 until decided or preempted. When a Phase 1 quorum
// surfaces a value some acceptor already accepted, that value overrides
// whatever this proposer was about to propose and the original value is
// returned to the pending queue for a later slot.
type Proposer struct {
	mu sync.Mutex

	id       ballot.RoleID
	majority int
	window   ballot.Slot

	nextSlot            ballot.Slot
	highestKnownDecided int64 // -1 (wire.NoSlot) until a slot has decided

	pending []wire.Value
	seen    map[dedupKey]bool

	slots  map[ballot.Slot]*slotState
	timers retryQueue

	retryInterval time.Duration
	rng           *rand.Rand
	logger        *log.Logger
}

// New creates a Proposer. window is the pipelining window W, coerced up
// to at least 1; retryInterval is the baseline retry period, jittered on
// each arm rather than grown exponentially.
func New(id ballot.RoleID, majority int, window ballot.Slot, retryInterval time.Duration, logger *log.Logger) *Proposer {
	if window < 1 {
		window = 1
	}
	return &Proposer{
		id:                  id,
		majority:            majority,
		window:              window,
		highestKnownDecided: wire.NoSlot,
		seen:                make(map[dedupKey]bool),
		slots:               make(map[ballot.Slot]*slotState),
		retryInterval:       retryInterval,
		rng:                 rand.New(rand.NewSource(int64(id))),
		logger:              logger,
	}
}

// NextFireAt reports when the earliest armed retry timer expires, so a
// caller's event loop can wait on the socket and this deadline together.
func (p *Proposer) NextFireAt() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timers.nextFireAt()
}

// Handle dispatches an incoming message and returns the messages (if any)
// the proposer must now multicast.
func (p *Proposer) Handle(m wire.Message, now time.Time) []wire.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m.Tag {
	case wire.Propose:
		return p.handlePropose(m.Value, now)
	case wire.Phase1B:
		return p.handlePhase1B(m, now)
	case wire.Phase2B:
		return p.handlePhase2B(m, now)
	default:
		return nil
	}
}

// Tick fires any retry timers due at or before now, restarting Phase 1
// for the corresponding slots, and returns the messages to multicast.
func (p *Proposer) Tick(now time.Time) []wire.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []wire.Message
	for _, e := range p.timers.popExpired(now) {
		st, ok := p.slots[e.slot]
		if !ok || st.phase == decided || st.timerSeq != e.seq {
			continue // stale: slot decided or moved on since this timer was armed
		}
		p.logger.Printf("slot %d: retry timeout, restarting phase 1", e.slot)
		out = append(out, p.restartPhase1(e.slot, st, st.currentBallot.Round, now))
	}
	return out
}

// handlePropose queues a newly proposed value (after dedup) and assigns
// it to a slot if the pipelining window allows.
func (p *Proposer) handlePropose(v wire.Value, now time.Time) []wire.Message {
	key := dedupKey{v.ClientID, v.ClientSeq}
	if p.seen[key] {
		return nil
	}
	p.seen[key] = true
	p.pending = append(p.pending, v)
	return p.tryStartSlots(now)
}

// tryStartSlots pops queued values into fresh slots while the pipelining
// window allows it.
func (p *Proposer) tryStartSlots(now time.Time) []wire.Message {
	var out []wire.Message
	for len(p.pending) > 0 && int64(p.nextSlot) <= p.highestKnownDecided+int64(p.window) {
		v := p.pending[0]
		p.pending = p.pending[1:]
		out = append(out, p.startSlot(p.nextSlot, v, now))
		p.nextSlot++
	}
	return out
}

// startSlot begins Phase 1 for a freshly assigned slot.
func (p *Proposer) startSlot(s ballot.Slot, v wire.Value, now time.Time) wire.Message {
	st := &slotState{
		pendingValue:    v,
		hasPendingValue: true,
		phase1Replies:   make(map[ballot.RoleID]wire.Message),
	}
	p.slots[s] = st
	return p.restartPhase1(s, st, 0, now)
}

// restartPhase1 (re)starts Phase 1 for slot s: mints a ballot strictly
// higher than every round seen so far (observedRound included), arms a
// fresh retry timer, and returns the PHASE1A to multicast. Used both for
// a slot's first Phase 1 and for preemption/timeout restarts.
func (p *Proposer) restartPhase1(s ballot.Slot, st *slotState, observedRound uint32, now time.Time) wire.Message {
	if observedRound > st.highestRoundUsed {
		st.highestRoundUsed = observedRound
	}
	st.currentBallot = ballot.Next(st.highestRoundUsed, p.id)
	st.highestRoundUsed = st.currentBallot.Round
	st.phase = phase1
	st.phase1Replies = make(map[ballot.RoleID]wire.Message)
	p.armTimer(s, st, now)
	return wire.Message{Tag: wire.Phase1A, From: p.id, Slot: s, Ballot: st.currentBallot}
}

// armTimer schedules the next retry for st with jitter, invalidating any
// previously armed timer for the same slot via the bumped sequence
// number.
func (p *Proposer) armTimer(s ballot.Slot, st *slotState, now time.Time) {
	st.timerSeq++
	jitter := time.Duration(p.rng.Int63n(int64(p.retryInterval) / 2))
	p.timers.push(s, st.timerSeq, now.Add(p.retryInterval+jitter))
}

// handlePhase1B accumulates PHASE1B replies for the current ballot. Once
// a majority has replied, it adopts the highest-ballot accepted value
// any acceptor reports (displacing this proposer's own pending value,
// which goes back to the queue) and advances the slot to Phase 2.
func (p *Proposer) handlePhase1B(m wire.Message, now time.Time) []wire.Message {
	st, ok := p.slots[m.Slot]
	if !ok || st.phase != phase1 {
		return nil
	}
	if m.PromisedBallot.Greater(st.currentBallot) {
		return []wire.Message{p.restartPhase1(m.Slot, st, m.PromisedBallot.Round, now)}
	}
	if !m.PromisedBallot.Equal(st.currentBallot) {
		return nil // stale reply for a round we've since moved past
	}
	st.phase1Replies[m.From] = m
	if len(st.phase1Replies) < p.majority {
		return nil
	}

	var best *wire.Message
	for i := range st.phase1Replies {
		r := st.phase1Replies[i]
		if r.HasAcceptedValue && (best == nil || r.AcceptedBallot.Greater(best.AcceptedBallot)) {
			rr := r
			best = &rr
		}
	}
	if best != nil {
		if st.hasPendingValue {
			p.pending = append([]wire.Value{st.pendingValue}, p.pending...)
		}
		st.pendingValue = best.AcceptedValue
		st.hasPendingValue = true
	}

	st.phase = phase2
	st.phase2Replies = make(map[ballot.RoleID]bool)
	p.armTimer(m.Slot, st, now)
	return []wire.Message{{Tag: wire.Phase2A, From: p.id, Slot: m.Slot, Ballot: st.currentBallot, Value: st.pendingValue}}
}

// handlePhase2B accumulates PHASE2B replies for the current ballot and,
// once a majority has accepted, marks the slot decided and broadcasts
// the decision.
func (p *Proposer) handlePhase2B(m wire.Message, now time.Time) []wire.Message {
	st, ok := p.slots[m.Slot]
	if !ok || st.phase != phase2 {
		return nil
	}
	if !m.OK {
		if m.PromisedBallot.Greater(st.currentBallot) {
			return []wire.Message{p.restartPhase1(m.Slot, st, m.PromisedBallot.Round, now)}
		}
		return nil
	}
	if !m.Ballot.Equal(st.currentBallot) {
		return nil // stale reply for a round we've since moved past
	}
	st.phase2Replies[m.From] = true
	if len(st.phase2Replies) < p.majority {
		return nil
	}

	st.phase = decided
	decidedValue := st.pendingValue
	if int64(m.Slot) > p.highestKnownDecided {
		p.highestKnownDecided = int64(m.Slot)
	}
	delete(p.slots, m.Slot) // release transient buffers
	p.logger.Printf("slot %d: decided %s", m.Slot, decidedValue)

	out := []wire.Message{{Tag: wire.Decision, From: p.id, Slot: m.Slot, Value: decidedValue}}
	out = append(out, p.tryStartSlots(now)...)
	return out
}
