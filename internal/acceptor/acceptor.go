// Package acceptor implements the passive per-slot promise/accept state
// machine of basic Paxos. An Acceptor never initiates a message; it only
// reacts to PHASE1A and PHASE2A.
package acceptor

import (
	"log"
	"sync"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

// slotState is one slot's promise/accept record. Slots are lazily
// materialized: a slot with no entry behaves as if all its fields are at
// their zero value.
type slotState struct {
	promisedBallot ballot.Number
	acceptedBallot ballot.Number
	acceptedValue  wire.Value
	hasAccepted    bool
}

// Acceptor holds the sparse per-slot state for one acceptor role
// instance. All methods are safe for concurrent use, though a single
// cooperative run loop is expected to be the only caller.
type Acceptor struct {
	mu     sync.Mutex
	id     ballot.RoleID
	slots  map[ballot.Slot]*slotState
	logger *log.Logger
}

// New creates an Acceptor for role instance id.
func New(id ballot.RoleID, logger *log.Logger) *Acceptor {
	return &Acceptor{
		id:     id,
		slots:  make(map[ballot.Slot]*slotState),
		logger: logger,
	}
}

func (a *Acceptor) slot(s ballot.Slot) *slotState {
	st, ok := a.slots[s]
	if !ok {
		st = &slotState{}
		a.slots[s] = st
	}
	return st
}

// HandlePhase1A promises m.Ballot for m.Slot if it is strictly higher
// than the current promise, otherwise NACKs by returning the acceptor's
// current (higher) promised ballot.
func (a *Acceptor) HandlePhase1A(m wire.Message) wire.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.slot(m.Slot)
	if m.Ballot.Greater(st.promisedBallot) {
		st.promisedBallot = m.Ballot
		a.logger.Printf("slot %d: promised ballot %s", m.Slot, m.Ballot)
	} else {
		a.logger.Printf("slot %d: refused ballot %s, already promised %s", m.Slot, m.Ballot, st.promisedBallot)
	}
	return wire.Message{
		Tag:              wire.Phase1B,
		From:             a.id,
		Slot:             m.Slot,
		PromisedBallot:   st.promisedBallot,
		AcceptedBallot:   st.acceptedBallot,
		HasAcceptedValue: st.hasAccepted,
		AcceptedValue:    st.acceptedValue,
	}
}

// HandlePhase2A accepts m.Value at m.Ballot for m.Slot if the ballot is
// at least the current promise, otherwise NACKs by returning the current
// (higher) promised ballot and OK=false.
func (a *Acceptor) HandlePhase2A(m wire.Message) wire.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.slot(m.Slot)
	if m.Ballot.GreaterOrEqual(st.promisedBallot) {
		st.promisedBallot = m.Ballot
		st.acceptedBallot = m.Ballot
		st.acceptedValue = m.Value
		st.hasAccepted = true
		a.logger.Printf("slot %d: accepted %s at ballot %s", m.Slot, m.Value, m.Ballot)
		return wire.Message{
			Tag:    wire.Phase2B,
			From:   a.id,
			Slot:   m.Slot,
			Ballot: m.Ballot,
			OK:     true,
		}
	}
	a.logger.Printf("slot %d: refused accept at ballot %s, promised %s", m.Slot, m.Ballot, st.promisedBallot)
	return wire.Message{
		Tag:            wire.Phase2B,
		From:           a.id,
		Slot:           m.Slot,
		Ballot:         m.Ballot,
		OK:             false,
		PromisedBallot: st.promisedBallot,
	}
}

// Handle dispatches m to the appropriate handler and returns the reply to
// send back to the sender, or false if m is not meant for an acceptor.
func (a *Acceptor) Handle(m wire.Message) (wire.Message, bool) {
	switch m.Tag {
	case wire.Phase1A:
		return a.HandlePhase1A(m), true
	case wire.Phase2A:
		return a.HandlePhase2A(m), true
	default:
		return wire.Message{}, false
	}
}
