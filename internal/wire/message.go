// Package wire defines the Paxos message taxonomy and the binary codec
// that serializes it onto UDP datagrams.
package wire

import (
	"fmt"

	"github.com/nbro/multi-paxos/internal/ballot"
)

// Tag identifies the kind of a Message. Decode rejects unknown tags with
// ErrUnknownTag, and the transport drops such datagrams silently.
type Tag byte

const (
	// Propose carries a client's submitted value to the proposer group.
	Propose Tag = iota + 1
	// Phase1A is a proposer's prepare request to the acceptor group.
	Phase1A
	// Phase1B is an acceptor's promise (or ballot-preemption NACK) reply.
	Phase1B
	// Phase2A is a proposer's accept request to the acceptor group.
	Phase2A
	// Phase2B is an acceptor's accepted (or NACK) reply.
	Phase2B
	// Decision announces a chosen value to the learner group.
	Decision
	// CatchupReq asks peer learners for everything decided above a slot.
	CatchupReq
	// CatchupResp answers a CatchupReq with one decided slot.
	CatchupResp
)

func (t Tag) String() string {
	switch t {
	case Propose:
		return "PROPOSE"
	case Phase1A:
		return "PHASE1A"
	case Phase1B:
		return "PHASE1B"
	case Phase2A:
		return "PHASE2A"
	case Phase2B:
		return "PHASE2B"
	case Decision:
		return "DECISION"
	case CatchupReq:
		return "CATCHUP_REQ"
	case CatchupResp:
		return "CATCHUP_RESP"
	}
	return "UNKNOWN"
}

// Value is the opaque client payload, tagged with the identity of the
// client that submitted it. (ClientID, ClientSeq) is the dedup/emission
// key; Payload is the signed-integer value itself.
type Value struct {
	ClientID  ballot.RoleID
	ClientSeq uint64
	Payload   int64
}

func (v Value) String() string {
	return fmt.Sprintf("{client=%d seq=%d payload=%d}", v.ClientID, v.ClientSeq, v.Payload)
}

// NoSlot is used in CATCHUP_REQ to mean "I have nothing yet".
const NoSlot int64 = -1

// Message is the single tagged envelope multicast between roles. Only the
// fields relevant to Tag are meaningful; the rest are zero. One flat
// struct (one tag, unused fields left at their zero value) is used
// rather than a Go union type, since Go has no sum types and per-tag
// struct types would force type-switch boilerplate at every call site
// for no safety benefit here.
type Message struct {
	Tag  Tag
	From ballot.RoleID

	// PROPOSE, PHASE2A, DECISION, CATCHUP_RESP
	Value Value

	// Slot: every tag except PROPOSE and CATCHUP_REQ.
	// Ballot: PHASE1A, PHASE2A, PHASE2B.
	Slot   ballot.Slot
	Ballot ballot.Number

	// PHASE1B: the acceptor's current promise, what it had previously
	// accepted (if anything), and whether that acceptance is present.
	PromisedBallot    ballot.Number
	AcceptedBallot    ballot.Number
	HasAcceptedValue  bool
	AcceptedValue     Value

	// PHASE2B: OK true means accepted at Ballot; OK false is a NACK
	// carrying the acceptor's current PromisedBallot instead.
	OK bool

	// CATCHUP_REQ: the requester's highest known slot, NoSlot if none.
	HighestKnownSlot int64

	// CATCHUP_RESP: which learner asked for this, so uninterested peers
	// can cheaply ignore a response multicast to the whole group.
	ToLearner ballot.RoleID
}

func (m Message) String() string {
	return fmt.Sprintf("%s{from=%d slot=%d ballot=%s}", m.Tag, m.From, m.Slot, m.Ballot)
}
