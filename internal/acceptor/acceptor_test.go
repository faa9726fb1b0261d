package acceptor

import (
	"io"
	"log"
	"testing"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestPhase1APromisesHigherBallot(t *testing.T) {
	a := New(1, silentLogger())
	reply := a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, From: 2, Slot: 0, Ballot: ballot.Number{Round: 1, ProposerID: 2}})
	if reply.Tag != wire.Phase1B {
		t.Fatalf("expected PHASE1B reply, got %s", reply.Tag)
	}
	if reply.PromisedBallot != (ballot.Number{Round: 1, ProposerID: 2}) {
		t.Fatalf("expected promised ballot to be set, got %v", reply.PromisedBallot)
	}
	if reply.HasAcceptedValue {
		t.Fatal("expected no accepted value yet")
	}
}

func TestPhase1ARefusesLowerBallot(t *testing.T) {
	a := New(1, silentLogger())
	a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: ballot.Number{Round: 5, ProposerID: 1}})
	reply := a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: ballot.Number{Round: 2, ProposerID: 2}})
	if reply.PromisedBallot != (ballot.Number{Round: 5, ProposerID: 1}) {
		t.Fatalf("expected the NACK to carry the higher existing promise, got %v", reply.PromisedBallot)
	}
}

func TestPhase2AAcceptsAtOrAboveHighestPromise(t *testing.T) {
	a := New(1, silentLogger())
	b := ballot.Number{Round: 1, ProposerID: 1}
	a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: b})
	v := wire.Value{ClientID: 9, ClientSeq: 1, Payload: 42}
	reply := a.HandlePhase2A(wire.Message{Tag: wire.Phase2A, Slot: 0, Ballot: b, Value: v})
	if !reply.OK {
		t.Fatal("expected the accept to succeed at the promised ballot")
	}

	// A subsequent Phase 1A for the same slot must now see this accepted value.
	promiseReply := a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: ballot.Number{Round: 2, ProposerID: 2}})
	if !promiseReply.HasAcceptedValue || promiseReply.AcceptedValue != v {
		t.Fatalf("expected the promise reply to surface the previously accepted value, got %+v", promiseReply)
	}
	if promiseReply.AcceptedBallot != b {
		t.Fatalf("expected accepted ballot %v, got %v", b, promiseReply.AcceptedBallot)
	}
}

func TestPhase2ARefusesBallotBelowPromise(t *testing.T) {
	a := New(1, silentLogger())
	a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: ballot.Number{Round: 5, ProposerID: 1}})
	reply := a.HandlePhase2A(wire.Message{Tag: wire.Phase2A, Slot: 0, Ballot: ballot.Number{Round: 1, ProposerID: 2}, Value: wire.Value{Payload: 1}})
	if reply.OK {
		t.Fatal("expected the accept to be refused below the promised ballot")
	}
	if reply.PromisedBallot != (ballot.Number{Round: 5, ProposerID: 1}) {
		t.Fatalf("expected the NACK to carry the current promise, got %v", reply.PromisedBallot)
	}
}

func TestPhase2AAcceptsAtExactlyThePromisedBallot(t *testing.T) {
	a := New(1, silentLogger())
	b := ballot.Number{Round: 3, ProposerID: 1}
	a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: b})
	reply := a.HandlePhase2A(wire.Message{Tag: wire.Phase2A, Slot: 0, Ballot: b, Value: wire.Value{Payload: 1}})
	if !reply.OK {
		t.Fatal("accept at the exact promised ballot (>=) must succeed")
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	a := New(1, silentLogger())
	a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 0, Ballot: ballot.Number{Round: 9, ProposerID: 1}})
	reply := a.HandlePhase1A(wire.Message{Tag: wire.Phase1A, Slot: 1, Ballot: ballot.Number{Round: 1, ProposerID: 2}})
	if reply.PromisedBallot != (ballot.Number{Round: 1, ProposerID: 2}) {
		t.Fatalf("expected slot 1 to have independent state from slot 0, got %v", reply.PromisedBallot)
	}
}

func TestHandleDispatchesKnownTags(t *testing.T) {
	a := New(1, silentLogger())
	if _, ok := a.Handle(wire.Message{Tag: wire.Phase1A}); !ok {
		t.Fatal("expected Phase1A to be handled")
	}
	if _, ok := a.Handle(wire.Message{Tag: wire.Decision}); ok {
		t.Fatal("expected Decision to not be handled by an acceptor")
	}
}
