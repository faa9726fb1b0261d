package wire

import (
	"bytes"
	"testing"

	"github.com/nbro/multi-paxos/internal/ballot"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	encoded := Encode(m)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode(Encode(%v)) failed: %v", m, err)
	}
	return decoded
}

func TestRoundTripPropose(t *testing.T) {
	m := Message{
		Tag:  Propose,
		From: 7,
		Value: Value{
			ClientID:  7,
			ClientSeq: 42,
			Payload:   -100,
		},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripPhase1A(t *testing.T) {
	m := Message{
		Tag:    Phase1A,
		From:   2,
		Slot:   5,
		Ballot: ballot.Number{Round: 3, ProposerID: 2},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripPhase1BWithAcceptedValue(t *testing.T) {
	m := Message{
		Tag:              Phase1B,
		From:             1,
		Slot:             9,
		PromisedBallot:   ballot.Number{Round: 4, ProposerID: 3},
		AcceptedBallot:   ballot.Number{Round: 2, ProposerID: 1},
		HasAcceptedValue: true,
		AcceptedValue:    Value{ClientID: 9, ClientSeq: 1, Payload: 55},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripPhase1BWithoutAcceptedValue(t *testing.T) {
	m := Message{
		Tag:            Phase1B,
		From:           1,
		Slot:           9,
		PromisedBallot: ballot.Number{Round: 4, ProposerID: 3},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripPhase2ANack(t *testing.T) {
	m := Message{
		Tag:  Phase2B,
		From: 1,
		Slot: 1,
		Ballot: ballot.Number{
			Round:      1,
			ProposerID: 1,
		},
		OK:             false,
		PromisedBallot: ballot.Number{Round: 9, ProposerID: 2},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripDecision(t *testing.T) {
	m := Message{
		Tag:  Decision,
		From: 4,
		Slot: 100,
		Value: Value{
			ClientID:  1,
			ClientSeq: 2,
			Payload:   3,
		},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripCatchupReqEmpty(t *testing.T) {
	m := Message{
		Tag:              CatchupReq,
		From:              11,
		HighestKnownSlot:  NoSlot,
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestRoundTripCatchupResp(t *testing.T) {
	m := Message{
		Tag:       CatchupResp,
		From:      3,
		ToLearner: 11,
		Slot:      7,
		Value:     Value{ClientID: 5, ClientSeq: 8, Payload: -1},
	}
	got := roundTrip(t, m)
	if got != m {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := Message{Tag: Phase1A, From: 1, Slot: 2, Ballot: ballot.Number{Round: 1, ProposerID: 1}}
	a := Encode(m)
	b := Encode(m)
	if !bytes.Equal(a, b) {
		t.Fatal("Encode must be deterministic for equal messages")
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	data := Encode(Message{Tag: Phase1A, From: 1})
	data[0] = 255
	if _, err := Decode(data); err == nil {
		t.Fatal("expected an error decoding an unknown tag")
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := Encode(Message{Tag: Phase2A, From: 1, Slot: 1, Ballot: ballot.Number{Round: 1, ProposerID: 1}})
	if _, err := Decode(data[:len(data)-3]); err == nil {
		t.Fatal("expected an error decoding a truncated message")
	}
}
