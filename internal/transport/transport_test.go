package transport

import (
	"net"
	"testing"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

func testGroup(t *testing.T, port int) Endpoint {
	t.Helper()
	return Endpoint{IP: net.IPv4(239, 5, 5, 5), Port: port}
}

func TestSendRecvRoundTrip(t *testing.T) {
	group := testGroup(t, 23921)
	tr, err := Join(group)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer tr.Close()

	want := wire.Message{
		Tag:    wire.Phase1A,
		From:   1,
		Slot:   3,
		Ballot: ballot.Number{Round: 1, ProposerID: 1},
	}
	if err := tr.Send(want, group); err != nil {
		t.Fatalf("Send: %v", err)
	}

	tr.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := tr.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRecvTimeout(t *testing.T) {
	group := testGroup(t, 23922)
	tr, err := Join(group)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer tr.Close()

	tr.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, err = tr.Recv()
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected IsTimeout(err) to be true, got %v", err)
	}
}

func TestMalformedDatagramDroppedSilently(t *testing.T) {
	group := testGroup(t, 23923)
	tr, err := Join(group)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer tr.Close()

	sender, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer sender.Close()

	// A single unknown-tag byte: should be dropped, not surfaced as an error.
	if _, err := sender.WriteToUDP([]byte{255}, &net.UDPAddr{IP: group.IP, Port: group.Port}); err != nil {
		t.Fatalf("write malformed datagram: %v", err)
	}

	good := wire.Message{Tag: wire.Decision, From: 2, Slot: 1}
	if err := tr.Send(good, group); err != nil {
		t.Fatalf("Send: %v", err)
	}

	tr.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := tr.Recv()
	if err != nil {
		t.Fatalf("Recv should skip the malformed datagram and return the good one: %v", err)
	}
	if got != good {
		t.Fatalf("got %+v, want %+v", got, good)
	}
	if tr.StatsSnapshot().DecodeErrors == 0 {
		t.Fatal("expected the decode-error counter to be incremented")
	}
}
