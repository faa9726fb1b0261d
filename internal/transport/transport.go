// Package transport implements the UDP/IP-multicast contract each role
// group relies on: unreliable, best-effort, whole-datagram multicast
// delivery with loopback support.
package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/nbro/multi-paxos/internal/wire"
)

// Endpoint names one role's multicast group: an IP address and port.
type Endpoint struct {
	IP   net.IP
	Port int
}

func (e Endpoint) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: e.Port}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// Stats is a snapshot of a Transport's drop/traffic counters.
type Stats struct {
	Sent         uint64
	Received     uint64
	DecodeErrors uint64
}

// Transport joins one role's multicast group to receive datagrams
// addressed to it, and can send to any group (its own or another role's).
// It makes no ordering or delivery guarantees beyond what the underlying
// UDP socket provides.
type Transport struct {
	group    Endpoint
	recvConn *net.UDPConn
	sendConn *net.UDPConn

	sent         uint64
	received     uint64
	decodeErrors uint64
}

// maxDatagram bounds a single read so one oversized or malformed
// datagram can't grow unboundedly; every encoded message comfortably
// fits within this budget anyway.
const maxDatagram = 65507

// Join binds to group's multicast address and joins the group so this
// process receives every datagram multicast to it, including its own
// loopback traffic and datagrams from any number of other subscribers.
// It also opens a separate, unbound socket for sending to arbitrary
// groups, keeping the receive path free of self-inflicted contention
// from outgoing writes.
func Join(group Endpoint) (*Transport, error) {
	recvConn, err := net.ListenMulticastUDP("udp4", nil, group.udpAddr())
	if err != nil {
		return nil, fmt.Errorf("transport: join multicast group %s: %w", group, err)
	}
	sendConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		recvConn.Close()
		return nil, fmt.Errorf("transport: open send socket: %w", err)
	}
	return &Transport{group: group, recvConn: recvConn, sendConn: sendConn}, nil
}

// Close releases both sockets.
func (t *Transport) Close() error {
	sendErr := t.sendConn.Close()
	recvErr := t.recvConn.Close()
	if recvErr != nil {
		return recvErr
	}
	return sendErr
}

// Send multicasts m to dest. Send failures are expected to be transient,
// so callers treat a non-nil error as advisory (log and continue), not
// fatal.
func (t *Transport) Send(m wire.Message, dest Endpoint) error {
	_, err := t.sendConn.WriteToUDP(wire.Encode(m), dest.udpAddr())
	if err != nil {
		return fmt.Errorf("transport: send to %s: %w", dest, err)
	}
	atomic.AddUint64(&t.sent, 1)
	return nil
}

// SetReadDeadline arms the next Recv to return a timeout error at t,
// letting a cooperative single-threaded run loop interleave socket
// polling with its own retry timers.
func (t *Transport) SetReadDeadline(deadline time.Time) error {
	return t.recvConn.SetReadDeadline(deadline)
}

// Recv blocks for the next datagram addressed to this group, decodes it,
// and returns it. Malformed datagrams are dropped silently and Recv
// retries internally; a read-deadline expiry surfaces as a net.Error
// with Timeout() true so callers can distinguish "nothing arrived yet"
// from a real socket failure.
func (t *Transport) Recv() (wire.Message, error) {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := t.recvConn.ReadFromUDP(buf)
		if err != nil {
			return wire.Message{}, err
		}
		if n == 0 {
			continue
		}
		atomic.AddUint64(&t.received, 1)
		m, decErr := wire.Decode(buf[:n])
		if decErr != nil {
			atomic.AddUint64(&t.decodeErrors, 1)
			continue
		}
		return m, nil
	}
}

// IsTimeout reports whether err is a Recv/SetReadDeadline timeout rather
// than a genuine socket error.
func IsTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// StatsSnapshot returns a point-in-time copy of this transport's
// counters.
func (t *Transport) StatsSnapshot() Stats {
	return Stats{
		Sent:         atomic.LoadUint64(&t.sent),
		Received:     atomic.LoadUint64(&t.received),
		DecodeErrors: atomic.LoadUint64(&t.decodeErrors),
	}
}
