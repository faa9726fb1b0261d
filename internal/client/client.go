// Package client implements the value-submission side of the protocol:
// one PROPOSE per input value, retransmitted on silence until a
// matching decision is observed.
package client

import (
	"log"
	"sync"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/wire"
)

// Backoff constants for retransmission. RetryInterval and MaxRetries are
// exported since a deployment may reasonably want to tune them.
const (
	RetryInterval = 2 * time.Second
	multTimeout   = 2
	maxTimeout    = 2 * time.Minute

	// MaxRetries bounds retransmission: rather than retry forever, a
	// client gives up and logs after this many retransmissions.
	MaxRetries = 10
)

// submission tracks one value this client is waiting to see decided.
type submission struct {
	value    wire.Value
	lastSent time.Time
	timeout  time.Duration
	retries  int
}

// Client assigns sequence numbers to submitted values, multicasts
// PROPOSE, and retransmits unacknowledged submissions with exponential
// backoff. The caller (cmd/client) drives the actual input stream and
// feeds Tick from its own event loop.
type Client struct {
	mu      sync.Mutex
	id      ballot.RoleID
	nextSeq uint64
	pending map[uint64]*submission
	logger  *log.Logger
}

// New creates a Client for role instance id.
func New(id ballot.RoleID, logger *log.Logger) *Client {
	return &Client{
		id:      id,
		pending: make(map[uint64]*submission),
		logger:  logger,
	}
}

// Submit assigns the next client_seq to payload and returns the PROPOSE
// message to multicast.
func (c *Client) Submit(payload int64, now time.Time) wire.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq
	c.nextSeq++
	v := wire.Value{ClientID: c.id, ClientSeq: seq, Payload: payload}
	c.pending[seq] = &submission{value: v, lastSent: now, timeout: RetryInterval}
	return wire.Message{Tag: wire.Propose, From: c.id, Value: v}
}

// Pending reports how many submissions are still awaiting a decision.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// HandleDecision observes a DECISION multicast to the learner group. If
// it carries a value this client submitted, the submission is considered
// acknowledged and retransmission for it stops.
func (c *Client) HandleDecision(m wire.Message) {
	if m.Tag != wire.Decision || m.Value.ClientID != c.id {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, m.Value.ClientSeq)
}

// Tick retransmits every submission that has gone unacknowledged past its
// current backoff, reusing the same client_seq and doubling the backoff
// up to maxTimeout. A submission that has been retransmitted MaxRetries
// times is abandoned and logged rather than retried forever.
func (c *Client) Tick(now time.Time) []wire.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []wire.Message
	for seq, s := range c.pending {
		if now.Sub(s.lastSent) < s.timeout {
			continue
		}
		if s.retries >= MaxRetries {
			c.logger.Printf("giving up on %s after %d retries", s.value, s.retries)
			delete(c.pending, seq)
			continue
		}
		out = append(out, wire.Message{Tag: wire.Propose, From: c.id, Value: s.value})
		s.lastSent = now
		s.retries++
		s.timeout *= multTimeout
		if s.timeout > maxTimeout {
			s.timeout = maxTimeout
		}
		c.logger.Printf("retransmitting %s (attempt %d)", s.value, s.retries)
	}
	return out
}
