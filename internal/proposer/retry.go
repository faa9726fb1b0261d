package proposer

import (
	"container/heap"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
)

// retryEntry is one armed retry timer for a slot. seq lets a stale timer
// be recognized and ignored after the slot has moved on to a new round or
// been decided, without having to search and remove it from the heap:
// cancellation is lazy invalidation rather than heap surgery.
type retryEntry struct {
	slot   ballot.Slot
	seq    uint64
	fireAt time.Time
	index  int
}

// retryQueue is a min-heap of retryEntry ordered by fireAt, giving the
// proposer's single-threaded loop an O(log n) "what fires next" query
// instead of scanning every active slot on every tick.
type retryQueue []*retryEntry

func (q retryQueue) Len() int { return len(q) }
func (q retryQueue) Less(i, j int) bool { return q[i].fireAt.Before(q[j].fireAt) }
func (q retryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *retryQueue) Push(x any) {
	e := x.(*retryEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *retryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// push arms a new retry timer.
func (q *retryQueue) push(slot ballot.Slot, seq uint64, fireAt time.Time) {
	heap.Push(q, &retryEntry{slot: slot, seq: seq, fireAt: fireAt})
}

// popExpired removes and returns every entry whose fireAt is at or before
// now, in fireAt order.
func (q *retryQueue) popExpired(now time.Time) []*retryEntry {
	var expired []*retryEntry
	for q.Len() > 0 && !(*q)[0].fireAt.After(now) {
		expired = append(expired, heap.Pop(q).(*retryEntry))
	}
	return expired
}

// nextFireAt reports when the earliest armed timer fires, and whether any
// timer is armed at all.
func (q retryQueue) nextFireAt() (time.Time, bool) {
	if len(q) == 0 {
		return time.Time{}, false
	}
	return q[0].fireAt, true
}
