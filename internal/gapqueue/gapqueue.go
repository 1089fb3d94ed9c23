// Package gapqueue implements the Gap Candidate priority heap from spec
// §3/§4.4: a mutex-guarded max-heap of partially sieved windows ordered by
// descending survivor count, feeding the Chinese-mode Fermat-drain threads.
//
// Grounded on container/heap's documented Example (the standard library's
// own priority-queue pattern), which every pack repo that needs ordered
// work items (e.g. guiperry-HASHER's worker scheduling) follows rather than
// hand-rolling a binary heap.
package gapqueue

import (
	"container/heap"
	"math/big"
	"sync"
)

// Candidate is a partially sieved window: produced by the segmented sieve
// driver, consumed by the CPU or GPU Fermat tester, destroyed after test.
type Candidate struct {
	Nonce     uint32
	Target    uint64
	GapStart  *big.Int
	Survivors []uint32

	seq int // insertion order, for FIFO tie-breaking
}

// innerHeap is a container/heap.Interface ordered by descending survivor
// count (most-promising window first), breaking ties by insertion order so
// equally-promising windows drain FIFO.
type innerHeap []*Candidate

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	li, lj := len(h[i].Survivors), len(h[j].Survivors)
	if li != lj {
		return li > lj
	}
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *innerHeap) Push(x any) {
	*h = append(*h, x.(*Candidate))
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the shared, mutex-guarded gap-candidate heap.
type Queue struct {
	mu   sync.Mutex
	h    innerHeap
	next int
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{h: make(innerHeap, 0)}
	heap.Init(&q.h)
	return q
}

// Push inserts a candidate, assigning it the next insertion sequence number
// for tie-breaking.
func (q *Queue) Push(c *Candidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c.seq = q.next
	q.next++
	heap.Push(&q.h, c)
}

// Pop removes and returns the candidate with the most surviving offsets,
// or nil if the queue is empty.
func (q *Queue) Pop() *Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Candidate)
}

// Len reports the number of queued candidates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Drain empties the queue, discarding every queued candidate. Used by
// Chinese mode's reset() when the orchestrator rotates to new work (spec
// §4.7's header-update step).
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.h = q.h[:0]
}
