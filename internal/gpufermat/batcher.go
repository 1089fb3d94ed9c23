package gpufermat

import (
	"math/big"
	"sync"

	"github.com/go-primegap/miner/internal/errs"
)

// Batcher implements spec §4.6's Work List: a producer appends items as
// sieve windows are folded in; when the accumulated candidate count fills
// a batch, a consumer pops one offset per item (up to nTests slots per
// item), dispatches it through a KernelRunner, and walks results marking
// each tested offset prime/composite on its owning item.
type Batcher struct {
	mu       sync.Mutex
	runner   KernelRunner
	batchSize int
	nTests   int

	items   []*WorkItem
	pending int // candidates accumulated since the last dispatch
}

// NewBatcher allocates a Batcher dispatching through runner, batching up
// to batchSize candidates per kernel call and testing up to nTests
// offsets per item per batch.
func NewBatcher(runner KernelRunner, batchSize, nTests int) *Batcher {
	return &Batcher{runner: runner, batchSize: batchSize, nTests: nTests}
}

// Append adds a new work item to the list, typically the tail of a sieve
// window's surviving-offset set.
func (b *Batcher) Append(item *WorkItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	b.pending += len(item.Offsets)
}

// Full reports whether the accumulated candidate count has reached the
// configured batch size (spec's "when cur_len == len").
func (b *Batcher) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending >= b.batchSize
}

// Drain dispatches one kernel batch: pops up to nTests untested offsets
// per item (oldest items first), runs them through the KernelRunner, and
// marks each tested offset prime/composite on its owning item. Returns
// the items touched this round.
func (b *Batcher) Drain(base *big.Int) ([]*WorkItem, error) {
	b.mu.Lock()
	var low []uint32
	var owners []*WorkItem

	remaining := b.items[:0]
	for _, it := range b.items {
		taken := 0
		for it.Index >= 0 && it.Index < len(it.Offsets) && taken < b.nTests && len(low) < b.batchSize {
			low = append(low, it.Offsets[it.Index])
			owners = append(owners, it)
			it.Index++
			taken++
		}
		if it.Index < len(it.Offsets) {
			remaining = append(remaining, it)
		}
	}
	b.items = remaining
	b.mu.Unlock()

	if len(low) == 0 {
		return nil, nil
	}

	results, err := b.runner.RunBatch(base, low)
	if err != nil {
		return nil, &errs.GPUInitError{Msg: err.Error()}
	}
	if len(results) != len(low) {
		return nil, &errs.InvariantViolation{Msg: "gpufermat: kernel returned wrong result count"}
	}

	shiftedBase := new(big.Int).Lsh(base, 32)
	touched := make([]*WorkItem, 0, len(owners))
	seen := map[*WorkItem]bool{}
	for i, owner := range owners {
		if results[i] && owner.End == nil {
			// Reconstruct the full-width candidate value from the shared
			// PrimeBase and this slot's low 32-bit limb, the same way
			// RunBatch's caller reconstructed the candidate it tested.
			owner.End = new(big.Int).Or(shiftedBase, new(big.Int).SetUint64(uint64(low[i])))
			owner.FirstEnd = true
			if owner.Next != nil {
				owner.Next.Start = owner.End
			}
			owner.Index = -1
		}
		if !seen[owner] {
			seen[owner] = true
			touched = append(touched, owner)
		}
	}

	b.mu.Lock()
	b.pending = 0
	for _, it := range b.items {
		b.pending += len(it.Offsets) - it.Index
	}
	b.mu.Unlock()

	return touched, nil
}
