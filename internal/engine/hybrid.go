package engine

import (
	"context"
	"math/big"

	"github.com/go-primegap/miner/internal/gpufermat"
	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/internal/pow"
	"github.com/go-primegap/miner/internal/segsieve"
)

// hybridBatcher lazily constructs the single shared GPU Work List, built
// once per Engine regardless of thread count (see hybridProducerWorker).
func (e *Engine) hybridBatcher() *gpufermat.Batcher {
	e.hybridOnce.Do(func() {
		e.hybridB = gpufermat.NewBatcher(e.cfg.GPURunner, e.cfg.GPUBatchSize, e.cfg.GPUTestsPerItem)
	})
	return e.hybridB
}

// hybridProducerWorker feeds the shared GPU batch queue from a sequential
// CRT-presieved sieve, one window at a time, in strict order — required
// by spec §4.6's cross-item chaining invariant (an item's first-found
// pseudoprime becomes the next item's start), which only holds when items
// are appended in the order their windows occur.
//
// original_source's HybridSieve dedicates exactly one sieve-feed thread and
// one GPU-results thread regardless of configured --threads (a single GPU
// device has one kernel queue to feed); this port keeps that 1:1 structure,
// so only the last worker slot in the pool runs this loop — the rest sit
// idle, preserving the fixed-pool-size contract spec §4.7 describes
// without fragmenting the one GPU queue across goroutines. See DESIGN.md.
func (e *Engine) hybridProducerWorker(ctx context.Context, id int) {
	if id != e.cfg.Threads-1 {
		select {
		case <-ctx.Done():
		case <-e.stopCh:
		}
		return
	}

	sv := segsieve.NewChinese(e.table, e.cfg.CRTSet)
	batcher := e.hybridBatcher()
	nonce := uint32(0)
	var prevItem *gpufermat.WorkItem

	for {
		if ctxDone(ctx) {
			return
		}
		select {
		case <-e.stopCh:
			return
		default:
		}

		h, epoch := e.headerSnapshot()
		h.Nonce = nonce
		hash := e.mineHash(h)
		hashInt := new(big.Int).SetBytes(hash[:])
		sv.Reset(hashInt, e.cfg.Shift, h.Nonce)
		minLen := gpufermat.MinLen(sv.WindowStart(), e.cfg.DifficultyFraction)

		for !e.stale(epoch) {
			survivors, windowStart := sv.Step()
			offsets := make([]uint32, len(survivors))
			lowMod := new(big.Int).SetUint64(1 << 32)
			for i, b := range survivors {
				v := new(big.Int).Add(windowStart, new(big.Int).SetUint64(uint64(b)))
				offsets[i] = uint32(new(big.Int).Mod(v, lowMod).Uint64())
			}
			item := &gpufermat.WorkItem{
				Offsets: offsets,
				Len:     len(offsets),
				Start:   windowStart,
			}
			if prevItem != nil {
				prevItem.Next = item
			}
			prevItem = item
			batcher.Append(item)

			if batcher.Full() {
				base := new(big.Int).Rsh(windowStart, 32)
				touched, err := batcher.Drain(base)
				if err != nil {
					logx.WarnOnce("hybrid-drain", "engine: gpu drain failed: %v", err)
					continue
				}
				e.processHybridItems(touched, minLen, h, hash)
			}
		}

		nonce += uint32(e.cfg.Threads)
	}
}

// hybridDrainWorker is idle: in this port a single goroutine both feeds and
// drains the GPU batch queue (hybridProducerWorker calls processHybridItems
// inline once a batch fills), matching original_source's dedicated
// gpu_results_thread conceptually folding into the feed loop rather than
// running as an independent consumer with its own wake-up condition. Worker
// slots reserved for Fermat-drain threads under Hybrid mode park here.
func (e *Engine) hybridDrainWorker(ctx context.Context, id int) {
	select {
	case <-ctx.Done():
	case <-e.stopCh:
	}
}

// processHybridItems applies spec §4.6's valid/skippable item resolution to
// a batch of touched Work List items.
func (e *Engine) processHybridItems(items []*gpufermat.WorkItem, minLen *big.Int, h *header.Header, hash [32]byte) {
	for _, it := range items {
		if it.Valid(minLen) {
			pw := buildPoW(h, hash, it.Start)
			if pow.Valid(pw) {
				e.submit(pw)
			}
			continue
		}
		_ = it.Skippable(minLen) // explicit drop; nothing further to do
	}
}
