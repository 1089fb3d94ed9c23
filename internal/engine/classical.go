package engine

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/go-primegap/miner/internal/pow"
	"github.com/go-primegap/miner/internal/segsieve"
)

// classicalWorker implements the no-CRT path of spec §4.7: sieve and
// Fermat-test are done inline by the same goroutine, window by window,
// with no shared heap involved (the heap only exists for Chinese/Hybrid
// mode's producer/consumer split).
func (e *Engine) classicalWorker(ctx context.Context, id int) {
	sv := segsieve.NewClassical(e.table, e.cfg.SieveSize)
	nonce := uint32(id)

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
		shifted := new(big.Int).Lsh(hashInt, e.cfg.Shift)
		sv.Reset(shifted)

		for !e.stale(epoch) {
			survivors, gapStart := sv.Step()
			addr := func(b uint32) *big.Int {
				return new(big.Int).Add(gapStart, big.NewInt(int64(2*b+1)))
			}
			atomic.AddUint64(&e.candidateCounter, 1)
			found, tested := scanSurvivors(survivors, addr)
			atomic.AddUint64(&e.fermatCounter, uint64(tested))
			if found {
				// A prime survived this window; boring, move on.
				continue
			}
			p := candidateFromEmptyWindow(gapStart)
			pw := buildPoW(h, hash, p)
			if !pow.Valid(pw) {
				continue
			}
			if e.submit(pw) {
				break
			}
		}

		nonce += uint32(e.cfg.Threads)
	}
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
