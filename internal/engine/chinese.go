package engine

import (
	"context"
	"math/big"
	"runtime"
	"sync/atomic"

	"github.com/go-primegap/miner/internal/pow"
	"github.com/go-primegap/miner/internal/segsieve"
)

// chineseProducerWorker implements the non-Fermat-drain worker role of
// spec §4.7's Chinese mode: sieve window after window, pushing each Gap
// Candidate onto the shared heap for a Fermat-drain thread to consume.
func (e *Engine) chineseProducerWorker(ctx context.Context, id int) {
	sv := segsieve.NewChinese(e.table, e.cfg.CRTSet)
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
		sv.Reset(hashInt, e.cfg.Shift, h.Nonce)

		stop := func() bool { return e.stale(epoch) }
		for sv.Next(e.queue, stop) {
		}

		nonce += uint32(e.cfg.Threads)
	}
}

// fermatDrainWorker implements spec §4.7's "first fermat_threads worker
// threads ... run the Fermat-drain loop that pops from the shared heap and
// calls §4.5": pop the most-promising queued window, Fermat-test its
// survivors, and recover + submit a candidate when the window turns out
// entirely composite. Grounded on original_source's ChineseSieve::run_fermat,
// which busy-polls the heap with a yield when it is momentarily empty
// rather than blocking on a condition variable (producers push
// continuously, so the empty case is transient).
func (e *Engine) fermatDrainWorker(ctx context.Context, id int) {
	for {
		if ctxDone(ctx) {
			return
		}
		select {
		case <-e.stopCh:
			return
		default:
		}

		c := e.queue.Pop()
		if c == nil {
			runtime.Gosched()
			continue
		}

		addr := func(b uint32) *big.Int {
			return new(big.Int).Add(c.GapStart, new(big.Int).SetUint64(uint64(b)))
		}
		atomic.AddUint64(&e.candidateCounter, 1)
		found, tested := scanSurvivors(c.Survivors, addr)
		atomic.AddUint64(&e.fermatCounter, uint64(tested))
		if found {
			continue
		}

		p := candidateFromEmptyWindow(c.GapStart)
		h, _ := e.headerSnapshot()
		h.Nonce = c.Nonce
		hash := h.Hash()
		pw := buildPoW(h, hash, p)
		if !pow.Valid(pw) {
			continue
		}
		e.submit(pw)
	}
}
