// Package shareproc implements the share processor of spec §4.8: a single
// background worker fed by a bounded queue, serializing accepted PoWs out
// to an external submit callback and discarding anything that goes stale
// before it is sent.
//
// The distilled spec describes the bounded queue in condvar terms ("both
// sides block when full/empty via condition variables"); this port uses a
// buffered channel instead, Go's idiomatic equivalent — blocking send on a
// full channel and blocking receive on an empty one give the same
// backpressure without hand-rolled locking.
//
// Grounded on server/main.go's accept-loop goroutine shape (a dedicated
// background loop reading off a channel until told to stop) and on
// client/main.go's submit-then-log pattern for a single external RPC call.
package shareproc

import (
	"context"
	"math/big"
	"sync"

	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/internal/pow"
)

// Submitter is the narrow external-collaborator view shareproc needs: hand
// a fully patched header to the pool and learn whether it was accepted.
// Declared here, at the consumer, so internal/worksource's HTTPSource and
// KCPSource can satisfy it structurally without shareproc importing
// worksource.
type Submitter interface {
	Submit(ctx context.Context, h *header.Header) (bool, error)
}

const defaultQueueSize = 64

// Processor implements spec §4.8's process/update_header/background-submit
// contract. The zero value is not usable; construct with New.
type Processor struct {
	submit Submitter

	mu      sync.Mutex
	current *header.Header

	queue  chan *header.Header
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Processor with the given queue depth (0 selects a default
// of 64) bound to submit for the background submission loop.
func New(submit Submitter, queueSize int) *Processor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Processor{
		submit: submit,
		queue:  make(chan *header.Header, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Process implements spec §4.8's process(pow): if pow's hash matches the
// currently active header, a cloned header with (nonce, shift, adder)
// patched in is enqueued for submission and Process returns false (the
// caller should keep sieving). Otherwise the share is stale — discarded,
// and Process returns true so the caller aborts its current window.
func (p *Processor) Process(pw *pow.PoW) (stale bool) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()

	if cur == nil {
		return true
	}
	curHash := cur.Hash()
	if curHash != pw.Hash {
		return true
	}

	patched := cur.Clone()
	patched.Nonce = pw.Nonce
	patched.Shift = pw.Shift
	patched.Adder = leBytes(pw.Adder)

	select {
	case p.queue <- patched:
	case <-p.stopCh:
	}
	return false
}

// UpdateHeader implements spec §4.8's update_header(h): atomically replace
// the active header and discard every currently queued share — they were
// built against a header that is no longer active.
func (p *Processor) UpdateHeader(h *header.Header) {
	p.mu.Lock()
	p.current = h.Clone()
	p.mu.Unlock()

	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

// Run drains the queue, invoking the submit callback for each header and
// logging the outcome, until ctx is canceled or Stop is called. It blocks;
// callers run it in its own goroutine alongside Engine.Run.
func (p *Processor) Run(ctx context.Context) error {
	p.wg.Add(1)
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case h := <-p.queue:
			p.submitOne(ctx, h)
		}
	}
}

func (p *Processor) submitOne(ctx context.Context, h *header.Header) {
	accepted, err := p.submit.Submit(ctx, h)
	if err != nil {
		logx.WarnOnce("shareproc-submit", "shareproc: submit failed: %v", err)
		return
	}
	if accepted {
		logx.Printf("shareproc: share accepted, nonce=%d shift=%d", h.Nonce, h.Shift)
	} else {
		logx.Printf("shareproc: share rejected by pool, nonce=%d", h.Nonce)
	}
}

// Stop ends the background loop and waits for it to return.
func (p *Processor) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// leBytes returns x's magnitude as a little-endian byte slice, matching
// header.Header.Adder's wire layout. big.Int.Bytes is big-endian, so the
// result is the reverse of that.
func leBytes(x *big.Int) []byte {
	be := x.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le
}
