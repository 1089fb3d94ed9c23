package shareproc

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/pow"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	received []*header.Header
	accept   bool
	err      error
}

func (f *fakeSubmitter) Submit(ctx context.Context, h *header.Header) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, h)
	return f.accept, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func testHeader() *header.Header {
	return &header.Header{Version: 1, Adder: []byte{}}
}

func TestProcessMatchingHashEnqueuesAndReturnsNotStale(t *testing.T) {
	p := New(&fakeSubmitter{accept: true}, 4)
	h := testHeader()
	p.UpdateHeader(h)

	pw := &pow.PoW{Hash: h.Hash(), Nonce: 7, Shift: 12, Adder: big.NewInt(300)}
	if stale := p.Process(pw); stale {
		t.Fatalf("expected Process to report not-stale for a matching header")
	}

	select {
	case patched := <-p.queue:
		if patched.Nonce != 7 || patched.Shift != 12 {
			t.Fatalf("patched header = %+v, want nonce=7 shift=12", patched)
		}
	default:
		t.Fatalf("expected a patched header to be queued")
	}
}

func TestProcessStaleHashReturnsStale(t *testing.T) {
	p := New(&fakeSubmitter{}, 4)
	h := testHeader()
	p.UpdateHeader(h)

	pw := &pow.PoW{Hash: [32]byte{0xFF}, Nonce: 1, Adder: big.NewInt(1)}
	if stale := p.Process(pw); !stale {
		t.Fatalf("expected Process to report stale for a mismatched header hash")
	}
	select {
	case <-p.queue:
		t.Fatalf("expected nothing queued for a stale share")
	default:
	}
}

func TestProcessWithNoActiveHeaderIsStale(t *testing.T) {
	p := New(&fakeSubmitter{}, 4)
	pw := &pow.PoW{Hash: [32]byte{1}, Adder: big.NewInt(1)}
	if stale := p.Process(pw); !stale {
		t.Fatalf("expected Process to report stale when no header has been set yet")
	}
}

func TestUpdateHeaderDrainsQueuedShares(t *testing.T) {
	p := New(&fakeSubmitter{accept: true}, 4)
	h := testHeader()
	p.UpdateHeader(h)

	pw := &pow.PoW{Hash: h.Hash(), Adder: big.NewInt(5)}
	if stale := p.Process(pw); stale {
		t.Fatalf("expected first Process call not to be stale")
	}
	if len(p.queue) != 1 {
		t.Fatalf("expected one queued share before UpdateHeader, got %d", len(p.queue))
	}

	p.UpdateHeader(testHeader())
	if len(p.queue) != 0 {
		t.Fatalf("expected UpdateHeader to drain the queue, got %d queued", len(p.queue))
	}
}

func TestRunSubmitsQueuedSharesAndStopsOnContext(t *testing.T) {
	sub := &fakeSubmitter{accept: true}
	p := New(sub, 4)
	h := testHeader()
	p.UpdateHeader(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	pw := &pow.PoW{Hash: h.Hash(), Nonce: 3, Adder: big.NewInt(9)}
	p.Process(pw)

	deadline := time.After(time.Second)
	for sub.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for Run to submit the queued share")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}

func TestLeBytesReversesBigEndian(t *testing.T) {
	x := big.NewInt(0x0102)
	got := leBytes(x)
	want := []byte{0x02, 0x01}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("leBytes(0x0102) = %v, want %v", got, want)
	}
}
