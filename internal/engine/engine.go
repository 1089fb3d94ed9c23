// Package engine implements the worker orchestration of spec §4.7: a fixed
// pool of worker goroutines, each owning its own sieve driver and a private
// clone of the current header, hashing a fresh nonce into the [2^255,
// 2^256) window, running the configured sieve mode over it, and handing any
// found proof of work to a ShareSink. A background loop refetches the work
// unit and replaces the shared header every RefreshInterval (180s by
// default); it does not watch for new upstream blocks itself, and any other
// refresh goes through ReplaceHeader.
//
// Grounded on server/main.go's per-listener accept loop (`var wg
// sync.WaitGroup` plus a `loop := func(...) { defer wg.Done(); for {...} }`
// spawned with `go loop(lis)`), generalized here from one goroutine per
// network listener to one goroutine per mining worker, and on its
// mutex-guarded shared config reload for the header-epoch replacement
// discipline.
package engine

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-primegap/miner/internal/crtset"
	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/gapqueue"
	"github.com/go-primegap/miner/internal/gpufermat"
	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/internal/pow"
	"github.com/go-primegap/miner/internal/primetable"
)

// Mode selects the sieve algorithm each worker dispatches to, spec §4.7's
// "configured sieve (Classical, Chinese, or Hybrid GPU)". Represented as a
// sum type dispatched once per worker rather than by inheritance.
type Mode int

const (
	Classical Mode = iota
	Chinese
	Hybrid
)

func (m Mode) String() string {
	switch m {
	case Classical:
		return "classical"
	case Chinese:
		return "chinese"
	case Hybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ShareSink is the narrow interface engine needs from the share processor
// (spec §4.8). Declared here, at the consumer, rather than imported from
// internal/shareproc, so shareproc.Processor can satisfy it structurally
// without engine importing shareproc — see DESIGN.md's internal/engine
// section on this layering.
type ShareSink interface {
	Process(p *pow.PoW) (stale bool)
	UpdateHeader(h *header.Header)
}

// Source is the narrow external-collaborator view engine needs; satisfied
// by worksource.HTTPSource and worksource.KCPSource.
type Source interface {
	GetWork(ctx context.Context) (*header.Header, error)
}

// Config configures one Engine instance.
type Config struct {
	Threads       int
	FermatThreads int // Chinese/Hybrid mode only; must be < Threads
	Mode          Mode
	Shift         uint
	SieveSize     uint64 // Classical mode odd-only buffer size
	TablePrimes   int    // how many primes to sieve with (Classical mode)
	CRTSet        *crtset.Set
	GPURunner     gpufermat.KernelRunner // Hybrid mode; defaults to a CPURunner
	GPUBatchSize  int
	GPUTestsPerItem int
	DifficultyFraction float64 // min_len derivation, spec §4.6

	RefreshInterval time.Duration // default 180s
	MetricsInterval time.Duration // default 5s
}

func (c *Config) validate() error {
	if c.Threads <= 0 {
		return &errs.ConfigError{Msg: "engine: threads must be positive"}
	}
	if c.Mode == Chinese || c.Mode == Hybrid {
		if c.CRTSet == nil {
			return &errs.ConfigError{Msg: "engine: chinese/hybrid mode requires a loaded CRT Set"}
		}
		if c.FermatThreads < 0 || c.FermatThreads >= c.Threads {
			return &errs.ConfigError{Msg: "engine: fermat_threads must be in [0, threads)"}
		}
		primorialBits := c.CRTSet.Primorial.BitLen()
		if int(c.Shift) <= primorialBits {
			return &errs.InvariantViolation{Msg: "engine: shift too small for the loaded CRT Set's bit width"}
		}
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 180 * time.Second
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = 5 * time.Second
	}
	if c.GPUBatchSize == 0 {
		c.GPUBatchSize = 4096
	}
	if c.GPUTestsPerItem == 0 {
		c.GPUTestsPerItem = 4
	}
	if c.DifficultyFraction == 0 {
		c.DifficultyFraction = 1.0
	}
	if c.Mode == Hybrid && c.GPURunner == nil {
		c.GPURunner = gpufermat.NewCPURunner()
	}
	return nil
}

var (
	lowerHashBound = new(big.Int).Lsh(big.NewInt(1), 255)
	upperHashBound = new(big.Int).Lsh(big.NewInt(1), 256)
)

// Engine is the worker orchestrator: owns the shared header epoch, the
// worker pool, and (Chinese mode) the shared Gap Candidate heap.
type Engine struct {
	cfg   Config
	table *primetable.Table
	queue *gapqueue.Queue
	sink  ShareSink
	source Source

	mu      sync.Mutex
	current *header.Header
	epoch   uint64

	metrics          atomic.Value // Metrics
	candidateCounter uint64       // atomic; windows sieved since last tick
	fermatCounter    uint64       // atomic; Fermat tests run since last tick

	hybridOnce sync.Once
	hybridB    *gpufermat.Batcher

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New validates cfg and builds an Engine ready for Run.
func New(cfg Config, sink ShareSink, source Source) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	nPrimes := cfg.TablePrimes
	if nPrimes == 0 {
		nPrimes = 10000
	}
	e := &Engine{
		cfg:    cfg,
		table:  primetable.Build(nPrimes),
		queue:  gapqueue.New(),
		sink:   sink,
		source: source,
		stopCh: make(chan struct{}),
	}
	e.metrics.Store(Metrics{})
	return e, nil
}

// should_stop per spec §5's cancellation model: the sieve loop captured
// epoch at window start no longer matches the orchestrator's current one.
func (e *Engine) stale(epoch uint64) bool {
	select {
	case <-e.stopCh:
		return true
	default:
	}
	e.mu.Lock()
	cur := e.epoch
	e.mu.Unlock()
	return cur != epoch
}

func (e *Engine) headerSnapshot() (*header.Header, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone(), e.epoch
}

// mineHash implements spec §4.7 step 2: bump nonce by Threads until the
// header's sha256d hash falls in [2^255, 2^256).
func (e *Engine) mineHash(h *header.Header) [32]byte {
	for {
		hash := h.Hash()
		v := new(big.Int).SetBytes(hash[:])
		if v.Cmp(lowerHashBound) >= 0 && v.Cmp(upperHashBound) < 0 {
			return hash
		}
		h.Nonce += uint32(e.cfg.Threads)
	}
}

// Run fetches the initial work unit, spawns the worker pool plus the
// metrics and refresh background loops, and blocks until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	h, err := e.source.GetWork(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.current = h
	e.epoch = 1
	e.mu.Unlock()

	for id := 0; id < e.cfg.Threads; id++ {
		id := id
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.worker(ctx, id)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.metricsLoop(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.refreshLoop(ctx)
	}()

	<-ctx.Done()
	close(e.stopCh)
	e.wg.Wait()
	return ctx.Err()
}

// worker dispatches to the mode-specific loop for thread id, matching
// spec §4.7's "the first fermat_threads worker threads skip sieving and
// instead run the Fermat-drain loop" rule for Chinese/Hybrid modes.
func (e *Engine) worker(ctx context.Context, id int) {
	switch e.cfg.Mode {
	case Classical:
		e.classicalWorker(ctx, id)
	case Chinese:
		if id < e.cfg.FermatThreads {
			e.fermatDrainWorker(ctx, id)
		} else {
			e.chineseProducerWorker(ctx, id)
		}
	case Hybrid:
		if id < e.cfg.FermatThreads {
			e.hybridDrainWorker(ctx, id)
		} else {
			e.hybridProducerWorker(ctx, id)
		}
	}
}

// submit hands a found PoW to the sink, logging the outcome and reporting
// whether the caller should abort its in-progress sieve (spec §4.8's
// `process(pow)` contract).
func (e *Engine) submit(pw *pow.PoW) (stale bool) {
	stale = e.sink.Process(pw)
	merit := pow.Merit(float64(pow.GapFromDifficulty(pw.P(), pw.Difficulty)), pw.P())
	if stale {
		logx.Printf("engine: found PoW (merit %.3f) but header is stale, discarding", merit)
	} else {
		logx.Printf("engine: found PoW (merit %.3f), queued for submission", merit)
	}
	return stale
}

// refreshLoop forces a header refresh every RefreshInterval, matching spec
// §4.7's "180s elapsed" forced-refresh rule. New-block detection proper
// lives in the work source; this loop only handles the timeout leg, since
// the polling cadence itself is a transport concern.
func (e *Engine) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			h, err := e.source.GetWork(ctx)
			if err != nil {
				logx.WarnOnce("engine-refresh", "engine: forced refresh failed: %v", err)
				continue
			}
			e.ReplaceHeader(h)
		}
	}
}

// ReplaceHeader implements spec §4.7's header-update sequence: bump the
// epoch so every sieve's should_stop check observes the change, drain the
// shared Gap Candidate heap (Chinese/Hybrid mode), and replace the header
// under the lock.
func (e *Engine) ReplaceHeader(h *header.Header) {
	e.mu.Lock()
	e.current = h
	e.epoch++
	e.mu.Unlock()
	e.queue.Drain()
	e.sink.UpdateHeader(h)
}
