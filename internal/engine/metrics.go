package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/go-primegap/miner/internal/logx"
)

// Metrics is a throughput/host-load snapshot: mining rates plus the
// host's current CPU and memory load, sampled together so operator
// logging carries both.
type Metrics struct {
	CandidatesPerSec float64
	FermatPerSec     float64
	CPUPercent       float64
	RSSBytes         uint64
}

// Metrics returns the most recently sampled snapshot.
func (e *Engine) Metrics() Metrics {
	v := e.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	return v.(Metrics)
}

// metricsLoop samples host CPU/memory once per MetricsInterval and folds
// mining throughput counters into the same snapshot, so --log output
// carries both, the way an operator running many workers on one box wants.
func (e *Engine) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.sampleMetrics()
		}
	}
}

func (e *Engine) sampleMetrics() {
	var cpuPct float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	var rss uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		rss = vm.Used
	}

	interval := e.cfg.MetricsInterval.Seconds()
	cands := atomic.SwapUint64(&e.candidateCounter, 0)
	ferms := atomic.SwapUint64(&e.fermatCounter, 0)

	m := Metrics{
		CandidatesPerSec: float64(cands) / interval,
		FermatPerSec:     float64(ferms) / interval,
		CPUPercent:       cpuPct,
		RSSBytes:         rss,
	}
	e.metrics.Store(m)
	logx.Printf("engine: %.1f candidates/s, %.1f fermat tests/s, cpu %.1f%%, mem used %d bytes",
		m.CandidatesPerSec, m.FermatPerSec, m.CPUPercent, m.RSSBytes)
}
