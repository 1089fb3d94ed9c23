package gpufermat

import (
	"math/big"

	"github.com/go-primegap/miner/internal/fermat"
)

// CPURunner is the always-available KernelRunner fallback: it reconstructs
// each 320-bit candidate from base and a low limb and runs the same
// base-2 Fermat witness test internal/fermat.Test uses on the CPU path.
// It is the only runner this module ships without build tags (see
// runner_gpu_stub.go for the --use-gpu surface).
type CPURunner struct{}

// NewCPURunner returns a CPURunner. It never fails to construct.
func NewCPURunner() *CPURunner { return &CPURunner{} }

// RunBatch reconstructs candidate = (base << 32) | low for every slot and
// Fermat-tests it.
func (r *CPURunner) RunBatch(base *big.Int, low []uint32) ([]bool, error) {
	results := make([]bool, len(low))
	shifted := new(big.Int).Lsh(base, 32)
	cand := new(big.Int)
	for i, l := range low {
		cand.Or(shifted, new(big.Int).SetUint64(uint64(l)))
		results[i] = fermat.Test(cand)
	}
	return results, nil
}

// Close is a no-op; the CPU runner owns no device resources.
func (r *CPURunner) Close() error { return nil }
