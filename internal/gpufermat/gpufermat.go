// Package gpufermat implements the host-side batching contract of spec
// §4.6: fixed-size batches of 320-bit candidates folded from a stream of
// sieve windows, dispatched to a KernelRunner, and a Work List of linked
// items threading gap state across window boundaries. The GPU kernel
// itself (320-bit modular exponentiation in OpenCL) is explicitly out of
// scope per spec §1's Non-goals — "only its host-side batching contract
// is" specified — so KernelRunner is an interface with a CPU-backed
// default implementation (runner_cpu.go) rather than a fabricated OpenCL
// binding; see DESIGN.md.
//
// Grounded on internal/fermat's CPU witness test for the fallback runner,
// and spec §4.6's own item-state-machine prose for Valid/Skippable.
package gpufermat

import (
	"math/big"

	"github.com/go-primegap/miner/internal/bigmath"
)

// KernelRunner dispatches one batch of candidates and returns, per slot, a
// witness-test result. base is the shared high-288-bit PrimeBase; low is
// the batch's 32-bit low limbs. Returning an error aborts the batch (a
// GPUInitError or transport fault on the device side).
type KernelRunner interface {
	RunBatch(base *big.Int, low []uint32) ([]bool, error)
	Close() error
}

// WorkItem is a batch slot per spec §4.6: a singly-linked list of up to
// minLen surviving offsets for one candidate window.
type WorkItem struct {
	Offsets  []uint32
	Len      int
	Index    int // position of the next untested offset; -1 once exhausted
	Start    *big.Int
	End      *big.Int // nil until the item's first pseudoprime is confirmed
	FirstEnd bool
	Next     *WorkItem
}

// Valid reports spec §4.6's validity predicate:
// start≠0 ∧ index<0 ∧ ((end=0 ∧ next≠null) ∨ end−start ≥ minLen).
func (w *WorkItem) Valid(minLen *big.Int) bool {
	if w.Start == nil || w.Start.Sign() == 0 {
		return false
	}
	if w.Index >= 0 {
		return false
	}
	if w.End == nil {
		return w.Next != nil
	}
	gap := new(big.Int).Sub(w.End, w.Start)
	return gap.Cmp(minLen) >= 0
}

// Skippable reports spec §4.6's skippable predicate:
// start≠0 ∧ end≠0 ∧ next≠null ∧ (end−start<minLen ∨ start>end).
func (w *WorkItem) Skippable(minLen *big.Int) bool {
	if w.Start == nil || w.Start.Sign() == 0 {
		return false
	}
	if w.End == nil || w.Next == nil {
		return false
	}
	gap := new(big.Int).Sub(w.End, w.Start)
	return gap.Cmp(minLen) < 0 || w.Start.Cmp(w.End) > 0
}

// MinLen derives spec §4.6's min_len: log(start)*difficultyFraction,
// rounded down to the nearest even integer.
func MinLen(start *big.Int, difficultyFraction float64) *big.Int {
	lnStart := bigmath.Ln(start)
	v := uint64(lnStart * difficultyFraction)
	if v%2 != 0 {
		v--
	}
	return new(big.Int).SetUint64(v)
}
