package gpufermat

import (
	"math/big"
	"testing"
)

func TestWorkItemValidWhenEndReachesMinLen(t *testing.T) {
	minLen := big.NewInt(10)
	w := &WorkItem{
		Start: big.NewInt(100),
		End:   big.NewInt(111),
		Index: -1,
	}
	if !w.Valid(minLen) {
		t.Fatalf("Valid() = false, want true (gap 11 >= minLen 10)")
	}
}

func TestWorkItemValidWhenAwaitingNext(t *testing.T) {
	w := &WorkItem{
		Start: big.NewInt(100),
		End:   nil,
		Next:  &WorkItem{},
		Index: -1,
	}
	if !w.Valid(big.NewInt(10)) {
		t.Fatalf("Valid() = false, want true (end unset but next present)")
	}
}

func TestWorkItemNotValidWhileStillIndexing(t *testing.T) {
	w := &WorkItem{Start: big.NewInt(100), Index: 2}
	if w.Valid(big.NewInt(10)) {
		t.Fatalf("Valid() = true, want false (index still >= 0)")
	}
}

func TestWorkItemSkippableWhenGapTooSmall(t *testing.T) {
	w := &WorkItem{
		Start: big.NewInt(100),
		End:   big.NewInt(105),
		Next:  &WorkItem{},
	}
	if !w.Skippable(big.NewInt(10)) {
		t.Fatalf("Skippable() = false, want true (gap 5 < minLen 10)")
	}
}

func TestWorkItemNotSkippableWithoutNext(t *testing.T) {
	w := &WorkItem{Start: big.NewInt(100), End: big.NewInt(105)}
	if w.Skippable(big.NewInt(10)) {
		t.Fatalf("Skippable() = true, want false (no next item)")
	}
}

func TestMinLenIsEven(t *testing.T) {
	start := new(big.Int).Lsh(big.NewInt(1), 255)
	minLen := MinLen(start, 0.5)
	if minLen.Bit(0) != 0 {
		t.Fatalf("MinLen = %s, want even", minLen.String())
	}
}

func TestCPURunnerAgreesWithFermatTest(t *testing.T) {
	r := NewCPURunner()
	mersenne := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
	base := new(big.Int).Rsh(mersenne, 32)
	low := uint32(mersenne.Uint64() & 0xFFFFFFFF)

	results, err := r.RunBatch(base, []uint32{low})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !results[0] {
		t.Fatalf("RunBatch(2^61-1) = false, want true (Mersenne prime)")
	}
}

func TestBatcherDrainMarksWinner(t *testing.T) {
	r := NewCPURunner()
	b := NewBatcher(r, 8, 4)

	mersenne := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
	base := new(big.Int).Rsh(mersenne, 32)
	low := uint32(mersenne.Uint64() & 0xFFFFFFFF)

	item := &WorkItem{
		Offsets: []uint32{low + 2, low, low + 4}, // composite, prime, composite
		Index:   0,
		Start:   new(big.Int).Set(mersenne),
	}
	b.Append(item)

	touched, err := b.Drain(base)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(touched) != 1 {
		t.Fatalf("touched = %d items, want 1", len(touched))
	}
	if item.End == nil {
		t.Fatalf("item.End not set after draining a batch containing a witness hit")
	}
}

func TestNewGPURunnerReportsGPUInitError(t *testing.T) {
	_, err := NewGPURunner("amd", 0)
	if err == nil {
		t.Fatalf("expected GPUInitError")
	}
}
