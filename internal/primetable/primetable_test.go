package primetable

import "testing"

func TestBuildSmall(t *testing.T) {
	tbl := Build(10)
	want := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	if tbl.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", tbl.Len(), len(want))
	}
	for i, p := range want {
		if tbl.Primes[i] != p {
			t.Fatalf("Primes[%d] = %d, want %d", i, tbl.Primes[i], p)
		}
		if tbl.Doubles[i] != 2*p {
			t.Fatalf("Doubles[%d] = %d, want %d", i, tbl.Doubles[i], 2*p)
		}
	}
}

func TestBuildMonotonicNoDuplicates(t *testing.T) {
	tbl := Build(5000)
	if tbl.Len() != 5000 {
		t.Fatalf("Len() = %d, want 5000", tbl.Len())
	}
	for i := 1; i < tbl.Len(); i++ {
		if tbl.Primes[i] <= tbl.Primes[i-1] {
			t.Fatalf("not strictly monotonic at %d: %d <= %d", i, tbl.Primes[i], tbl.Primes[i-1])
		}
	}
}

func TestBuildZero(t *testing.T) {
	tbl := Build(0)
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
}

func TestBuildMatchesKnownPrimesUpTo100(t *testing.T) {
	known := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47,
		53, 59, 61, 67, 71, 73, 79, 83, 89, 97}
	tbl := Build(len(known))
	for i, p := range known {
		if tbl.Primes[i] != p {
			t.Fatalf("Primes[%d] = %d, want %d", i, tbl.Primes[i], p)
		}
	}
}
