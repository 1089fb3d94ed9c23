// Package primetable builds the first N primes once at process start and
// hands out a read-only, process-wide-shared table. Grounded on
// pchuck-infinite-series's SieveOfEratosthenes (golang-primes/prime/primes.go):
// same odd-only packed sieve and bytes.IndexByte extraction trick, adapted
// here to also retain each prime's double (2*p) in Doubles. The segmented
// sieve driver (internal/segsieve) steps its odd-only bit index by p and
// does not read Doubles.
package primetable

import (
	"bytes"
	"math"
)

// Table is the first N primes, monotonic and duplicate-free by
// construction. Built once and never mutated afterward — safe to share
// across worker goroutines without locking.
type Table struct {
	Primes  []uint64 // p_0=2, p_1=3, p_2=5, ...
	Doubles []uint64 // 2*p_i, parallel to Primes
}

// Len returns the number of primes in the table.
func (t *Table) Len() int { return len(t.Primes) }

// Build returns the first n primes (n >= 0). It sieves up to a generous
// upper bound derived from the prime-counting-function approximation and
// grows the bound if the estimate undershoots.
func Build(n int) *Table {
	if n <= 0 {
		return &Table{}
	}

	bound := estimateBound(n)
	var primes []uint64
	for {
		primes = sieveUpTo(bound)
		if len(primes) >= n {
			break
		}
		bound *= 2
	}
	primes = primes[:n]

	doubles := make([]uint64, n)
	for i, p := range primes {
		doubles[i] = 2 * p
	}
	return &Table{Primes: primes, Doubles: doubles}
}

// estimateBound approximates the n-th prime using n*(ln n + ln ln n), with
// a floor to keep small n well-sieved.
func estimateBound(n int) int {
	if n < 6 {
		return 15
	}
	fn := float64(n)
	lnN := math.Log(fn)
	bound := fn * (lnN + math.Log(lnN))
	return int(bound*1.2) + 16
}

// sieveUpTo returns every prime < limit using an odd-only Eratosthenes
// sieve, the same shape as pchuck-infinite-series's SieveOfEratosthenes.
func sieveUpTo(limit int) []uint64 {
	if limit <= 2 {
		return nil
	}
	if limit <= 3 {
		return []uint64{2}
	}

	size := (limit - 3 + 1) / 2 // count of odd numbers in [3, limit)
	bits := make([]byte, size)
	for i := range bits {
		bits[i] = 1
	}

	sqrtLimit := int(math.Sqrt(float64(limit)))
	for cur := 3; cur <= sqrtLimit; cur += 2 {
		idx := (cur - 3) / 2
		if bits[idx] == 0 {
			continue
		}
		start := (cur*cur - 3) / 2
		for j := start; j < size; j += cur {
			bits[j] = 0
		}
	}

	primes := make([]uint64, 0, size/8+2)
	primes = append(primes, 2)
	idx := 0
	for {
		pos := bytes.IndexByte(bits[idx:], 1)
		if pos == -1 {
			break
		}
		idx += pos
		primes = append(primes, uint64(2*idx+3))
		idx++
		if idx >= size {
			break
		}
	}
	return primes
}
