// Package segsieve implements the two segmented-sieve drivers of spec
// §4.4: Classical (no CRT presieve, odd-only addressing) and Chinese (CRT
// presieve copied in, dense addressing, emitting Gap Candidates onto the
// shared heap). Both advance window-by-window, incrementally updating each
// prime's next-composite offset instead of recomputing it from scratch.
//
// Grounded on internal/primetable's sieveUpTo (the same odd-only
// closed-form "next multiple of p among odd numbers" derivation, here
// generalized to an arbitrary big.Int window start instead of a
// fixed small bound) and spec §4.4's own description of the Chinese
// mode's memcpy-the-presieve-then-sieve-the-rest structure.
package segsieve

import (
	"math/big"

	"github.com/go-primegap/miner/internal/crtset"
	"github.com/go-primegap/miner/internal/gapqueue"
	"github.com/go-primegap/miner/internal/primetable"
	"github.com/go-primegap/miner/internal/sieve"
)

// StopCheck reports whether the in-progress window should be abandoned,
// typically because the previous-block hash captured at sieve start no
// longer matches the orchestrator's current epoch.
type StopCheck func() bool

// Classical drives the no-CRT segmented sieve: odd-only addressing,
// every prime in the table sieved fresh each window (skipping p=2).
type Classical struct {
	table  *primetable.Table
	arr    *sieve.Array
	starts []uint64 // parallel to table.Primes[1:]
	size   uint64

	windowStart *big.Int // integer value represented by bit 0 of the current window
}

// NewClassical allocates a Classical driver with a size-bit odd-only
// buffer, reused every window.
func NewClassical(table *primetable.Table, size uint64) *Classical {
	return &Classical{
		table:  table,
		arr:    sieve.New(size, sieve.OddOnly),
		starts: make([]uint64, table.Len()-1),
		size:   size,
	}
}

// Reset seeds the driver for a new work unit, computing each prime's
// initial offset to the first bit position it marks composite.
func (c *Classical) Reset(start *big.Int) {
	c.windowStart = new(big.Int).Set(start)
	mod := new(big.Int)
	pBig := new(big.Int)
	for idx, p := range c.table.Primes[1:] {
		pBig.SetUint64(p)
		mod.Mod(start, pBig)
		m := mod.Uint64()
		rhs := (p - 1 - m) % p
		inv2 := (p + 1) / 2
		c.starts[idx] = (rhs * inv2) % p
	}
}

// Step sieves one window: clears the buffer, crosses off every prime's
// multiples, collects survivor bit indices, then advances starts and
// windowStart for the next call.
func (c *Classical) Step() (survivors []uint32, gapStart *big.Int) {
	c.arr.Clear()
	for idx, p := range c.table.Primes[1:] {
		start := c.starts[idx]
		for b := start; b < c.size; b += p {
			c.arr.SetComposite(b)
		}
	}

	for i := uint64(0); i < c.size; i++ {
		if c.arr.IsPrime(i) {
			survivors = append(survivors, uint32(i))
		}
	}
	gapStart = new(big.Int).Set(c.windowStart)

	for idx, p := range c.table.Primes[1:] {
		shifted := (c.starts[idx] + p - (c.size % p)) % p
		c.starts[idx] = shifted
	}
	c.windowStart.Add(c.windowStart, new(big.Int).Lsh(big.NewInt(int64(c.size)), 1))
	return survivors, gapStart
}

// Chinese drives the CRT-presieved segmented sieve: the buffer starts as a
// copy of the CRT Set's bitmap, and only primes with index >= cset.NPrimes
// are sieved fresh per window. start is snapped to the CRT grid by the
// caller (the worker orchestration layer, which owns the anchor hash and
// shift) via Reset.
type Chinese struct {
	table  *primetable.Table
	cset   *crtset.Set
	arr    *sieve.Array
	starts []uint64 // parallel to table.Primes[cset.NPrimes:]
	primorialModP []uint64

	windowStart *big.Int
	nonce       uint32
}

// NewChinese allocates a Chinese driver sized to the CRT Set's bitmap.
func NewChinese(table *primetable.Table, cset *crtset.Set) *Chinese {
	n := table.Len() - cset.NPrimes
	if n < 0 {
		n = 0
	}
	c := &Chinese{
		table:         table,
		cset:          cset,
		arr:           sieve.New(cset.Size, sieve.Dense),
		starts:        make([]uint64, n),
		primorialModP: make([]uint64, n),
	}
	pBig := new(big.Int)
	mod := new(big.Int)
	for idx := 0; idx < n; idx++ {
		p := table.Primes[cset.NPrimes+idx]
		pBig.SetUint64(p)
		mod.Mod(cset.Primorial, pBig)
		c.primorialModP[idx] = mod.Uint64()
	}
	return c
}

// Reset snaps start to the CRT grid per spec §4.4:
// start = ceil(hash*2^shift / primorial) * primorial + offset, rounded down
// to even, and recomputes every remaining prime's initial offset. nonce is
// the header nonce hash was computed from; it is threaded onto every Gap
// Candidate pushed until the next Reset so the Fermat-drain consumer can
// reconstruct exactly which header instance produced it.
func (c *Chinese) Reset(hash *big.Int, shift uint, nonce uint32) {
	c.nonce = nonce
	scaled := new(big.Int).Lsh(hash, shift)
	quotient, remainder := new(big.Int).QuoRem(scaled, c.cset.Primorial, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	start := new(big.Int).Mul(quotient, c.cset.Primorial)
	start.Add(start, c.cset.Offset)
	if start.Bit(0) == 1 {
		start.Sub(start, big.NewInt(1))
	}
	c.windowStart = start

	mod := new(big.Int)
	pBig := new(big.Int)
	for idx := range c.starts {
		p := c.table.Primes[c.cset.NPrimes+idx]
		pBig.SetUint64(p)
		mod.Mod(start, pBig)
		c.starts[idx] = (p - mod.Uint64()) % p
	}
}

// Step sieves one cset.Size-bit window: copies in the CRT presieved
// bitmap, sieves the remaining primes on top, collects survivors, advances
// the window start by one primorial, and returns the survivors together with the start
// value they were collected against. Used directly by the Hybrid GPU path,
// which needs raw survivor lists in strict window order rather than
// Gap Candidates pushed onto the (heap-reordered) shared queue.
func (c *Chinese) Step() (survivors []uint32, windowStart *big.Int) {
	c.arr.CopyFrom(c.cset.Bitmap)
	for idx := range c.starts {
		p := c.table.Primes[c.cset.NPrimes+idx]
		for b := c.starts[idx]; b < c.cset.Size; b += p {
			c.arr.SetComposite(b)
		}
	}

	for i := uint64(0); i < c.cset.Size; i++ {
		if c.arr.IsPrime(i) {
			survivors = append(survivors, uint32(i))
		}
	}
	windowStart = new(big.Int).Set(c.windowStart)

	for idx := range c.starts {
		p := c.table.Primes[c.cset.NPrimes+idx]
		c.starts[idx] = (c.starts[idx] + p - (c.primorialModP[idx] % p)) % p
	}
	c.windowStart.Add(c.windowStart, c.cset.Primorial)
	return survivors, windowStart
}

// Next produces one Gap Candidate per iteration: Step, then push the
// result onto the shared heap for the CPU Fermat-drain consumer.
func (c *Chinese) Next(q *gapqueue.Queue, stop StopCheck) bool {
	if stop != nil && stop() {
		return false
	}
	survivors, windowStart := c.Step()
	q.Push(&gapqueue.Candidate{
		Nonce:     c.nonce,
		GapStart:  windowStart,
		Survivors: survivors,
	})
	return true
}

// WindowStart returns the integer value the current window begins at.
func (c *Chinese) WindowStart() *big.Int { return new(big.Int).Set(c.windowStart) }

// WindowStart returns the integer value the current window begins at.
func (c *Classical) WindowStart() *big.Int { return new(big.Int).Set(c.windowStart) }
