// Package sieve implements the packed-bit-array primitives from spec §4.1:
// set_composite, is_prime, popcount_range, clear, or_in. Word size is
// platform-native (64-bit here; Go has no 32-bit-only build worth
// targeting separately). Two addressing schemes coexist per spec: Dense
// (bit i <-> start+i) used once a CRT presieve has already encoded
// divisibility by 2, and OddOnly (bit i <-> start+2i+1) used otherwise. An
// Array commits to one scheme at construction via the Scheme field; callers
// must not mix bit indices between schemes.
package sieve

import (
	"math/big"
	"math/bits"
)

// Scheme names the addressing convention a given Array uses.
type Scheme int

const (
	// OddOnly: bit i represents the odd integer start + 2*i + 1.
	OddOnly Scheme = iota
	// Dense: bit i represents the integer start + i.
	Dense
)

const wordBits = 64

// Array is a packed bit array of composite/prime-candidate flags.
// Bit clear (0) means "still a prime candidate"; bit set (1) means
// "marked composite". This matches the CRT Set's own convention so a
// CRT bitmap can be OR'd directly into an Array via OrIn.
type Array struct {
	words  []uint64
	nbits  uint64
	scheme Scheme
}

// New allocates an Array of nbits bits, all clear (all "prime candidate").
func New(nbits uint64, scheme Scheme) *Array {
	nwords := (nbits + wordBits - 1) / wordBits
	return &Array{words: make([]uint64, nwords), nbits: nbits, scheme: scheme}
}

// Len returns the number of bits in the array.
func (a *Array) Len() uint64 { return a.nbits }

// Scheme reports the addressing convention this array was constructed
// with.
func (a *Array) Scheme() Scheme { return a.scheme }

// SetComposite marks bit i as composite. O(1).
func (a *Array) SetComposite(i uint64) {
	a.words[i/wordBits] |= 1 << (i % wordBits)
}

// IsPrime reports whether bit i is still a prime candidate (bit clear).
// O(1).
func (a *Array) IsPrime(i uint64) bool {
	return a.words[i/wordBits]&(1<<(i%wordBits)) == 0
}

// Clear zeroes the array back to "all prime candidate".
func (a *Array) Clear() {
	for i := range a.words {
		a.words[i] = 0
	}
}

// PopcountRange returns the number of bits still set to "prime candidate"
// (i.e. clear bits) across the whole array, using hardware popcount per
// word on the composite bits and subtracting from the total bit count.
func (a *Array) PopcountRange() uint64 {
	var composite uint64
	for _, w := range a.words {
		composite += uint64(bits.OnesCount64(w))
	}
	// The tail word may have padding bits beyond nbits that are always
	// clear (never marked composite), so no correction is needed: those
	// bits simply never get set and are excluded by definition since
	// nothing addresses them.
	return a.nbits - composite
}

// PopcountComposite returns the number of bits marked composite.
func (a *Array) PopcountComposite() uint64 {
	return a.nbits - a.PopcountRange()
}

// OrIn ORs another array's composite bits into this one — used to layer
// the CRT Set's presieved bitmap under the remaining small-prime layers in
// Chinese mode (spec §4.4). Both arrays must have the same length and
// scheme.
func (a *Array) OrIn(layer *Array) {
	for i := range a.words {
		a.words[i] |= layer.words[i]
	}
}

// Words exposes the backing word slice for bulk copy (spec's "memcpy of
// the presieved layer" in Chinese mode). Callers must not retain a
// reference past the Array's lifetime assumptions (single-owner, not
// thread-safe for concurrent mutation).
func (a *Array) Words() []uint64 { return a.words }

// CopyFrom replaces this array's contents with a copy of src's words. Used
// to initialize a per-worker sieve buffer from the CRT Set's presieved
// bitmap without re-deriving it.
func (a *Array) CopyFrom(src *Array) {
	copy(a.words, src.words)
}

// Integer maps a bit index to the integer it represents, given the
// window's start value, per the addressing scheme. start is arbitrary
// precision because real windows sit near 2^255..2^256 (the hash range),
// far past uint64.
func (a *Array) Integer(start *big.Int, i uint64) *big.Int {
	switch a.scheme {
	case OddOnly:
		return new(big.Int).Add(start, big.NewInt(int64(2*i+1)))
	default:
		return new(big.Int).Add(start, new(big.Int).SetUint64(i))
	}
}
