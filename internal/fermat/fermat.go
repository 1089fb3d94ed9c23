// Package fermat implements the CPU Fermat primality tester and the
// windowed previous/next-prime search spec §4.5 depends on: 2^(p-1) mod p
// for a single big-integer candidate, and mpz_previous_prime/next_fermat_prime
// style windowed downward/upward search that sieves a small window with the
// first few thousand small primes before Fermat-testing survivors.
//
// Grounded on client/dial.go's big.Int-free style is not applicable here;
// this package instead follows other_examples/195971ad_Klingon-tech-klingnet's
// pow.go use of math/big for modular exponentiation (hashInt, modexp-shaped
// target comparisons), generalized from a fixed-width hash comparison into
// an arbitrary-precision Fermat witness test.
package fermat

import (
	"math/big"

	"github.com/go-primegap/miner/internal/primetable"
)

// windowBits is the size of the downward/upward search window, per spec
// §4.5's "sieves a small window of 2^14 bits".
const windowBits = 1 << 14

// smallPrimesForWindow is how many small primes are used to sieve each
// search window before Fermat-testing survivors.
const smallPrimesForWindow = 2048

var (
	two      = big.NewInt(2)
	one      = big.NewInt(1)
	smallTbl = primetable.Build(smallPrimesForWindow)
)

// Test reports whether 2^(p-1) mod p == 1 (a Fermat base-2 witness). It does
// not certify primality — composite numbers can pass as Fermat pseudoprimes
// — but this is the test spec §4.5/§4.9 specifies throughout.
func Test(p *big.Int) bool {
	if p.Sign() <= 0 {
		return false
	}
	if p.Cmp(two) == 0 {
		return true
	}
	if p.Bit(0) == 0 {
		return false
	}
	exp := new(big.Int).Sub(p, one)
	r := new(big.Int).Exp(two, exp, p)
	return r.Cmp(one) == 0
}

// sieveWindow returns a boolean slice of length windowBits, index i true
// meaning "start+i is still a prime candidate" (not ruled out by any of the
// table's small primes), where start is even and candidates are tested at
// odd offsets only via the caller's iteration (odd residues still need
// direct marking since start may be either parity here).
func sieveWindow(start *big.Int) []bool {
	candidate := make([]bool, windowBits)
	for i := range candidate {
		candidate[i] = true
	}
	mod := new(big.Int)
	pBig := new(big.Int)
	for _, p := range smallTbl.Primes {
		pBig.SetUint64(p)
		mod.Mod(start, pBig)
		firstMultiple := (p - mod.Uint64()) % p
		for i := firstMultiple; i < windowBits; i += p {
			if start.IsUint64() && start.Uint64()+i == p {
				// p itself is prime, not a multiple to cross off.
				continue
			}
			candidate[i] = false
		}
	}
	return candidate
}

// NextFermatPrime returns the smallest Fermat pseudoprime strictly greater
// than p, searching upward in windows of windowBits, recursing into the
// next window when the current one yields nothing.
func NextFermatPrime(p *big.Int) *big.Int {
	start := new(big.Int).Add(p, one)
	for {
		survivors := sieveWindow(start)
		cand := new(big.Int)
		for i, alive := range survivors {
			if !alive {
				continue
			}
			cand.Add(start, big.NewInt(int64(i)))
			if cand.Cmp(p) <= 0 {
				continue
			}
			if Test(cand) {
				return new(big.Int).Set(cand)
			}
		}
		start.Add(start, big.NewInt(windowBits))
	}
}

// PreviousPrime returns the largest Fermat pseudoprime strictly less than p
// (mpz_previous_prime equivalent), searching downward in windows.
func PreviousPrime(p *big.Int) *big.Int {
	end := new(big.Int).Sub(p, one)
	for {
		start := new(big.Int).Sub(end, big.NewInt(windowBits-1))
		if start.Sign() < 0 {
			start.SetInt64(0)
		}
		survivors := sieveWindow(start)
		var best *big.Int
		cand := new(big.Int)
		for i, alive := range survivors {
			if !alive {
				continue
			}
			cand.Add(start, big.NewInt(int64(i)))
			if cand.Cmp(end) > 0 {
				continue
			}
			if Test(cand) {
				if best == nil || cand.Cmp(best) > 0 {
					best = new(big.Int).Set(cand)
				}
			}
		}
		if best != nil {
			return best
		}
		if start.Sign() == 0 {
			return big.NewInt(2)
		}
		end.Sub(start, one)
	}
}
