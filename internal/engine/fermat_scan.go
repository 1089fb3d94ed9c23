package engine

import (
	"math/big"

	"github.com/go-primegap/miner/internal/fermat"
	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/pow"
)

// scanSurvivors implements spec §4.5's CPU Fermat tester: walk a window's
// surviving offsets in ascending order, Fermat-testing each, and stop at
// the first pseudoprime found. Finding any prime inside the window means
// the window is uninteresting — whatever gap precedes it is bounded by the
// window itself, not by the sieve's reach — so the caller should move on.
// addr converts a survivor bit index into the integer it represents
// (Classical's odd-only 2*b+1 offset vs Chinese's dense b offset).
func scanSurvivors(survivors []uint32, addr func(uint32) *big.Int) (found bool, tested int) {
	for _, b := range survivors {
		tested++
		if fermat.Test(addr(b)) {
			return true, tested
		}
	}
	return false, tested
}

// candidateFromEmptyWindow handles the one interesting outcome: every
// survivor in the window failed Fermat, meaning the window is entirely
// composite. The true gap-start prime is recovered by searching backward
// from the window start (mpz_previous_prime's Go equivalent,
// internal/fermat.PreviousPrime), matching original_source's ChineseSieve
// run_fermat fallback.
func candidateFromEmptyWindow(gapStart *big.Int) *big.Int {
	return fermat.PreviousPrime(gapStart)
}

// buildPoW packs a recovered gap-start prime into a PoW ready for
// verification and submission: adder = P - (hash << shift).
func buildPoW(h *header.Header, hash [32]byte, p *big.Int) *pow.PoW {
	hashInt := new(big.Int).SetBytes(hash[:])
	shifted := new(big.Int).Lsh(hashInt, uint(h.Shift))
	adder := new(big.Int).Sub(p, shifted)
	return &pow.PoW{
		Hash:       hash,
		Shift:      h.Shift,
		Adder:      adder,
		Difficulty: h.Difficulty,
		Nonce:      h.Nonce,
	}
}
