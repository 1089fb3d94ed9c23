// Package pow implements the PoW data model and verifier from spec §3/§4.9:
// the (hash, shift, adder, difficulty, nonce) tuple, FP48 difficulty
// encoding, merit, gap_from_difficulty, and the four-point Valid check.
//
// Grounded on other_examples/195971ad_Klingon-tech-klingnet's pow.go
// target/difficulty big.Int arithmetic, generalized from a fixed-width
// target comparison into the gap-length/merit model this miner needs.
package pow

import (
	"math"
	"math/big"

	"github.com/go-primegap/miner/internal/bigmath"
	"github.com/go-primegap/miner/internal/fermat"
)

// PoW is a candidate proof of work: P = (hash << shift) + adder is the
// candidate gap-start prime.
type PoW struct {
	Hash       [32]byte
	Shift      uint16
	Adder      *big.Int
	Difficulty uint64 // FP48-encoded
	Nonce      uint32
}

// EncodeFP48 packs an integer gap length and a fractional part in [0,1)
// into the high-16/low-48 fixed-point layout spec §3 and §GLOSSARY define.
func EncodeFP48(intPart uint16, frac float64) uint64 {
	if frac < 0 {
		frac = 0
	}
	if frac >= 1 {
		frac = 0.999999999999999
	}
	fracBits := uint64(frac * (1 << 48))
	return uint64(intPart)<<48 | fracBits
}

// DecodeFP48 unpacks an FP48 value into its float64 equivalent
// (intPart + frac).
func DecodeFP48(v uint64) float64 {
	intPart := v >> 48
	fracBits := v & ((1 << 48) - 1)
	return float64(intPart) + float64(fracBits)/float64(uint64(1)<<48)
}

// P returns the candidate gap-start prime (hash << shift) + adder.
func (p *PoW) P() *big.Int {
	hashInt := new(big.Int).SetBytes(p.Hash[:])
	shifted := new(big.Int).Lsh(hashInt, uint(p.Shift))
	return shifted.Add(shifted, p.Adder)
}

// Merit returns D / ln(P) for the given gap length D.
func Merit(gapLen float64, P *big.Int) float64 {
	return gapLen / bigmath.Ln(P)
}

// GapFromDifficulty solves for the integer gap length L such that
// L / ln(P) = difficulty / 2^48, i.e. the minimum gap length meeting the
// FP48-encoded target difficulty at the given P.
func GapFromDifficulty(P *big.Int, difficulty uint64) uint64 {
	targetMerit := float64(difficulty) / float64(uint64(1)<<48)
	gap := targetMerit * bigmath.Ln(P)
	return uint64(math.Ceil(gap))
}

// Valid implements spec §4.9's four-point check.
func Valid(p *PoW) bool {
	P := p.P()
	if P.Sign() <= 0 {
		return false
	}
	if !fermat.Test(P) {
		return false
	}
	next := fermat.NextFermatPrime(P)
	gap := new(big.Int).Sub(next, P)
	required := GapFromDifficulty(P, p.Difficulty)
	if gap.Cmp(new(big.Int).SetUint64(required)) < 0 {
		return false
	}
	hashInt := new(big.Int).SetBytes(p.Hash[:])
	lowerBound := new(big.Int).Lsh(big.NewInt(1), 255)
	upperBound := new(big.Int).Lsh(big.NewInt(1), 256)
	if hashInt.Cmp(lowerBound) < 0 || hashInt.Cmp(upperBound) >= 0 {
		return false
	}
	return true
}

