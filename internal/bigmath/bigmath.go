// Package bigmath holds small math/big helpers shared by the packages that
// need natural-log estimates of arbitrarily large integers: crtset's
// max_merit calculation and pow's merit/gap_from_difficulty.
package bigmath

import (
	"math"
	"math/big"
)

// Ln computes a float64 approximation of ln(x) for an arbitrarily large
// positive big.Int, via its bit length, avoiding overflow from converting
// directly to float64 for values beyond ~2^1023.
func Ln(x *big.Int) float64 {
	if x.Sign() <= 0 {
		return 0
	}
	bitLen := x.BitLen()
	if bitLen <= 1023 {
		f := new(big.Float).SetInt(x)
		v, _ := f.Float64()
		return math.Log(v)
	}
	shift := uint(bitLen - 1023)
	reduced := new(big.Int).Rsh(x, shift)
	f := new(big.Float).SetInt(reduced)
	v, _ := f.Float64()
	return math.Log(v) + float64(shift)*math.Log(2)
}
