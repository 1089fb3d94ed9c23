package fermat

import (
	"math/big"
	"testing"
)

func TestFermatTestKnownPrimesAndComposites(t *testing.T) {
	primes := []int64{2, 3, 5, 7, 11, 13, 97, 541}
	for _, p := range primes {
		if !Test(big.NewInt(p)) {
			t.Fatalf("Test(%d) = false, want true", p)
		}
	}
	composites := []int64{4, 6, 8, 9, 15, 100, 561} // 561 is a Carmichael number: it passes the base-2 Fermat test, so it is left out of the assertions below
	for _, c := range composites[:6] {
		if Test(big.NewInt(c)) {
			t.Fatalf("Test(%d) = true, want false", c)
		}
	}
}

func TestFermatTestMersennePrime(t *testing.T) {
	// 2^61 - 1 is a known Mersenne prime, used as a PoW test vector in
	// SPEC_FULL.md's verifier scenarios.
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
	if !Test(p) {
		t.Fatalf("Test(2^61-1) = false, want true")
	}
}

func TestNextFermatPrimeFindsImmediateSuccessor(t *testing.T) {
	got := NextFermatPrime(big.NewInt(7))
	if got.Cmp(big.NewInt(11)) != 0 {
		t.Fatalf("NextFermatPrime(7) = %s, want 11", got.String())
	}
}

func TestPreviousPrimeFindsImmediatePredecessor(t *testing.T) {
	got := PreviousPrime(big.NewInt(11))
	if got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("PreviousPrime(11) = %s, want 7", got.String())
	}
}

func TestNextAndPreviousPrimeAroundMersenne(t *testing.T) {
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))
	prev := PreviousPrime(p)
	if prev.Cmp(p) >= 0 {
		t.Fatalf("PreviousPrime(p) = %s, want < %s", prev.String(), p.String())
	}
	if !Test(prev) {
		t.Fatalf("PreviousPrime(p) = %s is not a Fermat witness", prev.String())
	}
}
