package crtopt

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/go-primegap/miner/internal/crtset"
	"github.com/go-primegap/miner/internal/primetable"
)

func TestCombineCRTRoundTrip(t *testing.T) {
	primes := []uint64{3, 5, 7}
	residues := []uint64{1, 2, 3}
	offset := combineCRT(primes, residues)
	for i, p := range primes {
		pBig := new(big.Int).SetUint64(p)
		mod := new(big.Int).Mod(offset, pBig)
		if mod.Uint64() != residues[i] {
			t.Fatalf("offset %s mod %d = %s, want %d", offset.String(), p, mod.String(), residues[i])
		}
	}
}

func TestGreedyRunFixesPrimeTwoResidueAtZero(t *testing.T) {
	table := primetable.Build(5)
	offsetModP := greedyRun(table.Primes[:5], 30, 8)
	if offsetModP[0] != 0 {
		t.Fatalf("offsetModP[0] = %d, want 0 (p=2 residue fixed)", offsetModP[0])
	}
}

func TestSurvivorsForMatchesCrtsetConvention(t *testing.T) {
	table := primetable.Build(5)
	primes := table.Primes[:5]
	offsetModP := make([]uint64, 5) // all zero, matching scalar offset=0

	got := survivorsFor(primes, offsetModP, 30)

	s, err := crtset.FromScalars(5, 30, 6, big.NewInt(0))
	if err != nil {
		t.Fatalf("FromScalars: %v", err)
	}
	if got != s.NCandidates {
		t.Fatalf("survivorsFor = %d, want %d (crtset agreement)", got, s.NCandidates)
	}
}

func TestRunProducesConsistentSet(t *testing.T) {
	cfg := Config{
		NPrimes:     4,
		Merit:       0.3,
		MaxGready:   8,
		CtrStrength: 16,
		Population:  4,
		MaxGenerations: 10,
	}
	rng := rand.New(rand.NewSource(42))
	set, err := Run(cfg, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if set.NPrimes != 4 {
		t.Fatalf("NPrimes = %d, want 4", set.NPrimes)
	}
	if set.NCandidates == 0 {
		t.Fatalf("NCandidates = 0, want > 0")
	}
	if set.Bitmap.PopcountRange() != set.NCandidates {
		t.Fatalf("bitmap popcount %d != NCandidates %d", set.Bitmap.PopcountRange(), set.NCandidates)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := Config{NPrimes: 0, Merit: 1, MaxGready: 1, CtrStrength: 1}
	if _, err := Run(cfg, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected ConfigError for n_primes=0")
	}
}
