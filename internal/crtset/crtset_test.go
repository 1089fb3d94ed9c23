package crtset

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestFromScalarsFiveSmallPrimes(t *testing.T) {
	// Related to spec §8 scenario 1: primes {2,3,5,7,11}, size 30, offset 0.
	// The CRT Set's own reconstruction (spec §4.2 steps 1-3) sieves with
	// every one of the n_primes primes, including the prime that equals
	// the offset's own residue — so position 11 is itself a multiple of
	// the prime 11 and is correctly excluded, giving 6 survivors (not
	// the 7-position set §8's classical-sieve worked example lists,
	// which sieves one fewer prime; see DESIGN.md's CRT Set / classical
	// sieve distinction).
	s, err := FromScalars(5, 30, 6, big.NewInt(0))
	if err != nil {
		t.Fatalf("FromScalars: %v", err)
	}
	if s.Primorial.Int64() != 2*3*5*7*11 {
		t.Fatalf("Primorial = %s, want %d", s.Primorial.String(), 2*3*5*7*11)
	}
	want := map[uint64]bool{1: true, 13: true, 17: true, 19: true, 23: true, 29: true}
	for i := uint64(0); i < 30; i++ {
		if got, w := s.Bitmap.IsPrime(i), want[i]; got != w {
			t.Fatalf("bit %d IsPrime = %v, want %v", i, got, w)
		}
	}
}

func TestFromScalarsWrongCountFails(t *testing.T) {
	_, err := FromScalars(5, 30, 7, big.NewInt(0))
	if err == nil {
		t.Fatalf("expected InvariantViolation for wrong n_candidates")
	}
}

func TestFromScalarsOddOffsetIsForcedEven(t *testing.T) {
	s1, err := FromScalars(5, 30, 6, big.NewInt(0))
	if err != nil {
		t.Fatalf("FromScalars(offset=0): %v", err)
	}
	s2, err := FromScalars(5, 30, 6, big.NewInt(1))
	if err != nil {
		t.Fatalf("FromScalars(offset=1): %v", err)
	}
	if s1.Offset.Cmp(s2.Offset) != 0 {
		t.Fatalf("offset=1 should be forced down to offset=0, got %s", s2.Offset.String())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := FromScalars(5, 30, 6, big.NewInt(0))
	if err != nil {
		t.Fatalf("FromScalars: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "set.crt")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NPrimes != s.NPrimes || loaded.Size != s.Size || loaded.NCandidates != s.NCandidates {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, s)
	}
	if loaded.Offset.Cmp(s.Offset) != 0 {
		t.Fatalf("offset mismatch after round trip: %s vs %s", loaded.Offset, s.Offset)
	}
}

func TestLoadMissingMagicHeaderFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.crt")
	if err := os.WriteFile(path, []byte("n_primes:5\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected FileFormatError for missing magic header")
	}
}

func TestLoadNonexistentFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/path/does/not/exist.crt"); err == nil {
		t.Fatalf("expected error opening nonexistent file")
	}
}

func TestSpeedFactorAtZeroMeritIsOne(t *testing.T) {
	s, err := FromScalars(5, 30, 6, big.NewInt(0))
	if err != nil {
		t.Fatalf("FromScalars: %v", err)
	}
	if got := s.SpeedFactor(0); got < 0.999 || got > 1.001 {
		t.Fatalf("SpeedFactor(0) = %v, want ~1.0", got)
	}
}
