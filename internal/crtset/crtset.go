// Package crtset implements the CRT Set: an immutable presieved residue
// class loaded from (or derived from) four scalars — n_primes, size,
// n_candidates and offset — plus the prime table. The bitmap itself is
// never stored on disk; both constructors reconstruct it deterministically
// per spec §4.2, then verify it against the stored survivor count.
//
// Grounded on the big-integer modular patterns in
// other_examples/195971ad_Klingon-tech-klingnet (pow.go target/difficulty
// arithmetic) and guiperry-HASHER's checkpoint persistence shape
// (1_DATA_MINER/internal/app) for the plain-text save/load format.
package crtset

import (
	"bufio"
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-primegap/miner/internal/bigmath"
	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/primetable"
	"github.com/go-primegap/miner/internal/sieve"
)

const magicHeader = "|== ChineseSet ==|"

const monteCarloTrials = 10000

// Set is the immutable, process-wide-shared presieved residue class.
type Set struct {
	NPrimes     int
	Size        uint64
	NCandidates uint64
	Offset      *big.Int
	Primorial   *big.Int

	Bitmap *sieve.Array

	AvgCandidates float64
	MaxMerit      float64
}

// FromScalars reconstructs a Set from the four persisted scalars, computing
// the bitmap and failing with InvariantViolation if the recomputed survivor
// count does not exactly equal nCandidates.
func FromScalars(nPrimes int, size uint64, nCandidates uint64, offset *big.Int) (*Set, error) {
	if nPrimes <= 0 {
		return nil, &errs.ConfigError{Msg: "crtset: n_primes must be positive"}
	}
	if size == 0 {
		return nil, &errs.ConfigError{Msg: "crtset: size must be positive"}
	}

	table := primetable.Build(nPrimes)
	if table.Len() < nPrimes {
		return nil, errors.Errorf("crtset: prime table build only produced %d of %d primes", table.Len(), nPrimes)
	}

	primorial := computePrimorial(table.Primes[:nPrimes])

	adjOffset := new(big.Int).Set(offset)
	if adjOffset.Bit(0) == 1 {
		adjOffset.Sub(adjOffset, big.NewInt(1))
	}

	bitmap := sieve.New(size, sieve.Dense)
	markLayers(bitmap, table.Primes[:nPrimes], adjOffset, size)

	survivors := bitmap.PopcountRange()
	if survivors != nCandidates {
		return nil, &errs.InvariantViolation{Msg: fmt.Sprintf(
			"crtset: recomputed survivor count %d != stored n_candidates %d", survivors, nCandidates)}
	}

	s := &Set{
		NPrimes:     nPrimes,
		Size:        size,
		NCandidates: nCandidates,
		Offset:      adjOffset,
		Primorial:   primorial,
		Bitmap:      bitmap,
	}
	s.AvgCandidates = estimateAvgCandidates(table.Primes[:nPrimes], primorial, size)
	s.MaxMerit = computeMaxMerit(primorial, size)
	return s, nil
}

// Load reads a persisted CRT Set file and reconstructs it the same way
// FromScalars does, using "==" for the round-trip integrity check (spec's
// two divergent revisions are resolved in favor of strict equality so a
// corrupted or hand-edited file is never silently accepted).
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, &errs.FileFormatError{Path: path, Msg: "empty file"}
	}
	if strings.TrimSpace(sc.Text()) != magicHeader {
		return nil, &errs.FileFormatError{Path: path, Msg: "missing magic header"}
	}

	fields := map[string]string{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &errs.FileFormatError{Path: path, Msg: "malformed line: " + line}
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := sc.Err(); err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: err.Error()}
	}

	nPrimesStr, ok := fields["n_primes"]
	if !ok {
		return nil, &errs.FileFormatError{Path: path, Msg: "missing n_primes"}
	}
	sizeStr, ok := fields["size"]
	if !ok {
		return nil, &errs.FileFormatError{Path: path, Msg: "missing size"}
	}
	nCandStr, ok := fields["n_candidates"]
	if !ok {
		return nil, &errs.FileFormatError{Path: path, Msg: "missing n_candidates"}
	}
	offsetStr, ok := fields["offset"]
	if !ok {
		return nil, &errs.FileFormatError{Path: path, Msg: "missing offset"}
	}

	nPrimes, err := strconv.Atoi(nPrimesStr)
	if err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: "bad n_primes: " + err.Error()}
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: "bad size: " + err.Error()}
	}
	nCandidates, err := strconv.ParseUint(nCandStr, 10, 64)
	if err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: "bad n_candidates: " + err.Error()}
	}
	offset, ok := new(big.Int).SetString(offsetStr, 10)
	if !ok {
		return nil, &errs.FileFormatError{Path: path, Msg: "bad offset: " + offsetStr}
	}

	return FromScalars(nPrimes, size, nCandidates, offset)
}

// Save persists the four scalars in the exact text format §6 specifies.
// The bitmap itself is never written; it is always recomputed on load.
func (s *Set) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &errs.FileFormatError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, magicHeader)
	fmt.Fprintf(w, "n_primes:%d\n", s.NPrimes)
	fmt.Fprintf(w, "size:%d\n", s.Size)
	fmt.Fprintf(w, "n_candidates:%d\n", s.NCandidates)
	fmt.Fprintf(w, "offset:%s\n", s.Offset.String())
	return w.Flush()
}

// SpeedFactor returns the expected throughput multiplier this presieve
// yields at the given target merit.
func (s *Set) SpeedFactor(merit float64) float64 {
	m := merit
	if m > s.MaxMerit {
		m = s.MaxMerit
	}
	return math.Exp((1 - float64(s.NCandidates)/s.AvgCandidates) * m)
}

// computePrimorial returns the product of the given primes.
func computePrimorial(primes []uint64) *big.Int {
	p := big.NewInt(1)
	tmp := new(big.Int)
	for _, pr := range primes {
		tmp.SetUint64(pr)
		p.Mul(p, tmp)
	}
	return p
}

// markLayers marks, for every prime pᵢ in primes, bits start, start+pᵢ,
// start+2pᵢ, … as composite in bitmap, where
// start = (pᵢ − offset mod pᵢ) mod pᵢ.
func markLayers(bitmap *sieve.Array, primes []uint64, offset *big.Int, size uint64) {
	mod := new(big.Int)
	pBig := new(big.Int)
	for _, p := range primes {
		pBig.SetUint64(p)
		mod.Mod(offset, pBig)
		start := (p - mod.Uint64()) % p
		for b := start; b < size; b += p {
			bitmap.SetComposite(b)
		}
	}
}

// estimateAvgCandidates performs the Monte-Carlo estimate over
// monteCarloTrials uniformly random even offsets in [0, primorial), same
// primorial, to derive the presieve's expected survivor count.
func estimateAvgCandidates(primes []uint64, primorial *big.Int, size uint64) float64 {
	rng := rand.New(rand.NewSource(1))
	total := uint64(0)
	scratch := sieve.New(size, sieve.Dense)
	offset := new(big.Int)
	for t := 0; t < monteCarloTrials; t++ {
		offset.Rand(rng, primorial)
		if offset.Bit(0) == 1 {
			offset.Sub(offset, big.NewInt(1))
		}
		scratch.Clear()
		markLayers(scratch, primes, offset, size)
		total += scratch.PopcountRange()
	}
	return float64(total) / float64(monteCarloTrials)
}

// computeMaxMerit returns size / (ln(primorial) + ln(2)*(256+20)).
func computeMaxMerit(primorial *big.Int, size uint64) float64 {
	lnPrimorial := bigmath.Ln(primorial)
	denom := lnPrimorial + math.Log(2)*(256+20)
	return float64(size) / denom
}

