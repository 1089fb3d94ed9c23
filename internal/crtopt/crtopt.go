// Package crtopt implements the offline CRT Set optimizer of spec §4.3: a
// greedy layered search that builds an initial residue class prime-by-prime
// (bundling successive primes within a primorial budget), followed by an
// evolutionary refinement pass over a population of candidate residue
// vectors. The output is handed to internal/crtset.FromScalars, which
// independently recomputes the bitmap from the four persisted scalars —
// so the optimizer and the CRT Set reader always agree on what a given
// (n_primes, size, offset) triple means.
//
// Grounded on the same big-integer modular-arithmetic idiom as
// internal/crtset (markLayers' "start = (p - offset mod p) mod p"
// convention, reused verbatim here so the optimizer's internal scoring
// and crtset's reconstruction can never disagree), and on
// original_source/src/ctr-evolution.cpp's description of an explicit
// *rand.Rand threaded through every call rather than a package-level
// global, so repeated optimizer runs (and tests) are independently seeded.
package crtopt

import (
	"math"
	"math/big"
	"math/rand"
	"sort"

	"github.com/go-primegap/miner/internal/bigmath"
	"github.com/go-primegap/miner/internal/crtset"
	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/primetable"
	"github.com/go-primegap/miner/internal/sieve"
)

// LEVEL1_LAYERS is the prime-index threshold spec §4.3 names: below it the
// greedy search treats each prime as a precomputed "layer" bitmap ORed into
// prev_layers, above it the same bundling logic sieves the combination
// directly. Both are arithmetically identical in this port — the split in
// the original implementation is a cache/performance detail, not a
// behavioral one — so crtopt keeps one bundling algorithm for both phases
// and uses this constant only to mark the boundary in comments.
const LEVEL1_LAYERS = 35

// extraBitsDefault matches internal/crtset's max_merit constant (256 + 20).
const extraBitsDefault = 20

// minGreadySeedFloor is the lower bound of the uniform range evolutionary
// seeding draws each individual's independent greedy budget from
// (spec: "different max_gready drawn uniformly in [MAX_GREADY,
// ctr_strength]"); MAX_GREADY there names a fixed floor constant distinct
// from the single --max-gready value a plain (non-evolutionary) greedy run
// uses.
const minGreadySeedFloor = 64

// maxTopLevelStagnations bounds how many consecutive non-improving
// generations at mutation level 5 evolve tolerates before giving up.
const maxTopLevelStagnations = 4

const defaultPopulationSize = 16

const defaultMaxGenerations = 2000

// Config parameterizes one optimizer run, mirroring cmd/gapctr's flags.
type Config struct {
	NPrimes        int
	Merit          float64
	MaxGready      int
	CtrStrength    int
	ExtraBits      float64 // 0 => extraBitsDefault
	Population     int     // 0 => defaultPopulationSize
	MaxGenerations int     // 0 => defaultMaxGenerations
}

func (c Config) validate() error {
	if c.NPrimes <= 0 {
		return &errs.ConfigError{Msg: "crtopt: n_primes must be positive"}
	}
	if c.Merit <= 0 {
		return &errs.ConfigError{Msg: "crtopt: merit must be positive"}
	}
	if c.MaxGready <= 0 {
		return &errs.ConfigError{Msg: "crtopt: max_gready must be positive"}
	}
	if c.CtrStrength < c.MaxGready {
		return &errs.ConfigError{Msg: "crtopt: ctr_strength must be >= max_gready"}
	}
	return nil
}

// Run executes the greedy-seeded evolutionary search and returns a fully
// reconstructed CRT Set, per spec §4.3's "emits a CRT Set file via §4.2's
// serializer."
func Run(cfg Config, rng *rand.Rand) (*crtset.Set, error) {
	return RunWithProgress(cfg, rng, nil)
}

// RunWithProgress is Run plus an optional onGen callback invoked after
// every evolutionary generation, for cmd/gapctr's --progress flag. Kept
// separate from Run so existing callers (and tests) that don't care about
// progress reporting aren't forced to pass nil at every call site.
func RunWithProgress(cfg Config, rng *rand.Rand, onGen func(gen int, bestCost uint64)) (*crtset.Set, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	extraBits := cfg.ExtraBits
	if extraBits <= 0 {
		extraBits = extraBitsDefault
	}

	table := primetable.Build(cfg.NPrimes)
	if table.Len() < cfg.NPrimes {
		return nil, &errs.ConfigError{Msg: "crtopt: prime table build undershoot"}
	}
	primes := table.Primes[:cfg.NPrimes]
	primorial := productOf(primes)

	size := sizeForMerit(primorial, cfg.Merit, extraBits)

	popSize := cfg.Population
	if popSize <= 0 {
		popSize = defaultPopulationSize
	}
	maxGen := cfg.MaxGenerations
	if maxGen <= 0 {
		maxGen = defaultMaxGenerations
	}

	best := evolve(primes, size, cfg.MaxGready, cfg.CtrStrength, popSize, maxGen, rng, onGen)

	offset := combineCRT(primes, best.offsetModP)
	nCandidates := size - best.cost

	return crtset.FromScalars(cfg.NPrimes, size, nCandidates, offset)
}

// sizeForMerit inverts internal/crtset's max_merit formula
// (max_merit = size / (ln(primorial) + ln(2)*(256+extraBits))) to find the
// smallest even size capable of reaching the requested merit.
func sizeForMerit(primorial *big.Int, merit float64, extraBits float64) uint64 {
	denom := bigmath.Ln(primorial) + math.Log(2)*(256+extraBits)
	size := uint64(math.Ceil(merit * denom))
	if size%2 != 0 {
		size++
	}
	if size == 0 {
		size = 2
	}
	return size
}

func productOf(primes []uint64) *big.Int {
	p := big.NewInt(1)
	tmp := new(big.Int)
	for _, pr := range primes {
		tmp.SetUint64(pr)
		p.Mul(p, tmp)
	}
	return p
}

// combineCRT reconstructs the single scalar offset (mod the product of
// primes) satisfying offset % primes[i] == residues[i] for every i, via
// Garner's incremental CRT combination. primes must be pairwise coprime,
// which holds automatically since they are distinct primes.
func combineCRT(primes []uint64, residues []uint64) *big.Int {
	result := big.NewInt(0)
	modulus := big.NewInt(1)
	for i, p := range primes {
		pBig := new(big.Int).SetUint64(p)
		r := new(big.Int).SetUint64(residues[i])

		diff := new(big.Int).Sub(r, result)
		diff.Mod(diff, pBig)

		modModP := new(big.Int).Mod(modulus, pBig)
		var t *big.Int
		if modModP.Sign() == 0 {
			t = big.NewInt(0)
		} else {
			inv := new(big.Int).ModInverse(modModP, pBig)
			t = new(big.Int).Mul(diff, inv)
			t.Mod(t, pBig)
		}

		result.Add(result, new(big.Int).Mul(modulus, t))
		modulus.Mul(modulus, pBig)
	}
	result.Mod(result, modulus)
	return result
}

// markOne crosses off bitmap positions start, start+p, start+2p, ... for
// the single residue class start = (p - residue) % p, the same convention
// internal/crtset.markLayers uses for a scalar offset's mod-p value.
func markOne(bitmap *sieve.Array, p uint64, residue uint64, size uint64) {
	start := (p - residue%p) % p
	for b := start; b < size; b += p {
		bitmap.SetComposite(b)
	}
}

// survivorsFor builds a fresh bitmap from scratch and returns its survivor
// count for the given per-prime residue vector. index 0 (p=2) is always
// forced to residue 0 by construction elsewhere, keeping offset even so
// crtset.FromScalars's own even-rounding is a no-op against our output.
func survivorsFor(primes []uint64, offsetModP []uint64, size uint64) uint64 {
	bm := sieve.New(size, sieve.Dense)
	for i, p := range primes {
		markOne(bm, p, offsetModP[i], size)
	}
	return bm.PopcountRange()
}

// usefulResidues returns the dedup'd set of residues that would cross off
// at least one position still prime in bitmap, per spec §4.3's "for every
// position s still prime in prev_layers, record the residue that would
// cross s off; dedup to get a set of useful indices."
func usefulResidues(bitmap *sieve.Array, p uint64, size uint64) []uint64 {
	seen := make(map[uint64]bool)
	for s := uint64(0); s < size; s++ {
		if !bitmap.IsPrime(s) {
			continue
		}
		r := (p - s%p) % p
		seen[r] = true
	}
	out := make([]uint64, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// individual is one member of the evolutionary population: a vector of
// per-prime residues (offsetModP[0] always 0, for the p=2 layer) plus its
// cached cost (composites marked, i.e. size - survivors — lower is
// better; evolve's sortPopulation sorts ascending on it).
type individual struct {
	offsetModP []uint64
	cost       uint64
}

func (ind individual) clone() individual {
	cp := make([]uint64, len(ind.offsetModP))
	copy(cp, ind.offsetModP)
	return individual{offsetModP: cp, cost: ind.cost}
}
