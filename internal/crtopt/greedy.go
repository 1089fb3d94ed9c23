package crtopt

import "github.com/go-primegap/miner/internal/sieve"

// greedyRun builds one residue vector per spec §4.3's greedy layered
// search: process primes in order, bundling as many successive primes as
// fit within maxGready (the product of their useful-index-set sizes),
// enumerate every combination within a bundle, commit the argmax-survivor
// combination, then continue with the next unprocessed prime.
func greedyRun(primes []uint64, size uint64, maxGready int) []uint64 {
	n := len(primes)
	offsetModP := make([]uint64, n)
	prev := sieve.New(size, sieve.Dense)

	idx := 0
	if n > 0 && primes[0] == 2 {
		// p=2's residue is fixed at 0 so the implied global offset stays
		// even; crtset.FromScalars's own even-rounding is then a no-op.
		markOne(prev, 2, 0, size)
		idx = 1
	}

	for idx < n {
		end, choices := buildBundle(primes, idx, maxGready, prev, size)
		combo := bestCombo(primes, idx, end, choices, prev, size)
		for j := idx; j < end; j++ {
			r := combo[j-idx]
			offsetModP[j] = r
			markOne(prev, primes[j], r, size)
		}
		idx = end
	}
	return offsetModP
}

// buildBundle grows [start, end) while the product of each prime's useful-
// index-set size stays within maxGready, always including at least one
// prime even if its own useful set alone exceeds the budget.
func buildBundle(primes []uint64, start int, maxGready int, prev *sieve.Array, size uint64) (end int, choices [][]uint64) {
	n := len(primes)
	budget := 1
	end = start
	for end < n {
		c := usefulResidues(prev, primes[end], size)
		if len(c) == 0 {
			c = []uint64{0}
		}
		newBudget := budget * len(c)
		if end > start && newBudget > maxGready {
			break
		}
		choices = append(choices, c)
		budget = newBudget
		end++
		if budget >= maxGready {
			break
		}
	}
	return end, choices
}

// bestCombo enumerates the Cartesian product of choices (one list per
// prime in [start, end)), scores each combination by the survivor count
// after tentatively OR-ing it into prev, and returns the argmax.
func bestCombo(primes []uint64, start, end int, choices [][]uint64, prev *sieve.Array, size uint64) []uint64 {
	bundle := primes[start:end]
	combo := make([]uint64, len(bundle))
	best := make([]uint64, len(bundle))
	bestSurvivors := uint64(0)
	first := true

	trial := sieve.New(size, sieve.Dense)

	var recurse func(pos int)
	recurse = func(pos int) {
		if pos == len(choices) {
			trial.Clear()
			trial.OrIn(prev)
			for i, p := range bundle {
				markOne(trial, p, combo[i], size)
			}
			survivors := trial.PopcountRange()
			if first || survivors > bestSurvivors {
				first = false
				bestSurvivors = survivors
				copy(best, combo)
			}
			return
		}
		for _, r := range choices[pos] {
			combo[pos] = r
			recurse(pos + 1)
		}
	}
	if len(choices) > 0 {
		recurse(0)
	} else {
		return best
	}
	return best
}
