package crtopt

import (
	"math/rand"
	"sort"
)

// evolve runs the population-based refinement of spec §4.3: seed each
// individual from an independent greedy run with a budget drawn uniformly
// from [minGreadySeedFloor, ctrStrength], then repeatedly truncate the
// worst half and refill by mutating survivors, escalating through five
// mutation levels on stagnation and terminating after maxTopLevelStagnations
// consecutive non-improving generations at the top level. onGen, if
// non-nil, is called after every generation with the generation index and
// the population's current best cost, for cmd/gapctr's --progress flag.
func evolve(primes []uint64, size uint64, maxGready, ctrStrength, popSize, maxGenerations int, rng *rand.Rand, onGen func(gen int, bestCost uint64)) individual {
	lo := minGreadySeedFloor
	hi := ctrStrength
	if hi < lo {
		hi = lo
	}

	population := make([]individual, popSize)
	for i := range population {
		budget := lo
		if hi > lo {
			budget = lo + rng.Intn(hi-lo+1)
		}
		offsetModP := greedyRun(primes, size, budget)
		population[i] = individual{
			offsetModP: offsetModP,
			cost:       size - survivorsFor(primes, offsetModP, size),
		}
	}

	sortPopulation(population)
	bestCost := population[0].cost
	level := 1
	topStagnations := 0

	for gen := 0; gen < maxGenerations; gen++ {
		survivors := population[:len(population)/2]
		next := make([]individual, 0, popSize)
		for _, s := range survivors {
			next = append(next, s.clone())
		}
		for len(next) < popSize {
			parent := survivors[rng.Intn(len(survivors))]
			child := parent.clone()
			mutate(level, &child, primes, size, rng)
			child.cost = size - survivorsFor(primes, child.offsetModP, size)
			next = append(next, child)
		}
		population = next
		sortPopulation(population)

		if onGen != nil {
			onGen(gen, population[0].cost)
		}

		if population[0].cost < bestCost {
			bestCost = population[0].cost
			level = 1
			topStagnations = 0
			continue
		}

		if level < 5 {
			level++
			continue
		}
		topStagnations++
		if topStagnations >= maxTopLevelStagnations {
			break
		}
	}

	return population[0]
}

func sortPopulation(pop []individual) {
	sort.Slice(pop, func(i, j int) bool { return pop[i].cost < pop[j].cost })
}

// mutate applies one of the five escalating mutation levels spec §4.3
// names, in place on ind.
func mutate(level int, ind *individual, primes []uint64, size uint64, rng *rand.Rand) {
	n := len(ind.offsetModP)
	// index 0 (p=2) is never mutated; see greedyRun's comment.
	pick := func() int {
		if n <= 1 {
			return 0
		}
		return 1 + rng.Intn(n-1)
	}

	switch level {
	case 1:
		k := 1 + rng.Intn(3)
		for t := 0; t < k && n > 1; t++ {
			i := pick()
			ind.offsetModP[i] = uint64(rng.Int63n(int64(primes[i])))
		}
	case 2:
		if n <= 1 {
			return
		}
		i := pick()
		mutateBestOfK(ind, primes, size, rng, i, 8)
	case 3:
		if n <= 1 {
			return
		}
		m := 1 + rng.Intn(3)
		for t := 0; t < m; t++ {
			i := pick()
			mutateBestOfK(ind, primes, size, rng, i, 8)
		}
	case 4:
		if n <= 1 {
			return
		}
		k := 1 + rng.Intn(2)
		for t := 0; t < k; t++ {
			i := pick()
			sweepOne(ind, primes, size, i)
		}
	default: // level 5
		if n <= 2 {
			return
		}
		k := 1
		for t := 0; t < k; t++ {
			i := pick()
			j := pick()
			if j == i {
				continue
			}
			sweepPair(ind, primes, size, i, j)
		}
	}
}

// mutateBestOfK tries K random residues for prime index i, keeping
// whichever (including the original) minimizes cost.
func mutateBestOfK(ind *individual, primes []uint64, size uint64, rng *rand.Rand, i, k int) {
	bestR := ind.offsetModP[i]
	bestCost := size - survivorsFor(primes, ind.offsetModP, size)
	orig := bestR
	for t := 0; t < k; t++ {
		ind.offsetModP[i] = uint64(rng.Int63n(int64(primes[i])))
		c := size - survivorsFor(primes, ind.offsetModP, size)
		if c < bestCost {
			bestCost = c
			bestR = ind.offsetModP[i]
		}
	}
	ind.offsetModP[i] = bestR
	_ = orig
}

// sweepOne exhaustively tries every residue for prime index i, keeping the
// best.
func sweepOne(ind *individual, primes []uint64, size uint64, i int) {
	bestR := ind.offsetModP[i]
	bestCost := size - survivorsFor(primes, ind.offsetModP, size)
	for r := uint64(0); r < primes[i]; r++ {
		ind.offsetModP[i] = r
		c := size - survivorsFor(primes, ind.offsetModP, size)
		if c < bestCost {
			bestCost = c
			bestR = r
		}
	}
	ind.offsetModP[i] = bestR
}

// sweepPair exhaustively tries every joint residue pair for primes i and j,
// keeping the best.
func sweepPair(ind *individual, primes []uint64, size uint64, i, j int) {
	bestRi, bestRj := ind.offsetModP[i], ind.offsetModP[j]
	bestCost := size - survivorsFor(primes, ind.offsetModP, size)
	for ri := uint64(0); ri < primes[i]; ri++ {
		for rj := uint64(0); rj < primes[j]; rj++ {
			ind.offsetModP[i] = ri
			ind.offsetModP[j] = rj
			c := size - survivorsFor(primes, ind.offsetModP, size)
			if c < bestCost {
				bestCost = c
				bestRi, bestRj = ri, rj
			}
		}
	}
	ind.offsetModP[i], ind.offsetModP[j] = bestRi, bestRj
}
