package engine

import (
	"math/rand"
	"sort"

	"github.com/your-org/stringart/internal/candidates"
	"github.com/your-org/stringart/internal/compositor"
	"github.com/your-org/stringart/internal/models"
	"github.com/your-org/stringart/internal/raster"
)

// Genetic refinement parameters, spec.md §4.12's "high preset, monochrome
// only" genetic pass: a population of variants of the connection sequence
// competes on rendered MSE, with crossover and mutation across
// generations. Connection order is never permuted.
const (
	geneticPopulation  = 10
	geneticSurvivors   = 5
	geneticMutateRate  = 0.15
	geneticGenerations = 30
)

// runGenetic implements spec component C12's genetic refinement pass: it
// treats the connection sequence as a chromosome of (from,to) pairs,
// evolves a small population of to-pin swaps and one-point crossovers
// (each connection keeps its position in the sequence) scored by rendered
// MSE fitness (1e6/(MSE+1)), and rebuilds the canvas from the fittest
// individual found.
func runGenetic(r *run) {
	if len(r.connections) == 0 {
		return
	}

	base := append([]models.ThreadConnection(nil), r.connections...)
	population := make([][]models.ThreadConnection, geneticPopulation)
	population[0] = base
	for i := 1; i < geneticPopulation; i++ {
		population[i] = mutate(base, r)
	}

	opacity := r.params.ThreadOpacity
	thicknessPx := raster.ThreadWidthPx(r.params.ThreadWidth)

	var best []models.ThreadConnection
	bestFitness := -1.0

	for gen := 0; gen < geneticGenerations; gen++ {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		type scored struct {
			chromosome []models.ThreadConnection
			fitness    float64
		}
		scoredPop := make([]scored, len(population))
		for i, chromosome := range population {
			mse := renderMSE(r, chromosome, thicknessPx, opacity)
			scoredPop[i] = scored{chromosome: chromosome, fitness: 1e6 / (mse + 1)}
		}
		sort.Slice(scoredPop, func(i, j int) bool { return scoredPop[i].fitness > scoredPop[j].fitness })

		if scoredPop[0].fitness > bestFitness {
			bestFitness = scoredPop[0].fitness
			best = scoredPop[0].chromosome
		}

		survivors := make([][]models.ThreadConnection, 0, geneticSurvivors)
		for i := 0; i < geneticSurvivors && i < len(scoredPop); i++ {
			survivors = append(survivors, scoredPop[i].chromosome)
		}

		next := make([][]models.ThreadConnection, 0, geneticPopulation)
		next = append(next, survivors...)
		for len(next) < geneticPopulation {
			a := survivors[r.rng.Intn(len(survivors))]
			b := survivors[r.rng.Intn(len(survivors))]
			child := crossover(a, b, r.rng)
			if r.rng.Float64() < geneticMutateRate {
				child = mutate(child, r)
			}
			next = append(next, child)
		}
		population = next
	}

	if best == nil {
		return
	}
	rebuildCanvas(r, best, thicknessPx, opacity)
	r.connections = best
}

// crossover performs one-point crossover between two equal-length
// chromosomes.
func crossover(a, b []models.ThreadConnection, rng *rand.Rand) []models.ThreadConnection {
	if len(a) == 0 {
		return append([]models.ThreadConnection(nil), b...)
	}
	point := rng.Intn(len(a))
	child := make([]models.ThreadConnection, len(a))
	copy(child[:point], a[:point])
	for i := point; i < len(child); i++ {
		if i < len(b) {
			child[i] = b[i]
		} else {
			child[i] = a[i]
		}
	}
	// The splice point can join a's tail to b's head at pins that don't
	// match; re-stitch so the chain stays continuous across it.
	if point > 0 && point < len(child) {
		child[point].FromPin = child[point-1].ToPin
	}
	return child
}

// mutate replaces a random connection's to-pin with another valid pin
// index, respecting effective_min_skip against its from-pin.
func mutate(chromosome []models.ThreadConnection, r *run) []models.ThreadConnection {
	child := append([]models.ThreadConnection(nil), chromosome...)
	if len(child) == 0 {
		return child
	}
	i := r.rng.Intn(len(child))
	from := r.pinsList[child[i].FromPin]
	kEdge, kRand := candidateK(r.params.QualityPreset)
	candIdx := candidates.Generate(r.pinsList, from, r.edgeMap, r.masks, candidates.Params{KEdge: kEdge, KRand: kRand, Policy: r.policy}, r.rng)
	if len(candIdx) == 0 {
		return child
	}
	newTo := candIdx[r.rng.Intn(len(candIdx))]
	child[i].ToPin = newTo
	if i+1 < len(child) {
		child[i+1].FromPin = newTo
	}
	return child
}

// renderMSE renders chromosome onto a scratch canvas (never the job's
// live state) and returns its MSE against the target, for genetic
// fitness evaluation.
func renderMSE(r *run, chromosome []models.ThreadConnection, thicknessPx int, opacity float64) float64 {
	scratch := make([]uint8, len(r.targetGray))
	for i := range scratch {
		scratch[i] = 255
	}
	density := make([]float32, len(scratch))
	overdraw := make([]uint16, len(scratch))
	for _, c := range chromosome {
		from := r.pinsList[c.FromPin]
		to := r.pinsList[c.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		for _, px := range pixels {
			compositor.ForwardGray(scratch, density, overdraw, px, opacity)
		}
	}

	var sum float64
	for i, t := range r.targetGray {
		d := float64(t) - float64(scratch[i])
		sum += d * d
	}
	return sum / float64(len(scratch))
}

// rebuildCanvas replays chromosome onto the job's live progress canvas
// from a blank white start, replacing whatever canvas state preceded it.
func rebuildCanvas(r *run, chromosome []models.ThreadConnection, thicknessPx int, opacity float64) {
	for i := range r.st.ProgressGray {
		r.st.ProgressGray[i] = 255
	}
	for i := range r.st.Density {
		r.st.Density[i] = 0
	}
	for i := range r.st.Overdraw {
		r.st.Overdraw[i] = 0
	}
	for i := range r.st.PinUsage {
		r.st.PinUsage[i] = 0
	}
	for _, c := range chromosome {
		from := r.pinsList[c.FromPin]
		to := r.pinsList[c.ToPin]
		pixels := raster.Line(r.st.LineCache, from, to, thicknessPx, r.width, r.height)
		for _, px := range pixels {
			compositor.ForwardGray(r.st.ProgressGray, r.st.Density, r.st.Overdraw, px, opacity)
		}
		r.st.RecordConnection(c.FromPin, c.ToPin)
	}
}
