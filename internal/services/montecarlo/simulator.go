// Package montecarlo propagates the fitted one-step return distribution over
// a fixed horizon as independent geometric random walks.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"StockCast/internal/domain/models"
)

const (
	// DefaultSamplePaths caps the trajectories kept for visualization.
	DefaultSamplePaths = 20

	// chunkSize is the number of paths drawn from one generator stream. It is
	// fixed so seeded output does not depend on GOMAXPROCS.
	chunkSize = 2048

	// pickStream seeds the generator that chooses sample paths, kept apart
	// from the return streams so the choice never perturbs the draws.
	pickStream = 0x9e3779b97f4a7c15
)

// Params describes one simulation run.
type Params struct {
	MuNext       float64
	SigmaHat     float64
	CurrentPrice float64
	NSim         int
	FutureDays   int
	// Seed makes the run reproducible. Nil draws a fresh seed per call.
	Seed *uint64
	// MaxSamplePaths defaults to DefaultSamplePaths when zero.
	MaxSamplePaths int
}

// Validate rejects parameters that would produce empty or meaningless paths.
func (p Params) Validate() error {
	switch {
	case p.NSim < 1:
		return fmt.Errorf("%w: n_sim must be >= 1, got %d", models.ErrInvalidParameter, p.NSim)
	case p.FutureDays < 1:
		return fmt.Errorf("%w: future_days must be >= 1, got %d", models.ErrInvalidParameter, p.FutureDays)
	case p.MaxSamplePaths < 0:
		return fmt.Errorf("%w: sample path cap must be >= 0, got %d", models.ErrInvalidParameter, p.MaxSamplePaths)
	case !(p.CurrentPrice > 0) || math.IsInf(p.CurrentPrice, 0):
		return fmt.Errorf("%w: current price must be positive and finite, got %v", models.ErrInvalidParameter, p.CurrentPrice)
	case !(p.SigmaHat >= 0) || math.IsInf(p.SigmaHat, 0):
		return fmt.Errorf("%w: sigma must be non-negative and finite, got %v", models.ErrInvalidParameter, p.SigmaHat)
	case !models.IsFinite(p.MuNext):
		return fmt.Errorf("%w: mu must be finite, got %v", models.ErrInvalidParameter, p.MuNext)
	}
	return nil
}

// Simulate draws NSim paths of FutureDays i.i.d. Normal(MuNext, SigmaHat)
// log-returns, compounds them from CurrentPrice and returns every terminal
// price plus up to MaxSamplePaths full trajectories chosen without replacement.
func Simulate(p Params) (models.SimulationResult, error) {
	if err := p.Validate(); err != nil {
		return models.SimulationResult{}, fmt.Errorf("simulate: %w", err)
	}
	seed := rand.Uint64()
	if p.Seed != nil {
		seed = *p.Seed
	}
	maxSamples := p.MaxSamplePaths
	if maxSamples == 0 {
		maxSamples = DefaultSamplePaths
	}

	picks := pickSamples(rand.New(rand.NewPCG(seed, pickStream)), p.NSim, maxSamples)
	slot := make(map[int]int, len(picks))
	for i, idx := range picks {
		slot[idx] = i
	}

	res := models.SimulationResult{
		FinalPrices: make([]float64, p.NSim),
		SamplePaths: make([][]models.PathPoint, len(picks)),
	}

	chunks := (p.NSim + chunkSize - 1) / chunkSize
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(c int) {
			defer wg.Done()
			defer func() { <-sem }()
			rng := rand.New(rand.NewPCG(seed, uint64(c)))
			lo := c * chunkSize
			hi := min(lo+chunkSize, p.NSim)
			for i := lo; i < hi; i++ {
				var path []models.PathPoint
				if s, ok := slot[i]; ok {
					path = make([]models.PathPoint, p.FutureDays)
					res.SamplePaths[s] = path
				}
				res.FinalPrices[i] = walk(rng, p, path)
			}
		}(c)
	}
	wg.Wait()
	return res, nil
}

// walk compounds one path in log space and returns its terminal price.
// When path is non-nil every day is recorded, numbered from 1.
func walk(rng *rand.Rand, p Params, path []models.PathPoint) float64 {
	cum := 0.0
	price := p.CurrentPrice
	for d := 0; d < p.FutureDays; d++ {
		cum += p.MuNext + p.SigmaHat*rng.NormFloat64()
		price = p.CurrentPrice * math.Exp(cum)
		if path != nil {
			path[d] = models.PathPoint{Day: d + 1, Price: price}
		}
	}
	return price
}

// pickSamples returns min(k, n) distinct indices in [0, n) in random order.
func pickSamples(rng *rand.Rand, n, k int) []int {
	k = min(k, n)
	// Partial Fisher-Yates over a sparse permutation keeps memory at O(k).
	swapped := make(map[int]int, k)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		vi, vj := at(i), at(j)
		swapped[j] = vi
		out[i] = vj
	}
	return out
}
