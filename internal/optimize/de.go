package optimize

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/h2econ/h2opt/internal/logging"
)

// minPopulation is the smallest population that keeps DE/rand/1 well
// defined (a base member plus three distinct donors).
const minPopulation = 5

// driver runs bound-constrained differential evolution (DE/rand/1 with
// binomial crossover) against the objective adapter. Trial construction
// and selection run on a single goroutine using one seeded RNG; only the
// objective evaluations fan out to the worker pool, so a seeded run is
// bit-identical regardless of worker count.
type driver struct {
	settings Settings
	binding  *Binding
	obj      *objective
	rng      *rand.Rand
	logger   *logging.Logger
}

func newDriver(settings Settings, binding *Binding, obj *objective, logger *logging.Logger) *driver {
	var src rand.Source
	if settings.Seed != nil {
		src = rand.NewSource(*settings.Seed)
	} else {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &driver{
		settings: settings,
		binding:  binding,
		obj:      obj,
		rng:      rand.New(src),
		logger:   logger,
	}
}

// run returns the best solution observed across all generations, the
// number of generations executed, and whether the tolerance criterion was
// met before the iteration cap.
func (d *driver) run(ctx context.Context) (Solution, int, bool, error) {
	dim := d.binding.Dim()
	if dim == 0 {
		return Solution{}, 0, false, configErrorf("no optimization parameters declared")
	}

	np := d.settings.PopulationSize * dim
	if np < minPopulation {
		np = minPopulation
	}
	lower, upper := d.binding.Bounds()

	pop := make([][]float64, np)
	for i := range pop {
		x := make([]float64, dim)
		for j := range x {
			x[j] = lower[j] + d.rng.Float64()*(upper[j]-lower[j])
		}
		pop[i] = x
	}

	energies := make([]float64, np)
	if err := d.evaluateInto(ctx, pop, energies); err != nil {
		return Solution{}, 0, false, err
	}

	bestIdx := floats.MinIdx(energies)
	best := Solution{
		Params: append([]float64(nil), pop[bestIdx]...),
		Value:  energies[bestIdx],
	}

	if d.converged(energies) {
		return best, 0, true, nil
	}

	trials := make([][]float64, np)
	trialEnergies := make([]float64, np)
	for gen := 1; gen <= d.settings.MaxIterations; gen++ {
		if err := ctx.Err(); err != nil {
			return Solution{}, gen - 1, false, err
		}

		for i := range pop {
			trials[i] = d.trialVector(pop, i, lower, upper)
		}
		if err := d.evaluateInto(ctx, trials, trialEnergies); err != nil {
			return Solution{}, gen - 1, false, err
		}

		for i := range pop {
			// Ties keep the incumbent.
			if trialEnergies[i] < energies[i] {
				pop[i] = trials[i]
				energies[i] = trialEnergies[i]
				if energies[i] < best.Value {
					best = Solution{
						Params: append([]float64(nil), pop[i]...),
						Value:  energies[i],
					}
				}
			}
		}

		if d.logger != nil {
			d.logger.Debug("generation complete", map[string]interface{}{
				"generation": gen,
				"best":       best.Value,
				"spread":     stat.StdDev(energies, nil),
			})
		}

		if d.converged(energies) {
			return best, gen, true, nil
		}
	}
	return best, d.settings.MaxIterations, false, nil
}

// trialVector builds the DE/rand/1/bin trial for member i, clipping every
// component back into the bound box.
func (d *driver) trialVector(pop [][]float64, i int, lower, upper []float64) []float64 {
	dim := len(pop[i])
	np := len(pop)

	r1 := d.pick(np, i)
	r2 := d.pick(np, i, r1)
	r3 := d.pick(np, i, r1, r2)
	jrand := d.rng.Intn(dim)

	trial := make([]float64, dim)
	for j := 0; j < dim; j++ {
		if j == jrand || d.rng.Float64() < d.settings.Crossover {
			trial[j] = pop[r1][j] + d.settings.Mutation*(pop[r2][j]-pop[r3][j])
		} else {
			trial[j] = pop[i][j]
		}
		if trial[j] < lower[j] {
			trial[j] = lower[j]
		}
		if trial[j] > upper[j] {
			trial[j] = upper[j]
		}
	}
	return trial
}

// pick draws a population index distinct from all excluded indices.
func (d *driver) pick(np int, exclude ...int) int {
	for {
		r := d.rng.Intn(np)
		taken := false
		for _, e := range exclude {
			if r == e {
				taken = true
				break
			}
		}
		if !taken {
			return r
		}
	}
}

// evaluateInto prices every vector of xs into out, fanning out across the
// worker pool. Sequence indices are reserved on the calling goroutine in
// member order, so the progress log ordering is deterministic. The call
// blocks until the whole generation is evaluated.
func (d *driver) evaluateInto(ctx context.Context, xs [][]float64, out []float64) error {
	workers := d.settings.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(xs) {
		workers = len(xs)
	}

	type job struct {
		idx int
		seq int
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				out[jb.idx] = d.obj.evaluate(jb.seq, xs[jb.idx])
			}
		}()
	}
	for i := range xs {
		jobs <- job{idx: i, seq: d.obj.reserve()}
	}
	close(jobs)
	wg.Wait()
	return ctx.Err()
}

// converged reports whether the population's objective spread (standard
// deviation relative to the mean magnitude) is at or below the tolerance.
func (d *driver) converged(energies []float64) bool {
	mean := stat.Mean(energies, nil)
	spread := stat.StdDev(energies, nil)
	limit := d.settings.Tolerance * math.Abs(mean)
	if limit == 0 {
		limit = d.settings.Tolerance
	}
	return spread <= limit
}
