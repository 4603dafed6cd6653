package optimize

import (
	"context"

	"github.com/h2econ/h2opt/internal/logging"
	"github.com/h2econ/h2opt/internal/model"
)

// defaults matching the original analysis configuration.
const (
	defaultMaxIterations  = 1000
	defaultPopulationSize = 15
	defaultMutation       = 0.8
	defaultCrossover      = 0.9
)

// Option configures a Run call.
type Option func(*runOptions)

type runOptions struct {
	progress ProgressFunc
	logger   *logging.Logger
}

// WithProgress registers a callback invoked once per objective evaluation.
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) { o.progress = fn }
}

// WithLogger enables structured progress logging from the search driver.
func WithLogger(l *logging.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// normalize fills defaulted settings and rejects malformed ones.
func normalize(s Settings) (Settings, error) {
	if s.Method == "" {
		s.Method = MethodDifferentialEvolution
	}
	if s.Method != MethodDifferentialEvolution {
		return s, configErrorf("unknown optimization method %q", s.Method)
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = defaultMaxIterations
	}
	if s.MaxIterations < 0 {
		return s, configErrorf("max iterations must be positive, got %d", s.MaxIterations)
	}
	if s.PopulationSize == 0 {
		s.PopulationSize = defaultPopulationSize
	}
	if s.PopulationSize < 0 {
		return s, configErrorf("population size must be positive, got %d", s.PopulationSize)
	}
	if s.Tolerance < 0 {
		return s, configErrorf("tolerance must be non-negative, got %v", s.Tolerance)
	}
	if s.Mutation == 0 {
		s.Mutation = defaultMutation
	}
	if s.Mutation < 0 || s.Mutation > 2 {
		return s, configErrorf("mutation factor must be in (0, 2], got %v", s.Mutation)
	}
	if s.Crossover == 0 {
		s.Crossover = defaultCrossover
	}
	if s.Crossover < 0 || s.Crossover > 1 {
		return s, configErrorf("crossover probability must be in (0, 1], got %v", s.Crossover)
	}
	if s.Penalty == 0 {
		s.Penalty = DefaultPenalty
	}
	return s, nil
}

// Run executes one optimization: it binds the parameter specs against the
// model, prices the baseline configuration, minimizes the evaluator's
// levelized cost by differential evolution within the declared bounds, and
// reports the optimum against the baseline.
//
// All configuration and binding failures surface before any objective
// evaluation. Evaluation-time failures never abort the run; they are
// absorbed as penalty samples. Cancelling ctx stops the search between
// generations and fails the run without a partial result.
func Run(ctx context.Context, settings Settings, specs []ParameterSpec, m *model.Model, eval Evaluator, opts ...Option) (*Result, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	settings, err := normalize(settings)
	if err != nil {
		return nil, err
	}

	binding, err := Bind(m, specs)
	if err != nil {
		return nil, err
	}

	obj := newObjective(m, binding, eval, settings.Penalty, o.progress)

	// Baseline evaluation at the original parameter values, independent
	// of the search.
	baselineX := binding.Baseline()
	baseline := Solution{
		Params: baselineX,
		Value:  obj.evaluate(obj.reserve(), baselineX),
	}

	if o.logger != nil {
		o.logger.Info("optimization started", map[string]interface{}{
			"dimension":     binding.Dim(),
			"baseline_cost": baseline.Value,
		})
	}

	drv := newDriver(settings, binding, obj, o.logger)
	optimal, generations, converged, err := drv.run(ctx)
	if err != nil {
		return nil, err
	}

	result := Report(binding, baseline, optimal, obj.history(), generations, converged)

	if o.logger != nil {
		o.logger.Info("optimization finished", map[string]interface{}{
			"generations":  generations,
			"converged":    converged,
			"evaluations":  len(result.History),
			"optimal_cost": optimal.Value,
		})
	}
	return result, nil
}
