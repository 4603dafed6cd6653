// Package optimize implements the cost optimization engine: parameter
// binding against a cost model, the objective adapter around an external
// levelized-cost evaluator, a bound-constrained differential-evolution
// search driver, and result reporting.
package optimize

import (
	"github.com/h2econ/h2opt/internal/model"
)

// MethodDifferentialEvolution is the only search method the engine defines.
const MethodDifferentialEvolution = "differential_evolution"

// DefaultPenalty is the finite cost substituted for samples the evaluator
// cannot price. It must dominate any attainable feasible cost.
const DefaultPenalty = 1e6

// Evaluator computes the levelized cost of a cost model snapshot. It must
// be callable repeatedly and reentrantly, and must not retain or mutate
// state outside the snapshot it is handed.
type Evaluator interface {
	Evaluate(m *model.Model) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(m *model.Model) (float64, error)

func (f EvaluatorFunc) Evaluate(m *model.Model) (float64, error) {
	return f(m)
}

// ParameterSpec declares a single numeric cost model field subject to
// optimization. Immutable after load.
type ParameterSpec struct {
	// Path locates the field in the cost model.
	Path model.Path
	// Name is the human-readable display name used in reports.
	Name string
	// Lower and Upper bound the search box for this parameter. Equal
	// bounds pin the parameter to a fixed value.
	Lower float64
	Upper float64
}

// Settings holds the optimization run configuration.
type Settings struct {
	// Method selects the search algorithm. Empty defaults to
	// differential evolution, the only defined method.
	Method string
	// MaxIterations caps the number of generations. Defaults to 1000.
	MaxIterations int
	// PopulationSize is the population multiplier: the population holds
	// PopulationSize × dimension members (with a floor of 5). Defaults
	// to 15.
	PopulationSize int
	// Tolerance is the convergence tolerance on the population's
	// objective spread. Must be non-negative.
	Tolerance float64
	// Seed, when non-nil, makes the run fully reproducible: identical
	// seed and settings yield bit-identical results and evaluation order.
	Seed *int64
	// Workers bounds concurrent objective evaluations within a
	// generation. Zero or negative uses GOMAXPROCS.
	Workers int
	// Mutation is the differential weight F. Zero defaults to 0.8.
	Mutation float64
	// Crossover is the crossover probability CR. Zero defaults to 0.9.
	Crossover float64
	// Penalty substitutes for failed evaluations. Zero defaults to
	// DefaultPenalty.
	Penalty float64
}

// Evaluation is one record of the append-only progress log: the sampled
// vector, its objective value, and a monotonically increasing sequence
// index assigned when the evaluation is dispatched.
type Evaluation struct {
	Seq    int
	Params []float64
	Value  float64
	// Failed marks samples the evaluator could not price; Value then
	// holds the penalty.
	Failed bool
}

// Solution is a parameter vector with its objective value.
type Solution struct {
	Params []float64
	Value  float64
}

// Comparison pairs a parameter's baseline and optimized value for
// presentation.
type Comparison struct {
	Name     string
	Path     model.Path
	Baseline float64
	Optimal  float64
	Lower    float64
	Upper    float64
}

// Result is the outcome of one optimization run.
type Result struct {
	Baseline Solution
	Optimal  Solution
	// Reduction is baseline cost minus optimal cost.
	Reduction float64
	// ReductionPercent is the relative reduction. Zero when the baseline
	// cost is zero.
	ReductionPercent float64
	Parameters       []Comparison
	History          []Evaluation
	Generations      int
	Converged        bool
}

// ProgressFunc is invoked once per evaluation with the sequence index, the
// sampled vector (not retained by the engine after the call) and the
// objective value.
type ProgressFunc func(seq int, x []float64, value float64)
