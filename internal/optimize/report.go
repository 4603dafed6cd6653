package optimize

// Report assembles the optimization result from the baseline and optimal
// solutions. It computes the absolute and relative cost reduction (the
// relative figure is reported as zero when the baseline cost is zero) and
// pairs every optimized value with its spec's display name and baseline
// value. Report never mutates a model.
func Report(binding *Binding, baseline, optimal Solution, history []Evaluation, generations int, converged bool) *Result {
	reduction := baseline.Value - optimal.Value
	percent := 0.0
	if baseline.Value != 0 {
		percent = reduction / baseline.Value * 100
	}

	specs := binding.Specs()
	params := make([]Comparison, len(specs))
	for i, spec := range specs {
		params[i] = Comparison{
			Name:     spec.Name,
			Path:     spec.Path,
			Baseline: baseline.Params[i],
			Optimal:  optimal.Params[i],
			Lower:    spec.Lower,
			Upper:    spec.Upper,
		}
	}

	return &Result{
		Baseline:         baseline,
		Optimal:          optimal,
		Reduction:        reduction,
		ReductionPercent: percent,
		Parameters:       params,
		History:          history,
		Generations:      generations,
		Converged:        converged,
	}
}
