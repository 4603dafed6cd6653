package optimize

import (
	"github.com/h2econ/h2opt/internal/model"
)

// Binding is the result of resolving a parameter list against a cost
// model: ordered bounds, the baseline values read from the model, and
// path handles validated once so the hot evaluation path never re-parses
// or re-validates paths.
type Binding struct {
	specs    []ParameterSpec
	lower    []float64
	upper    []float64
	baseline []float64
}

// Bind validates every parameter against the model and returns the
// binding. It fails with a configuration error when no parameters are
// declared, with the model's PathNotFoundError or TypeMismatchError when
// a path does not resolve to a numeric field, and with a validation error
// when a lower bound exceeds its upper bound. Equal bounds are permitted
// and pin the parameter. All failures surface before any objective
// evaluation takes place.
func Bind(m *model.Model, specs []ParameterSpec) (*Binding, error) {
	if len(specs) == 0 {
		return nil, configErrorf("no optimization parameters declared")
	}

	b := &Binding{
		specs:    append([]ParameterSpec(nil), specs...),
		lower:    make([]float64, len(specs)),
		upper:    make([]float64, len(specs)),
		baseline: make([]float64, len(specs)),
	}
	for i, spec := range specs {
		value, err := m.Get(spec.Path)
		if err != nil {
			return nil, err
		}
		if spec.Lower > spec.Upper {
			return nil, validationErrorf(spec.Path.String(),
				"lower bound %v exceeds upper bound %v", spec.Lower, spec.Upper)
		}
		b.lower[i] = spec.Lower
		b.upper[i] = spec.Upper
		b.baseline[i] = value
	}
	return b, nil
}

// Dim returns the number of bound parameters.
func (b *Binding) Dim() int {
	return len(b.specs)
}

// Specs returns the parameter specs in binding order.
func (b *Binding) Specs() []ParameterSpec {
	return b.specs
}

// Bounds returns the ordered lower and upper bound vectors.
func (b *Binding) Bounds() (lower, upper []float64) {
	return b.lower, b.upper
}

// Baseline returns a copy of the baseline values read at bind time, in
// spec order.
func (b *Binding) Baseline() []float64 {
	return append([]float64(nil), b.baseline...)
}

// Apply writes each component of x to its parameter path in the model, in
// spec order. The vector length must match the binding's dimension;
// out-of-bound components are written as-is, since bound enforcement is
// the search driver's job and diagnostic evaluation outside the declared
// box is legitimate.
func (b *Binding) Apply(m *model.Model, x []float64) error {
	if len(x) != len(b.specs) {
		return dimensionErrorf("vector has %d components, binding has %d parameters", len(x), len(b.specs))
	}
	for i, spec := range b.specs {
		if err := m.Set(spec.Path, x[i]); err != nil {
			return err
		}
	}
	return nil
}
