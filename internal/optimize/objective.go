package optimize

import (
	"math"
	"sync"

	"github.com/h2econ/h2opt/internal/model"
)

// objective adapts the external evaluator to a scalar function of a
// parameter vector. Every evaluation runs against its own model snapshot,
// so concurrent calls share no mutable state. Evaluator failures and
// non-finite results are absorbed: the sample is recorded as failed and
// priced at the penalty value, keeping global search alive through
// isolated infeasible points.
type objective struct {
	base     *model.Model
	binding  *Binding
	eval     Evaluator
	penalty  float64
	progress ProgressFunc

	mu      sync.Mutex
	seq     int
	records []Evaluation
}

func newObjective(base *model.Model, binding *Binding, eval Evaluator, penalty float64, progress ProgressFunc) *objective {
	return &objective{
		base:     base,
		binding:  binding,
		eval:     eval,
		penalty:  penalty,
		progress: progress,
	}
}

// reserve assigns the next sequence index. The driver reserves indices in
// deterministic member order before dispatching work, so the progress log
// has the same total order regardless of worker count.
func (o *objective) reserve() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.seq
	o.seq++
	return seq
}

// evaluate prices the vector x under the reserved sequence index.
func (o *objective) evaluate(seq int, x []float64) float64 {
	snap := o.base.Snapshot()
	var cost float64
	err := o.binding.Apply(snap, x)
	if err == nil {
		cost, err = o.eval.Evaluate(snap)
	}

	failed := err != nil || math.IsNaN(cost) || math.IsInf(cost, 0)
	if failed {
		cost = o.penalty
	}

	o.record(seq, x, cost, failed)
	return cost
}

func (o *objective) record(seq int, x []float64, value float64, failed bool) {
	rec := Evaluation{
		Seq:    seq,
		Params: append([]float64(nil), x...),
		Value:  value,
		Failed: failed,
	}

	o.mu.Lock()
	for len(o.records) <= seq {
		o.records = append(o.records, Evaluation{})
	}
	o.records[seq] = rec
	o.mu.Unlock()

	if o.progress != nil {
		o.progress(seq, rec.Params, value)
	}
}

// history returns the evaluation records ordered by sequence index.
func (o *objective) history() []Evaluation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Evaluation(nil), o.records...)
}

// count returns the number of sequence indices handed out so far.
func (o *objective) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq
}
