package optimize

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2econ/h2opt/internal/model"
)

func TestObjectiveSnapshotPerEvaluation(t *testing.T) {
	m, path := singleParamModel(1.5)
	binding, err := Bind(m, []ParameterSpec{{Path: path, Lower: 0, Upper: 3}})
	require.NoError(t, err)

	// The evaluator sees the mutated snapshot, never the base model.
	var seen []float64
	obj := newObjective(m, binding, EvaluatorFunc(func(snap *model.Model) (float64, error) {
		x, err := snap.Get(path)
		if err != nil {
			return 0, err
		}
		seen = append(seen, x)
		// Mutating the snapshot must not leak anywhere.
		return x, snap.Set(path, -1)
	}), DefaultPenalty, nil)

	obj.evaluate(obj.reserve(), []float64{2.0})
	obj.evaluate(obj.reserve(), []float64{2.5})

	assert.Equal(t, []float64{2.0, 2.5}, seen)
	base, err := m.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, base, "base model must stay untouched")
}

func TestObjectivePenaltyOnFailure(t *testing.T) {
	m, path := singleParamModel(1.5)
	binding, err := Bind(m, []ParameterSpec{{Path: path, Lower: 0, Upper: 3}})
	require.NoError(t, err)

	obj := newObjective(m, binding, EvaluatorFunc(func(*model.Model) (float64, error) {
		return 0, fmt.Errorf("infeasible")
	}), 1234.5, nil)

	got := obj.evaluate(obj.reserve(), []float64{1.0})
	assert.Equal(t, 1234.5, got)

	history := obj.history()
	require.Len(t, history, 1)
	assert.True(t, history[0].Failed)
	assert.Equal(t, 1234.5, history[0].Value)
}

func TestObjectivePenalizesNonFiniteValues(t *testing.T) {
	m, path := singleParamModel(1.5)
	binding, err := Bind(m, []ParameterSpec{{Path: path, Lower: 0, Upper: 3}})
	require.NoError(t, err)

	values := []float64{math.NaN(), math.Inf(1), math.Inf(-1)}
	i := 0
	obj := newObjective(m, binding, EvaluatorFunc(func(*model.Model) (float64, error) {
		v := values[i]
		i++
		return v, nil
	}), DefaultPenalty, nil)

	for range values {
		got := obj.evaluate(obj.reserve(), []float64{1.0})
		assert.Equal(t, DefaultPenalty, got)
	}
	for _, rec := range obj.history() {
		assert.True(t, rec.Failed)
	}
}

func TestObjectiveRecordsCopyParams(t *testing.T) {
	m, path := singleParamModel(1.5)
	binding, err := Bind(m, []ParameterSpec{{Path: path, Lower: 0, Upper: 3}})
	require.NoError(t, err)

	obj := newObjective(m, binding, EvaluatorFunc(func(snap *model.Model) (float64, error) {
		return snap.Get(path)
	}), DefaultPenalty, nil)

	x := []float64{2.0}
	obj.evaluate(obj.reserve(), x)
	x[0] = 99

	history := obj.history()
	require.Len(t, history, 1)
	assert.Equal(t, []float64{2.0}, history[0].Params, "records must not alias caller vectors")
}
