package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	m := plantModel()
	binding, err := Bind(m, []ParameterSpec{
		{Path: plantPath("Capital Cost"), Name: "capital", Lower: 200, Upper: 600},
		{Path: plantPath("Efficiency"), Name: "efficiency", Lower: 0.5, Upper: 0.8},
	})
	require.NoError(t, err)

	baseline := Solution{Params: []float64{450, 0.65}, Value: 4.0}
	optimal := Solution{Params: []float64{300, 0.8}, Value: 3.0}

	result := Report(binding, baseline, optimal, nil, 12, true)

	assert.Equal(t, 1.0, result.Reduction)
	assert.Equal(t, 25.0, result.ReductionPercent)
	assert.Equal(t, 12, result.Generations)
	assert.True(t, result.Converged)

	require.Len(t, result.Parameters, 2)
	assert.Equal(t, Comparison{
		Name:     "capital",
		Path:     plantPath("Capital Cost"),
		Baseline: 450,
		Optimal:  300,
		Lower:    200,
		Upper:    600,
	}, result.Parameters[0])
	assert.Equal(t, "efficiency", result.Parameters[1].Name)
}

func TestReportZeroBaseline(t *testing.T) {
	m := plantModel()
	binding, err := Bind(m, []ParameterSpec{
		{Path: plantPath("Capital Cost"), Name: "capital", Lower: 200, Upper: 600},
	})
	require.NoError(t, err)

	baseline := Solution{Params: []float64{450}, Value: 0.0}
	optimal := Solution{Params: []float64{300}, Value: -1.0}

	result := Report(binding, baseline, optimal, nil, 1, false)

	assert.Equal(t, 1.0, result.Reduction)
	assert.Equal(t, 0.0, result.ReductionPercent, "relative reduction is undefined for a zero baseline")
}
