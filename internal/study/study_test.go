package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2econ/h2opt/internal/model"
)

const validStudy = `
model:
  Financial Input Values:
    Discount Rate:
      value: 0.08
    Plant Life:
      value: 20
      unit: years
  Direct Capital Costs:
    Electrolyzer Stacks:
      value: 120.0e6
      unit: $
  Workflow:
    Notes:
      text: PV + electrolysis base case
parameters:
  - path: Direct Capital Costs > Electrolyzer Stacks > Value
    name: Electrolyzer capital
    lower: 60.0e6
    upper: 150.0e6
optimization:
  method: differential_evolution
  max_iterations: 200
  population_size: 15
  tolerance: 1.0e-6
  seed: 42
  workers: 4
`

func TestParseValid(t *testing.T) {
	s, err := Parse([]byte(validStudy))
	require.NoError(t, err)

	m := s.CostModel()
	v, err := m.Get(model.Path{Section: "Financial Input Values", Entry: "Discount Rate", Leaf: model.ValueLeaf})
	require.NoError(t, err)
	assert.Equal(t, 0.08, v)

	f, ok := m.Field("Workflow", "Notes")
	require.True(t, ok)
	assert.False(t, f.Numeric)
	assert.Equal(t, "PV + electrolysis base case", f.Text)

	specs, err := s.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Electrolyzer capital", specs[0].Name)
	assert.Equal(t, "Direct Capital Costs", specs[0].Path.Section)
	assert.Equal(t, 60.0e6, specs[0].Lower)
	assert.Equal(t, 150.0e6, specs[0].Upper)

	settings := s.Settings()
	assert.Equal(t, "differential_evolution", settings.Method)
	assert.Equal(t, 200, settings.MaxIterations)
	require.NotNil(t, settings.Seed)
	assert.Equal(t, int64(42), *settings.Seed)
}

func TestParseDefaultName(t *testing.T) {
	s, err := Parse([]byte(`
model:
  A:
    B:
      value: 1
parameters:
  - path: A > B > Value
    lower: 0
    upper: 2
`))
	require.NoError(t, err)

	specs, err := s.Specs()
	require.NoError(t, err)
	assert.Equal(t, "A > B > Value", specs[0].Name)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "not yaml",
			yaml: "model: [unterminated",
		},
		{
			name: "no model",
			yaml: "parameters: []",
		},
		{
			name: "entry with both value and text",
			yaml: `
model:
  A:
    B:
      value: 1
      text: also text
`,
		},
		{
			name: "entry with neither value nor text",
			yaml: `
model:
  A:
    B:
      unit: $
`,
		},
		{
			name: "bad parameter path",
			yaml: `
model:
  A:
    B:
      value: 1
parameters:
  - path: A > B
    lower: 0
    upper: 1
`,
		},
		{
			name: "non-finite bound",
			yaml: `
model:
  A:
    B:
      value: 1
parameters:
  - path: A > B > Value
    lower: 0
    upper: .inf
`,
		},
		{
			name: "negative tolerance",
			yaml: `
model:
  A:
    B:
      value: 1
optimization:
  tolerance: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
