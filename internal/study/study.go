// Package study defines the declarative optimization study: a cost model,
// the table of parameters to optimize, and the optimization settings.
// Studies are provided as YAML, either from a file or as an API payload.
package study

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/h2econ/h2opt/internal/model"
	"github.com/h2econ/h2opt/internal/optimize"
)

// Entry is one cost model field in a study file. Exactly one of Value or
// Text must be set.
type Entry struct {
	Value   *float64 `yaml:"value"`
	Text    string   `yaml:"text"`
	Unit    string   `yaml:"unit"`
	Comment string   `yaml:"comment"`
}

// Parameter declares one field to optimize, keyed by its model path.
type Parameter struct {
	Path  string  `yaml:"path"`
	Name  string  `yaml:"name"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Optimization carries the search settings.
type Optimization struct {
	Method         string  `yaml:"method"`
	MaxIterations  int     `yaml:"max_iterations"`
	PopulationSize int     `yaml:"population_size"`
	Tolerance      float64 `yaml:"tolerance"`
	Seed           *int64  `yaml:"seed"`
	Workers        int     `yaml:"workers"`
}

// Study is a parsed study definition.
type Study struct {
	Model        map[string]map[string]Entry `yaml:"model"`
	Parameters   []Parameter                 `yaml:"parameters"`
	Optimization Optimization                `yaml:"optimization"`
}

// Parse parses a study from YAML bytes and validates its structure.
// Semantic validation against the cost model (path resolution, bound
// ordering) happens at bind time in the engine.
func Parse(data []byte) (*Study, error) {
	var s Study
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse study yaml: %w", err)
	}
	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}
	return &s, nil
}

// Load reads and parses a study file.
func Load(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func validate(s *Study) error {
	if len(s.Model) == 0 {
		return fmt.Errorf("study has no cost model sections")
	}
	for section, entries := range s.Model {
		for name, e := range entries {
			if e.Value != nil && e.Text != "" {
				return fmt.Errorf("entry %q > %q has both value and text", section, name)
			}
			if e.Value == nil && e.Text == "" {
				return fmt.Errorf("entry %q > %q has neither value nor text", section, name)
			}
			if e.Value != nil && !finite(*e.Value) {
				return fmt.Errorf("entry %q > %q value is not finite", section, name)
			}
		}
	}
	for i, p := range s.Parameters {
		if _, err := model.ParsePath(p.Path); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		if !finite(p.Lower) || !finite(p.Upper) {
			return fmt.Errorf("parameter %q: bounds must be finite", p.Path)
		}
	}
	o := s.Optimization
	if o.MaxIterations < 0 || o.PopulationSize < 0 || o.Workers < 0 {
		return fmt.Errorf("optimization settings must not be negative")
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("optimization tolerance must not be negative")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CostModel builds the cost model store from the study's model table.
func (s *Study) CostModel() *model.Model {
	m := model.New()
	for section, entries := range s.Model {
		for name, e := range entries {
			f := model.Field{Unit: e.Unit, Comment: e.Comment}
			if e.Value != nil {
				f.Value = *e.Value
				f.Numeric = true
			} else {
				f.Text = e.Text
			}
			m.AddField(section, name, f)
		}
	}
	return m
}

// Specs returns the ordered parameter specs declared in the study.
func (s *Study) Specs() ([]optimize.ParameterSpec, error) {
	specs := make([]optimize.ParameterSpec, len(s.Parameters))
	for i, p := range s.Parameters {
		path, err := model.ParsePath(p.Path)
		if err != nil {
			return nil, err
		}
		name := p.Name
		if name == "" {
			name = p.Path
		}
		specs[i] = optimize.ParameterSpec{
			Path:  path,
			Name:  name,
			Lower: p.Lower,
			Upper: p.Upper,
		}
	}
	return specs, nil
}

// Settings returns the engine settings declared in the study.
func (s *Study) Settings() optimize.Settings {
	o := s.Optimization
	return optimize.Settings{
		Method:         o.Method,
		MaxIterations:  o.MaxIterations,
		PopulationSize: o.PopulationSize,
		Tolerance:      o.Tolerance,
		Seed:           o.Seed,
		Workers:        o.Workers,
	}
}
