// Package dcf implements a discounted-cash-flow levelized cost evaluator
// for hydrogen production cost models.
//
// The evaluator is a pure function of a cost model snapshot: it reads the
// financial inputs and plant parameters, annualizes total capital through
// the capital recovery factor, and spreads annual costs over the plant's
// hydrogen output. It holds no state across calls and never mutates the
// snapshot it is handed.
package dcf

import (
	"fmt"
	"math"

	"github.com/h2econ/h2opt/internal/model"
)

// Well-known cost model sections and entries.
const (
	SectionFinancial = "Financial Input Values"
	SectionTechnical = "Technical Operating Parameters"

	EntryDiscountRate   = "Discount Rate"
	EntryPlantLife      = "Plant Life"
	EntryPlantCapacity  = "Plant Design Capacity"
	EntryCapacityFactor = "Operating Capacity Factor"

	// SectionDirectCapital and SectionIndirectCapital entries are summed
	// into total installed capital ($). SectionFixedOperating entries are
	// $/yr; SectionVariableOperating entries are $/kg.
	SectionDirectCapital     = "Direct Capital Costs"
	SectionIndirectCapital   = "Indirect Capital Costs"
	SectionFixedOperating    = "Fixed Operating Costs"
	SectionVariableOperating = "Variable Operating Costs"
)

const daysPerYear = 365.0

// Evaluator computes the levelized cost of hydrogen in $/kg.
type Evaluator struct{}

// New returns a levelized cost evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate returns the levelized cost of hydrogen for the model. It fails
// when a required input is missing or the cash-flow schedule is not
// computable (zero output, negative discounting, non-finite inputs); the
// optimization engine converts such failures into penalty samples.
func (e *Evaluator) Evaluate(m *model.Model) (float64, error) {
	rate, err := required(m, SectionFinancial, EntryDiscountRate)
	if err != nil {
		return 0, err
	}
	life, err := required(m, SectionFinancial, EntryPlantLife)
	if err != nil {
		return 0, err
	}
	capacity, err := required(m, SectionTechnical, EntryPlantCapacity)
	if err != nil {
		return 0, err
	}
	factor, err := required(m, SectionTechnical, EntryCapacityFactor)
	if err != nil {
		return 0, err
	}

	if rate < 0 || life <= 0 {
		return 0, fmt.Errorf("dcf: discount rate %v / plant life %v outside computable range", rate, life)
	}
	annualOutput := capacity * daysPerYear * factor
	if annualOutput <= 0 {
		return 0, fmt.Errorf("dcf: annual hydrogen output %v kg is not positive", annualOutput)
	}

	capital := sumSection(m, SectionDirectCapital) + sumSection(m, SectionIndirectCapital)
	fixed := sumSection(m, SectionFixedOperating)
	variable := sumSection(m, SectionVariableOperating)

	crf := capitalRecoveryFactor(rate, life)
	cost := (crf*capital+fixed)/annualOutput + variable
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, fmt.Errorf("dcf: levelized cost is not finite")
	}
	return cost, nil
}

// capitalRecoveryFactor annualizes a present capital sum over n years at
// discount rate r. The r == 0 limit is straight-line recovery.
func capitalRecoveryFactor(r, n float64) float64 {
	if r == 0 {
		return 1 / n
	}
	growth := math.Pow(1+r, n)
	return r * growth / (growth - 1)
}

func required(m *model.Model, section, entry string) (float64, error) {
	return m.Get(model.Path{Section: section, Entry: entry, Leaf: model.ValueLeaf})
}

// sumSection adds up every numeric entry of the section. A missing
// section contributes zero; free-text entries are skipped.
func sumSection(m *model.Model, section string) float64 {
	entries, ok := m.Entries(section)
	if !ok {
		return 0
	}
	total := 0.0
	for _, entry := range entries {
		f, ok := m.Field(section, entry)
		if ok && f.Numeric {
			total += f.Value
		}
	}
	return total
}
