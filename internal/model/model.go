// Package model implements the in-memory hierarchical cost model store.
//
// A Model is a tree of named sections, each holding named entries. An entry
// carries either a numeric value or free text, plus unit and comment
// metadata the engine never interprets. All reads and writes go through
// exact path matching; there is no partial or fuzzy lookup, and no unit
// conversion.
package model

import "sort"

// Field is a single entry of a cost model section.
type Field struct {
	// Value holds the numeric value when Numeric is true.
	Value float64
	// Text holds the raw value for non-numeric entries.
	Text string
	// Numeric reports whether the field holds a number.
	Numeric bool
	// Unit and Comment are free-text metadata carried through unchanged.
	Unit    string
	Comment string
}

// Number returns a numeric field with the given value and unit.
func Number(value float64, unit string) Field {
	return Field{Value: value, Unit: unit, Numeric: true}
}

// Text returns a free-text field.
func Text(text string) Field {
	return Field{Text: text}
}

// Model is the hierarchical cost model store.
type Model struct {
	sections map[string]map[string]*Field
}

// New returns an empty model.
func New() *Model {
	return &Model{sections: make(map[string]map[string]*Field)}
}

// AddField inserts or replaces the entry at (section, entry).
func (m *Model) AddField(section, entry string, f Field) {
	sec, ok := m.sections[section]
	if !ok {
		sec = make(map[string]*Field)
		m.sections[section] = sec
	}
	c := f
	sec[entry] = &c
}

// lookup resolves a path to its field, reporting the first missing segment.
func (m *Model) lookup(p Path) (*Field, error) {
	sec, ok := m.sections[p.Section]
	if !ok {
		return nil, &PathNotFoundError{Path: p, Segment: p.Section}
	}
	f, ok := sec[p.Entry]
	if !ok {
		return nil, &PathNotFoundError{Path: p, Segment: p.Entry}
	}
	if p.Leaf != ValueLeaf {
		return nil, &PathNotFoundError{Path: p, Segment: p.Leaf}
	}
	return f, nil
}

// Get returns the numeric value stored at the path. It fails with
// PathNotFoundError if any hierarchy segment is absent, and with
// TypeMismatchError if the field holds free text.
func (m *Model) Get(p Path) (float64, error) {
	f, err := m.lookup(p)
	if err != nil {
		return 0, err
	}
	if !f.Numeric {
		return 0, &TypeMismatchError{Path: p}
	}
	return f.Value, nil
}

// Set writes a numeric value at the path. The failure modes match Get:
// missing segments fail with PathNotFoundError and non-numeric targets
// with TypeMismatchError. Values are written as-is, without range checks.
func (m *Model) Set(p Path, value float64) error {
	f, err := m.lookup(p)
	if err != nil {
		return err
	}
	if !f.Numeric {
		return &TypeMismatchError{Path: p}
	}
	f.Value = value
	return nil
}

// Snapshot returns an independent deep copy of the model, suitable for
// mutation concurrently with reads of the receiver.
func (m *Model) Snapshot() *Model {
	snap := New()
	for name, sec := range m.sections {
		dst := make(map[string]*Field, len(sec))
		for entry, f := range sec {
			c := *f
			dst[entry] = &c
		}
		snap.sections[name] = dst
	}
	return snap
}

// Sections returns the section names in sorted order.
func (m *Model) Sections() []string {
	names := make([]string, 0, len(m.sections))
	for name := range m.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the entry names of a section in sorted order. The second
// return value is false if the section does not exist.
func (m *Model) Entries(section string) ([]string, bool) {
	sec, ok := m.sections[section]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(sec))
	for name := range sec {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, true
}

// Field returns a copy of the entry at (section, entry).
func (m *Model) Field(section, entry string) (Field, bool) {
	sec, ok := m.sections[section]
	if !ok {
		return Field{}, false
	}
	f, ok := sec[entry]
	if !ok {
		return Field{}, false
	}
	return *f, true
}
