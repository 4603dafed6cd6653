package model

import (
	"fmt"
	"strings"
)

// PathSeparator separates hierarchy levels in a textual parameter path,
// e.g. "Electrolyzer > Capital Cost > Value".
const PathSeparator = ">"

// ValueLeaf is the leaf name of the numeric slot of a field. Parameter
// paths always terminate at this leaf.
const ValueLeaf = "Value"

// Path identifies a single slot in the cost model: a section, an entry
// within that section, and a leaf naming which slot of the entry is
// addressed (normally "Value").
type Path struct {
	Section string
	Entry   string
	Leaf    string
}

// ParsePath parses a textual path of the form "Section > Entry > Value".
// Surrounding whitespace around each level is ignored. The path must have
// exactly three levels.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, PathSeparator)
	if len(parts) != 3 {
		return Path{}, fmt.Errorf("path %q: expected 3 levels separated by %q, got %d", s, PathSeparator, len(parts))
	}
	p := Path{
		Section: strings.TrimSpace(parts[0]),
		Entry:   strings.TrimSpace(parts[1]),
		Leaf:    strings.TrimSpace(parts[2]),
	}
	if p.Section == "" || p.Entry == "" || p.Leaf == "" {
		return Path{}, fmt.Errorf("path %q: empty hierarchy level", s)
	}
	return p, nil
}

// String renders the path in its textual "Section > Entry > Leaf" form.
func (p Path) String() string {
	return p.Section + " " + PathSeparator + " " + p.Entry + " " + PathSeparator + " " + p.Leaf
}
