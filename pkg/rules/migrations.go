package rules

import (
	"maps"
	"slices"
)

// Migrations maps a deprecated process identifier to its replacement.
type Migrations map[string]string

// Target returns the replacement for id.
func (m Migrations) Target(id string) (string, bool) {
	to, ok := m[id]
	return to, ok
}

// IsSource reports whether id has been renamed.
func (m Migrations) IsSource(id string) bool {
	_, ok := m[id]
	return ok
}

// Sources returns the renamed identifiers, sorted.
func (m Migrations) Sources() []string {
	return slices.Sorted(maps.Keys(m))
}
