// Package rules holds the hand-authored rule catalog: extra checklist lines
// per process identifier, the shared label dictionary those lines may refer
// to, and the process migration map.
//
// A Catalog is read-only once constructed and safe for concurrent use.
package rules

import (
	_ "embed"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/procreport/pkg/errors"
)

//go:embed rules.yaml
var defaultRules []byte

// Kind tags a rule reference.
type Kind int

const (
	// Literal is checklist text used as-is.
	Literal Kind = iota
	// Key refers to an entry of the label dictionary.
	Key
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Key {
		return "key"
	}
	return "literal"
}

// Ref is one rule reference of a process entry.
type Ref struct {
	Kind  Kind
	Value string
}

// LiteralRef returns a literal rule reference.
func LiteralRef(text string) Ref { return Ref{Kind: Literal, Value: text} }

// KeyRef returns a label key rule reference.
func KeyRef(key string) Ref { return Ref{Kind: Key, Value: key} }

// Catalog is the resolved rule catalog.
type Catalog struct {
	labels     map[string]string
	processes  map[string][]Ref
	migrations Migrations
}

// file is the YAML layout of a catalog.
type file struct {
	Labels     map[string]string   `yaml:"labels"`
	Migrations map[string]string   `yaml:"migrations"`
	Processes  map[string][]string `yaml:"processes"`
}

// New builds a catalog from already classified references.
func New(labels map[string]string, processes map[string][]Ref, migrations Migrations) *Catalog {
	c := &Catalog{
		labels:     maps.Clone(labels),
		processes:  make(map[string][]Ref, len(processes)),
		migrations: maps.Clone(migrations),
	}
	if c.labels == nil {
		c.labels = map[string]string{}
	}
	if c.migrations == nil {
		c.migrations = Migrations{}
	}
	for id, refs := range processes {
		c.processes[id] = slices.Clone(refs)
	}
	return c
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	c, err := Parse(defaultRules)
	if err != nil {
		return nil, errors.NewConfigError("rules", "embedded catalog is invalid", err)
	}
	return c, nil
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.NewConfigError("rules", "cannot load "+path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog. Process entries equal to a label key become
// Key references; everything else is Literal.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", "rules", err)
	}

	for key, label := range f.Labels {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(label) == "" {
			return nil, errors.NewValidationError("labels", key, "label keys and texts must not be empty")
		}
	}
	targets := make(map[string]string, len(f.Migrations))
	for from, to := range f.Migrations {
		if prev, dup := targets[to]; dup {
			return nil, errors.NewValidationError("migrations", from, "target "+to+" is already the replacement for "+prev)
		}
		targets[to] = from
		if from == "" || to == "" {
			return nil, errors.NewValidationError("migrations", from, "migration source and target must not be empty")
		}
		if from == to {
			return nil, errors.NewValidationError("migrations", from, "process cannot migrate to itself")
		}
	}

	processes := make(map[string][]Ref, len(f.Processes))
	for id, entries := range f.Processes {
		refs := make([]Ref, 0, len(entries))
		for _, entry := range entries {
			if entry == "" {
				return nil, errors.NewValidationError("processes."+id, entry, "rule text must not be empty")
			}
			if _, ok := f.Labels[entry]; ok {
				refs = append(refs, KeyRef(entry))
			} else {
				refs = append(refs, LiteralRef(entry))
			}
		}
		processes[id] = refs
	}

	return New(f.Labels, processes, f.Migrations), nil
}

// Label expands key through the label dictionary; unknown keys are returned
// unchanged.
func (c *Catalog) Label(key string) string {
	if label, ok := c.labels[key]; ok {
		return label
	}
	return key
}

// Resolve returns the display text of a reference.
func (c *Catalog) Resolve(ref Ref) string {
	if ref.Kind == Key {
		return c.Label(ref.Value)
	}
	return ref.Value
}

// Refs returns the references registered for a process, in order.
func (c *Catalog) Refs(processID string) []Ref {
	return slices.Clone(c.processes[processID])
}

// Lines returns the expanded checklist texts for a process, in order. The
// result is empty for unknown identifiers.
func (c *Catalog) Lines(processID string) []string {
	refs := c.processes[processID]
	lines := make([]string, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, c.Resolve(ref))
	}
	return lines
}

// ProcessIDs returns the identifiers with registered rules, sorted.
func (c *Catalog) ProcessIDs() []string {
	return slices.Sorted(maps.Keys(c.processes))
}

// Labels returns a copy of the label dictionary.
func (c *Catalog) Labels() map[string]string {
	return maps.Clone(c.labels)
}

// Migrations returns the migration map.
func (c *Catalog) Migrations() Migrations {
	return maps.Clone(c.migrations)
}
