package report

import (
	"fmt"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/procreport/pkg/processes"
	"github.com/agentstation/procreport/pkg/rules"
)

// Line separators of the rendered document.
const (
	LineBreak      = "\r\n"
	SectionBreak   = LineBreak + LineBreak
	reportTitle    = "# openEO process compliance report"
	versionNote    = "The report is based on openEO processes v2.0.0-rc.1, but also works for previous versions. It may give some hints on migration steps."
	placeholderRow = "- ..."
)

// Process tags shown after a section heading.
const (
	TagCustom       = "custom"
	TagExperimental = "experimental"
)

// Parameter names with dedicated checks.
const (
	paramReducer   = "reducer"
	paramProcess   = "process"
	paramContext   = "context"
	paramDimension = "dimension"
	paramName      = "name"
)

// Documents are the three process listings a report is computed from.
type Documents struct {
	Aggregator processes.List // defines which processes are reported, and their order
	Spec       processes.List
	Backend    processes.List
}

// Section is the checklist of one aggregator process.
type Section struct {
	ProcessID string
	Tags      []string
	Lines     []string // heading included
}

// String joins the section lines.
func (s Section) String() string {
	return strings.Join(s.Lines, LineBreak)
}

// Report is a rendered compliance report.
type Report struct {
	Provider string
	Sections []Section
}

// String returns the markdown document: preamble blocks, then one block per
// section.
func (r *Report) String() string {
	blocks := append([]string{}, preamble()...)
	for _, s := range r.Sections {
		blocks = append(blocks, s.String())
	}
	return strings.Join(blocks, SectionBreak)
}

func preamble() []string {
	return []string{
		reportTitle,
		versionNote,
		strings.Join([]string{md.Bold("Any general known issues:"), placeholderRow}, LineBreak),
		strings.Join([]string{md.Bold("Comments:"), placeholderRow}, LineBreak),
	}
}

// renderer computes sections against one catalog.
type renderer struct {
	catalog    *rules.Catalog
	migrations rules.Migrations
}

func newRenderer(catalog *rules.Catalog) *renderer {
	return &renderer{catalog: catalog, migrations: catalog.Migrations()}
}

// sections returns one section per aggregator process, in aggregator order.
func (r *renderer) sections(docs Documents) []Section {
	out := make([]Section, 0, len(docs.Aggregator))
	for _, agg := range docs.Aggregator {
		out = append(out, r.section(agg.ID, docs))
	}
	return out
}

func (r *renderer) section(id string, docs Documents) Section {
	backend, inBackend := docs.Backend.Find(id)
	spec, inSpec := docs.Spec.Find(id)
	target, renamed := r.migrations.Target(id)

	var tags []string
	if !inSpec && !renamed {
		tags = append(tags, TagCustom)
	}
	if inBackend && backend.Experimental {
		tags = append(tags, TagExperimental)
	}

	heading := "## " + id
	if len(tags) > 0 {
		heading += " (" + strings.Join(tags, ", ") + ")"
	}

	c := &checklist{}
	c.lines = append(c.lines, heading)
	c.item(inBackend, "is supported - Known issues:")

	if renamed {
		c.item(docs.Backend.Contains(target), "Migration to %s is planned or done", md.Code(target))
		if inBackend {
			c.item(backend.Deprecated, "marked as deprecated")
		}
	}

	if inSpec {
		r.specChecks(c, spec, backend)
	}

	for _, line := range r.catalog.Lines(id) {
		c.todo("%s", line)
	}

	return Section{ProcessID: id, Tags: tags, Lines: c.lines}
}

// specChecks adds the lines derived from the specification entry. backend is
// nil when the provider does not list the process.
func (r *renderer) specChecks(c *checklist, spec, backend *processes.Process) {
	inBackend := backend != nil

	if inBackend {
		switch {
		case backend.Experimental && !spec.Experimental:
			c.todo("planned to be stable")
		case spec.Experimental && !backend.Experimental:
			c.todo("marked as experimental")
		}
	}

	for _, p := range spec.Parameters {
		if !p.Deprecated {
			continue
		}
		bp, ok := backend.Parameter(p.Name)
		c.item(ok && bp.Deprecated, "Parameter %s: marked as deprecated", md.Code(p.Name))
	}

	if spec.HasCategory(processes.CategoryCubes) {
		c.todo("has been tested on > 100x100km at 10m resolution (or equivalent)")
	}

	if _, ok := spec.Parameter(paramReducer); ok {
		c.todo("Parameter %s: All processes in the category %s can be used. Missing:", md.Code(paramReducer), md.Code(paramReducer))
	}

	if cb, ok := callbackParameter(spec); ok {
		c.todo("Parameter %s: All processes in the categories %s, %s, %s and %s can be used (in a chain of processes). Missing:",
			md.Code(cb), md.Code("array"), md.Code("comparison"), md.Code("logic"), md.Code("math"))
		if spec.ID != "apply" {
			c.todo("Parameter %s: Supports access to labels in the callback", md.Code(cb))
		}
	}

	if _, ok := backend.Parameter(paramContext); ok {
		c.todo("Parameter %s: is supported and passed to the callback", md.Code(paramContext))
	}

	if dim, ok := dimensionParameter(spec); ok {
		c.todo("Parameter %s: All suitable dimensions are supported", md.Code(dim))
	}

	if !inBackend {
		return
	}
	for _, p := range spec.Parameters {
		if p.Schema.HasEnum() {
			c.todo("Parameter %s: %s reflects implemention (all values are supported)", md.Code(p.Name), md.Code("enum"))
		}
	}
	for _, p := range spec.Parameters {
		if p.Schema.HasSubtype(processes.SubtypeMetadataFilters) {
			c.todo("Parameter %s: All processes in the categories %s, %s and %s can be used.",
				md.Code(p.Name), md.Code("comparison"), md.Code("logic"), md.Code("text"))
		}
	}
	for _, p := range spec.Parameters {
		if p.Schema.HasSubtype(processes.SubtypeBoundingBox) {
			c.todo("Parameter %s: Supports filtering by base/height or schema has been adapted", md.Code(p.Name))
		}
	}
}

// callbackParameter returns "reducer" when the process has one, else
// "process".
func callbackParameter(spec *processes.Process) (string, bool) {
	for _, name := range []string{paramReducer, paramProcess} {
		if _, ok := spec.Parameter(name); ok {
			return name, true
		}
	}
	return "", false
}

// dimensionParameter returns "dimension", or "name" for processes whose
// identifier mentions dimensions.
func dimensionParameter(spec *processes.Process) (string, bool) {
	if _, ok := spec.Parameter(paramDimension); ok {
		return paramDimension, true
	}
	if strings.Contains(spec.ID, paramDimension) {
		if _, ok := spec.Parameter(paramName); ok {
			return paramName, true
		}
	}
	return "", false
}

// checklist accumulates markdown task list items.
type checklist struct {
	lines []string
}

func (c *checklist) item(checked bool, format string, args ...any) {
	box := "[ ]"
	if checked {
		box = "[x]"
	}
	c.lines = append(c.lines, "- "+box+" "+fmt.Sprintf(format, args...))
}

func (c *checklist) todo(format string, args ...any) {
	c.item(false, format, args...)
}
