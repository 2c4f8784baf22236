// Package agentregistry holds the process-wide, read-only-after-startup
// table of named pre-built agents, mirroring the declarative-table
// pattern used elsewhere in this codebase for static per-key config.
package agentregistry

import (
	"fmt"
	"strings"
)

// Descriptor is one named agent: its display prompt, model, tool set, and
// whether it streams.
type Descriptor struct {
	Name         string
	DisplayName  string
	Model        string
	SystemPrompt string
	Tools        []string
	Streaming    bool
}

// Registry is a read-only, name-keyed lookup of Descriptors built once at
// startup from a fixed table — no runtime mutation.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// New builds a registry from the built-in descriptor table.
func New() *Registry {
	return newFromTable(builtinAgents())
}

func newFromTable(descriptors []Descriptor) *Registry {
	r := &Registry{byName: map[string]Descriptor{}}
	for _, d := range descriptors {
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Lookup returns the descriptor for name, or an error listing the
// available names if name isn't registered — the error text matches the
// in-band message the chat handler emits verbatim.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown agent '%s'; available: [%s]", name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// Names returns the registered agent names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every registered descriptor in registration order, for
// callers (the "agents list" CLI command) that need more than the name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// builtinAgents is the declarative table registered at process start.
func builtinAgents() []Descriptor {
	return []Descriptor{
		{
			Name:         "main",
			DisplayName:  "Main",
			SystemPrompt: "You are a helpful, general-purpose assistant.",
			Streaming:    true,
		},
		{
			Name:         "research",
			DisplayName:  "Research",
			SystemPrompt: "You are a research assistant. Investigate thoroughly, cite sources, and prefer analytical, structured answers.",
			Tools:        []string{"generateChart", "generateCard"},
			Streaming:    true,
		},
		{
			Name:         "code_review",
			DisplayName:  "Code Review",
			SystemPrompt: "You are a code reviewer. Focus on correctness, readability, and measurable code-quality metrics; be direct and specific.",
			Tools:        []string{"generateCode", "generateCard"},
			Streaming:    true,
		},
	}
}
