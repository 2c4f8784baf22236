// Package tools implements the display-tool registry: a fixed,
// code-defined set of tools whose "execution" is the identity function on
// their validated arguments, echoed back for client rendering.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

const maxArgsSize = 1 << 20 // 1 MiB; display-tool arguments are small structured data

// Descriptor is one registered tool: its name, its JSON Schema (sent
// upstream as-is, and compiled once for validating finalized arguments),
// and its handler.
type Descriptor struct {
	Name        string
	Description string
	Schema      json.RawMessage

	compiled *jsonschemav5.Schema
	handler  func(args json.RawMessage) (json.RawMessage, error)
}

// Registry is a read-only-after-construction, concurrency-safe set of
// tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor
}

// NewRegistry builds a registry holding the built-in display tools.
func NewRegistry() *Registry {
	r := &Registry{tools: map[string]*Descriptor{}}
	for _, d := range builtinDisplayTools() {
		r.mustRegister(d)
	}
	return r
}

func (r *Registry) mustRegister(d *Descriptor) {
	compiled, err := compileSchema(d.Name, d.Schema)
	if err != nil {
		panic(fmt.Sprintf("tools: invalid schema for %q: %v", d.Name, err))
	}
	d.compiled = compiled
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[d.Name] = d
}

// Get returns the descriptor for name, or false if unregistered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Subset returns the declarations for the named tools, in the order
// given, skipping names that aren't registered. An empty or nil names
// list means no tools are enabled.
func (r *Registry) Subset(names []string) []*Descriptor {
	if len(names) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		if d, ok := r.tools[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Execute validates args against the tool's declared schema, then invokes
// its handler. A schema mismatch or handler error both surface as plain
// errors; the caller (the chat agent) is responsible for turning that into
// a ToolFailure event.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if len(args) > maxArgsSize {
		return nil, fmt.Errorf("tool %q: arguments exceed %d bytes", name, maxArgsSize)
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, fmt.Errorf("tool %q: arguments are not valid JSON: %w", name, err)
	}
	if err := d.compiled.Validate(decoded); err != nil {
		return nil, fmt.Errorf("tool %q: arguments do not match schema: %w", name, err)
	}

	return d.handler(args)
}

// compileSchema compiles a raw JSON Schema document for validation,
// caching the compiled schema by tool name.
var schemaCache sync.Map // map[string]*jsonschemav5.Schema

func compileSchema(name string, schema json.RawMessage) (*jsonschemav5.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschemav5.Schema), nil
	}

	compiler := jsonschemav5.NewCompiler()
	resourceName := name + ".schema.json"
	if err := compiler.AddResource(resourceName, strings.NewReader(string(schema))); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(name, compiled)
	return compiled, nil
}

// schemaFor reflects a typed argument struct into JSON Schema, matching
// the config package's reflection-based schema generation.
func schemaFor(v any) json.RawMessage {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: failed to marshal reflected schema: %v", err))
	}
	return data
}
