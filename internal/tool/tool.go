// Package tool provides the built-in executors that tool-action steps
// dispatch to.
package tool

import (
	"context"
	"sort"
)

// Spec describes a tool to the planner and to API clients. Parameters
// is a JSON Schema fragment.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Executor is the interface every tool implements.
type Executor interface {
	Spec() Spec
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Result holds one tool invocation's output.
type Result struct {
	Title    string
	Output   string
	Metadata map[string]any
	Error    error
}

// Registry holds the available tools, keyed by name.
type Registry struct {
	tools map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Executor)}
}

func (r *Registry) Register(t Executor) {
	r.tools[t.Spec().Name] = t
}

func (r *Registry) Get(name string) (Executor, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns every registered tool's spec, sorted by name.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute dispatches to the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return &Result{Error: ErrToolNotFound}, ErrToolNotFound
	}
	return t.Execute(ctx, args)
}

// DefaultRegistry wires the built-in tools rooted at workDir.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewBash(workDir))
	r.Register(NewReadFile())
	r.Register(NewWriteFile())
	r.Register(NewGlob(workDir))
	r.Register(NewListDir(workDir))
	r.Register(NewWebFetch())
	r.Register(NewWebSearch())
	return r
}

type toolError string

func (e toolError) Error() string { return string(e) }

const (
	ErrToolNotFound toolError = "tool not found"
	ErrInvalidArgs  toolError = "invalid arguments"
)
