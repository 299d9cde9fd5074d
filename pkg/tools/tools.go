// Package tools provides the retrieval capabilities callable from the
// sub-agent reasoning loop. Every tool takes one single-line text input and
// returns formatted text; failures carry a stable error kind that the agent
// turns into an observation.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/athenalab/kgrag/pkg/prompt"
)

// Stable error kinds surfaced in observations. Never Go type paths.
const (
	KindTimeout     = "Timeout"
	KindStoreError  = "StoreError"
	KindBadQuery    = "BadQuery"
	KindBadInput    = "BadInput"
	KindUnavailable = "Unavailable"
	KindToolError   = "ToolError"
)

// Error is a classified tool failure.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a stable kind.
func NewError(kind string, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf classifies an error for observation formatting.
func KindOf(err error) string {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindToolError
}

// Tool is one capability callable by the sub-agent.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Registry holds the tools available to one deployment.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns prompt descriptors for every tool, sorted by name.
func (r *Registry) Specs() []prompt.ToolSpec {
	specs := make([]prompt.ToolSpec, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		specs = append(specs, prompt.ToolSpec{Name: t.Name(), Description: t.Description()})
	}
	return specs
}

// UnknownToolObservation names the unknown tool and the available set so the
// model can self-correct.
func (r *Registry) UnknownToolObservation(name string) string {
	return fmt.Sprintf("Error: unknown tool '%s'. Available tools: %v", name, r.Names())
}
