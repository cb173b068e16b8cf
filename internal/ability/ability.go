// Package ability defines the contract workflow steps dispatch through and the registry holding them.
package ability

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Adam-Huang/reflect/internal/model"
)

// Call is one invocation: the step's resolved parameters, plus the workflow
// environment for abilities registered WithEnvironment.
type Call struct {
	Params      map[string]any
	Environment model.Environment
}

// Result is what an ability produced. A non-empty Followup is run as a nested workflow.
type Result struct {
	Value    any
	Followup string
}

// Value wraps a bare result with no followup.
func Value(v any) Result { return Result{Value: v} }

// Ability is a named capability a workflow step can invoke.
type Ability interface {
	Invoke(ctx context.Context, call Call) (Result, error)
}

// Func adapts a function to Ability.
type Func func(ctx context.Context, call Call) (Result, error)

func (f Func) Invoke(ctx context.Context, call Call) (Result, error) { return f(ctx, call) }

// Option configures a registration.
type Option func(*entry)

// WithEnvironment gives the ability the running workflow environment.
func WithEnvironment() Option {
	return func(e *entry) { e.wantsEnv = true }
}

// WithDescription documents the ability for prompts and listings.
func WithDescription(desc string) Option {
	return func(e *entry) { e.description = desc }
}

type entry struct {
	ability     Ability
	wantsEnv    bool
	description string
}

// Registry maps action names to abilities. Build one at startup and hand it to the engine.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces an ability.
func (r *Registry) Register(name string, a Ability, opts ...Option) {
	e := entry{ability: a}
	for _, opt := range opts {
		opt(&e)
	}
	r.entries[name] = e
}

// RegisterFunc is Register for a plain function.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, call Call) (Result, error), opts ...Option) {
	r.Register(name, Func(fn), opts...)
}

// Lookup returns the ability and whether it wants the environment.
func (r *Registry) Lookup(name string) (a Ability, wantsEnv bool, ok bool) {
	e, ok := r.entries[name]
	return e.ability, e.wantsEnv, ok
}

// Info describes a registered ability.
type Info struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Environment bool   `json:"environment" yaml:"environment"`
}

// List returns every registered ability sorted by name.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, Info{Name: name, Description: e.description, Environment: e.wantsEnv})
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// --- parameter helpers ---

// String returns params[key] as a string. Non-string values are formatted.
func String(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Int returns params[key] as an int, accepting JSON numbers and numeric strings.
func Int(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %s: want a number, got %T", key, v)
	}
}

// RequireString is String that fails when the key is missing.
func RequireString(params map[string]any, key string) (string, error) {
	s, ok := String(params, key)
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	return s, nil
}
