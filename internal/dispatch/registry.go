// Package dispatch implements the action dispatcher and the two
// registries of spec §4.L: a pure function registry (condition
// FunctionAtoms and Set expressions) and an effectful handler registry
// (Custom actions).
//
// Grounded on _examples/smilemakc-mbflow's internal/node/registry.go
// (RWMutex-guarded map[string]T registry with Register/Get/List) for
// both registries' shape, and on backend/internal/application/engine
// /retry_policy.go for the optional retry wrapper around Custom
// invocation.
package dispatch

import (
	"sync"

	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/value"
)

// FunctionFn is a pure function usable from condition FunctionAtoms and
// Set value expressions: (args, fact view) -> Value.
type FunctionFn func(args []value.Value, view fact.Mutator) (value.Value, error)

// FunctionRegistry is the name -> pure function table of spec §4.L.
type FunctionRegistry struct {
	mu  sync.RWMutex
	fns map[string]FunctionFn
}

// NewFunctionRegistry builds an empty function registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{fns: make(map[string]FunctionFn)}
}

// Register adds or replaces a named function.
func (r *FunctionRegistry) Register(name string, fn FunctionFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Get looks up a named function.
func (r *FunctionRegistry) Get(name string) (FunctionFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// List returns the registered function names.
func (r *FunctionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fns))
	for n := range r.fns {
		out = append(out, n)
	}
	return out
}

// Params is the parameter bag handed to an action handler. It accepts
// both positional ("0", "1", ...) and named keys, per spec §4.L.
type Params map[string]value.Value

// HandlerFn is a Custom-action effectful handler: (params, fact
// mutator) -> result value, error. Errors are recorded by the engine;
// execution continues (spec §4.L).
type HandlerFn func(params Params, view fact.Mutator) (value.Value, error)

// HandlerRegistry is the name -> effectful handler table of spec §4.L.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFn
}

// NewHandlerRegistry builds an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]HandlerFn)}
}

// Register adds or replaces a named handler.
func (r *HandlerRegistry) Register(name string, fn HandlerFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Get looks up a named handler.
func (r *HandlerRegistry) Get(name string) (HandlerFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

func requireHandler(r *HandlerRegistry, name string) (HandlerFn, error) {
	fn, ok := r.Get(name)
	if !ok {
		return nil, errs.New(errs.CodeUnknownHandler, "unknown action handler: "+name, nil)
	}
	return fn, nil
}
