package dispatch

import (
	"context"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/exprcache"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// Env is the per-action execution context the Dispatcher runs against.
type Env struct {
	Store     *fact.Store
	Bindings  condeval.Bindings
	Functions *FunctionRegistry
	Handlers  *HandlerRegistry
	Retry     RetryPolicy
	Logger    zerolog.Logger
}

// mutatorView adapts a Store to fact.Mutator, the
// restricted view handlers receive (spec §5: "permits reads and dotted
// writes but not topology changes").
type mutatorView struct {
	store *fact.Store
}

func (m mutatorView) Get(h fact.Handle, path value.Path) (value.Value, bool) { return m.store.Get(h, path) }
func (m mutatorView) Set(h fact.Handle, path value.Path, v value.Value) error {
	return m.store.Set(h, path, v)
}

// Dispatcher executes actions (spec §4.L). Built-in kinds (Set, Call,
// MethodCall, Log, Retract) are switched on internally; Custom alone
// goes through the HandlerRegistry.
type Dispatcher struct {
	cache *exprcache.Cache
}

// New builds a Dispatcher with a compiled-expression cache (spec §3
// supplement: condition/Set expression LRU cache).
func New() *Dispatcher {
	return &Dispatcher{cache: exprcache.NewCache(256)}
}

// Run executes a single action against env (spec §4.G step 5).
func (d *Dispatcher) Run(ctx context.Context, action rule.Action, env *Env) error {
	view := mutatorView{store: env.Store}
	switch action.Kind {
	case rule.ActSet:
		return d.runSet(action, env, view)
	case rule.ActCall:
		return d.runCall(action, env, view)
	case rule.ActMethodCall:
		return d.runMethodCall(action, env, view)
	case rule.ActLog:
		env.Logger.Info().Str("action", "log").Msg(action.Message)
		return nil
	case rule.ActRetract:
		h, ok := env.Bindings[action.FactVar]
		if !ok {
			return errs.New(errs.CodeInvalidState, "retract: unbound fact variable "+action.FactVar, nil)
		}
		return env.Store.Retract(h)
	case rule.ActCustom:
		return d.runCustom(ctx, action, env)
	default:
		return errs.New(errs.CodeInvalidState, "unknown action kind", nil)
	}
}

func (d *Dispatcher) runSet(action rule.Action, env *Env, view mutatorView) error {
	factVar, path, ok := splitFirstSegment(action.FieldPath)
	if !ok {
		return errs.New(errs.CodeInvalidInput, "set: field path must be fact.field", nil)
	}
	h, ok := env.Bindings[factVar]
	if !ok {
		return errs.New(errs.CodeInvalidState, "set: unbound fact variable "+factVar, nil)
	}
	v, err := d.evalExpr(action.ValueExpression, env)
	if err != nil {
		return err
	}
	return view.Set(h, value.Path(path), v)
}

func (d *Dispatcher) runCall(action rule.Action, env *Env, view mutatorView) error {
	fn, ok := env.Functions.Get(action.FunctionName)
	if !ok {
		return errs.New(errs.CodeUnknownHandler, "call: unknown function "+action.FunctionName, nil)
	}
	args, err := d.resolveArgs(action.Arguments, env)
	if err != nil {
		return err
	}
	_, err = fn(args, view)
	return err
}

func (d *Dispatcher) runMethodCall(action rule.Action, env *Env, view mutatorView) error {
	fn, ok := env.Functions.Get(action.MethodName)
	if !ok {
		return errs.New(errs.CodeUnknownHandler, "method_call: unknown method "+action.MethodName, nil)
	}
	objVar, path, ok := splitFirstSegment(action.ObjectPath)
	if !ok {
		return errs.New(errs.CodeInvalidInput, "method_call: object path must be fact.field", nil)
	}
	h, ok := env.Bindings[objVar]
	if !ok {
		return errs.New(errs.CodeInvalidState, "method_call: unbound fact variable "+objVar, nil)
	}
	obj, _ := env.Store.Get(h, value.Path(path))
	args, err := d.resolveArgs(action.Arguments, env)
	if err != nil {
		return err
	}
	_, err = fn(append([]value.Value{obj}, args...), view)
	return err
}

func (d *Dispatcher) runCustom(ctx context.Context, action rule.Action, env *Env) error {
	fn, err := requireHandler(env.Handlers, action.FunctionName)
	if err != nil {
		return err
	}
	params := make(Params, len(action.NamedParameters))
	for i, key := range action.Arguments {
		v, err := d.evalExpr(key, env)
		if err != nil {
			return err
		}
		params[strconv.Itoa(i)] = v
	}
	for name, exprSrc := range action.NamedParameters {
		v, err := d.evalExpr(exprSrc, env)
		if err != nil {
			return err
		}
		params[name] = v
	}

	view := mutatorView{store: env.Store}
	policy := env.Retry
	if policy.MaxAttempts == 0 {
		policy = NoRetryPolicy()
	}
	return policy.Run(ctx, func() error {
		_, err := fn(params, view)
		return err
	})
}

func (d *Dispatcher) resolveArgs(exprs []string, env *Env) ([]value.Value, error) {
	out := make([]value.Value, 0, len(exprs))
	for _, e := range exprs {
		v, err := d.evalExpr(e, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// evalExpr compiles (or retrieves from cache) and runs an expr-lang
// expression against an environment built from the current bindings'
// fact snapshots.
func (d *Dispatcher) evalExpr(src string, env *Env) (value.Value, error) {
	program, err := d.cache.Compile(src)
	if err != nil {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "expression compile error", err)
	}
	exprEnv := make(map[string]any, len(env.Bindings))
	for name, h := range env.Bindings {
		snap, ok := env.Store.Snapshot(h)
		if !ok {
			continue
		}
		exprEnv[name] = value.ToGo(snap)
	}
	out, err := expr.Run(program, exprEnv)
	if err != nil {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "expression evaluation error", err)
	}
	return value.FromGo(out), nil
}

func splitFirstSegment(path string) (head, rest string, ok bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return "", "", false
}
