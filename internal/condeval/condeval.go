// Package condeval evaluates a rule.ConditionNode tree against bound
// facts in a fact.Store (spec §4.C). Evaluation is pure: it never
// mutates facts, and never returns an error for data-shape problems —
// those resolve to false, per the contract table.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/executor
// /conditions.go (normalizeValue + compare-operator switch over
// interface{} operands), adapted onto the closed value.Value union and
// a pure snapshot-read discipline instead of live mutation access.
package condeval

import (
	"github.com/expr-lang/expr"

	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/exprcache"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// Bindings maps a condition tree's fact variables (e.g. "x" in "x.Age")
// to the fact handles currently bound to them.
type Bindings map[string]fact.Handle

// Clone returns an independent copy of the bindings map.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// FunctionFn is a built-in FunctionAtom function: it receives the
// resolved argument values and returns a single reduced value.
type FunctionFn func(args []value.Value) (value.Value, error)

// Registry holds the built-in functions available to FunctionAtom nodes
// (spec §4.C / §4.L: len, abs, upper, lower, round ship as built-ins).
type Registry struct {
	fns map[string]FunctionFn
}

// NewRegistry builds a registry pre-populated with the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]FunctionFn)}
	r.fns["len"] = builtinLen
	r.fns["abs"] = builtinAbs
	r.fns["upper"] = builtinUpper
	r.fns["lower"] = builtinLower
	r.fns["round"] = builtinRound
	return r
}

// Register adds or overrides a named function.
func (r *Registry) Register(name string, fn FunctionFn) {
	r.fns[name] = fn
}

func (r *Registry) lookup(name string) (FunctionFn, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// Evaluator evaluates condition trees against a fact store.
type Evaluator struct {
	store *fact.Store
	fns   *Registry
	cache *exprcache.Cache
}

// New builds an Evaluator bound to the given store and function registry.
func New(store *fact.Store, fns *Registry) *Evaluator {
	if fns == nil {
		fns = NewRegistry()
	}
	return &Evaluator{store: store, fns: fns, cache: exprcache.NewCache(256)}
}

// Evaluate runs the condition tree against the given bindings (spec §4.C).
func (e *Evaluator) Evaluate(cond rule.ConditionNode, b Bindings) (bool, error) {
	switch cond.Kind {
	case rule.CondAtom:
		return e.evalAtom(cond, b)
	case rule.CondFunctionAtom:
		return e.evalFunctionAtom(cond, b)
	case rule.CondAnd:
		for _, c := range cond.Children {
			ok, err := e.Evaluate(c, b)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case rule.CondOr:
		for _, c := range cond.Children {
			ok, err := e.Evaluate(c, b)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case rule.CondNot:
		if len(cond.Children) != 1 {
			return false, errs.New(errs.CodeInvalidState, "not node requires exactly one child", nil)
		}
		ok, err := e.Evaluate(cond.Children[0], b)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case rule.CondExists:
		return e.evalExists(cond, b)
	case rule.CondForAll:
		return e.evalForAll(cond, b)
	default:
		return false, errs.New(errs.CodeInvalidState, "unknown condition kind", nil)
	}
}

func (e *Evaluator) evalAtom(cond rule.ConditionNode, b Bindings) (bool, error) {
	h, ok := b[cond.FactVar]
	if !ok {
		return false, nil
	}
	left, ok := e.store.Get(h, value.Path(cond.Field))
	if !ok {
		return false, nil
	}
	right, ok := e.resolveOperand(cond.Operand, b)
	if !ok {
		return false, nil
	}
	return applyOperator(cond.Operator, left, right), nil
}

func (e *Evaluator) evalFunctionAtom(cond rule.ConditionNode, b Bindings) (bool, error) {
	args := make([]value.Value, 0, len(cond.Args))
	for _, argPath := range cond.Args {
		factVar, path, ok := splitFirstSegment(argPath)
		if !ok {
			return false, nil
		}
		h, ok := b[factVar]
		if !ok {
			return false, nil
		}
		v, ok := e.store.Get(h, value.Path(path))
		if !ok {
			return false, nil
		}
		args = append(args, v)
	}
	fn, ok := e.fns.lookup(cond.Function)
	if !ok {
		return false, errs.New(errs.CodeUnknownHandler, "unknown function: "+cond.Function, nil)
	}
	left, err := fn(args)
	if err != nil {
		return false, nil
	}
	right, ok := e.resolveOperand(cond.Operand, b)
	if !ok {
		return false, nil
	}
	return applyOperator(cond.Operator, left, right), nil
}

func (e *Evaluator) evalExists(cond rule.ConditionNode, b Bindings) (bool, error) {
	found := false
	var evalErr error
	e.store.IterByType(cond.FactType, func(h fact.Handle) {
		if found || evalErr != nil {
			return
		}
		inner := b.Clone()
		inner["__quant__"] = h
		ok, err := e.Evaluate(withQuantVar(*cond.Inner), inner)
		if err != nil {
			evalErr = err
			return
		}
		if ok {
			found = true
		}
	})
	return found, evalErr
}

func (e *Evaluator) evalForAll(cond rule.ConditionNode, b Bindings) (bool, error) {
	allMatch := true
	var evalErr error
	e.store.IterByType(cond.FactType, func(h fact.Handle) {
		if !allMatch || evalErr != nil {
			return
		}
		inner := b.Clone()
		inner["__quant__"] = h
		ok, err := e.Evaluate(withQuantVar(*cond.Inner), inner)
		if err != nil {
			evalErr = err
			return
		}
		if !ok {
			allMatch = false
		}
	})
	return allMatch, evalErr
}

// withQuantVar rewrites a quantifier's inner subtree so that any atom
// referencing the quantified variable ("") binds against "__quant__"
// instead; callers of Exists/ForAll build inner trees using "" as the
// fact-var placeholder for the quantified fact.
func withQuantVar(cond rule.ConditionNode) rule.ConditionNode {
	if cond.FactVar == "" && (cond.Kind == rule.CondAtom || cond.Kind == rule.CondFunctionAtom) {
		cond.FactVar = "__quant__"
	}
	out := cond
	if len(cond.Children) > 0 {
		out.Children = make([]rule.ConditionNode, len(cond.Children))
		for i, c := range cond.Children {
			out.Children[i] = withQuantVar(c)
		}
	}
	return out
}

func (e *Evaluator) resolveOperand(op rule.Operand, b Bindings) (value.Value, bool) {
	if op.FieldPath != "" {
		factVar, path, ok := splitFirstSegment(op.FieldPath)
		if !ok {
			return value.Value{}, false
		}
		h, ok := b[factVar]
		if !ok {
			return value.Value{}, false
		}
		return e.store.Get(h, value.Path(path))
	}
	return e.evalLiteral(op.Literal)
}

func (e *Evaluator) evalLiteral(src string) (value.Value, bool) {
	program, err := e.cache.Compile(src)
	if err != nil {
		return value.Value{}, false
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return value.Value{}, false
	}
	return value.FromGo(out), true
}

func splitFirstSegment(path string) (head, rest string, ok bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return "", "", false
}

// ApplyOperator applies a condition operator to two already-resolved
// values. Exported so the beta join network can evaluate cross-fact
// constraints (spec §4.E node-local constant/equality predicates)
// without duplicating the operator semantics.
func ApplyOperator(op rule.Operator, left, right value.Value) bool {
	return applyOperator(op, left, right)
}

func applyOperator(op rule.Operator, left, right value.Value) bool {
	switch op {
	case rule.OpEq:
		return value.Equal(left, right)
	case rule.OpNeq:
		return !value.Equal(left, right)
	case rule.OpLt:
		cmp, ok := value.Compare(left, right)
		return ok && cmp < 0
	case rule.OpLte:
		cmp, ok := value.Compare(left, right)
		return ok && cmp <= 0
	case rule.OpGt:
		cmp, ok := value.Compare(left, right)
		return ok && cmp > 0
	case rule.OpGte:
		cmp, ok := value.Compare(left, right)
		return ok && cmp >= 0
	case rule.OpContains:
		return value.Contains(left, right)
	case rule.OpStartsWith:
		return value.StartsWith(left, right)
	case rule.OpEndsWith:
		return value.EndsWith(left, right)
	default:
		return false
	}
}
