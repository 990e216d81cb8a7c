// Package accumulator implements spec §4.M: aggregate functions over a
// set of facts matching an inner condition, exposed as a synthetic
// condition variable downstream atoms may compare against.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/engine
// /condition_cache.go for the expr-lang compile pattern (reused here for
// the per-fact field expression, which is compiled once per Evaluate
// call and not cached between calls), and on condeval's
// Evaluate for applying the inner filter.
package accumulator

import (
	"github.com/expr-lang/expr"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// AccFn names one of the five supported aggregate reductions.
type AccFn string

const (
	Sum   AccFn = "sum"
	Avg   AccFn = "avg"
	Count AccFn = "count"
	Min   AccFn = "min"
	Max   AccFn = "max"
)

// Accumulator describes one aggregate pattern (spec §4.M).
type Accumulator struct {
	Fn       AccFn
	FactType string
	Inner    rule.ConditionNode // filter selecting which facts of FactType contribute
	Field    string             // expr-lang expression evaluated per contributing fact
	Bind     string             // synthetic variable name the result binds to
}

// Evaluate scans every live fact of FactType, applies Inner as a filter
// (quantifier-style, against the bare fact with no other bindings), and
// reduces Field over the survivors (spec §4.M: "re-evaluated on any
// fact change to that type").
func (a Accumulator) Evaluate(store *fact.Store, eval *condeval.Evaluator) (value.Value, error) {
	program, err := expr.Compile(a.Field)
	if err != nil {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "accumulator field expression compile error", err)
	}

	var values []float64
	var evalErr error
	store.IterByType(a.FactType, func(h fact.Handle) {
		if evalErr != nil {
			return
		}
		bindings := condeval.Bindings{"__acc__": h}
		cond := rebind(a.Inner, "__acc__")
		ok, err := eval.Evaluate(cond, bindings)
		if err != nil {
			evalErr = err
			return
		}
		if !ok {
			return
		}
		snap, ok := store.Snapshot(h)
		if !ok {
			return
		}
		out, err := expr.Run(program, value.ToGo(snap))
		if err != nil {
			return
		}
		f, ok := value.FromGo(out).AsFloat()
		if !ok {
			return
		}
		values = append(values, f)
	})
	if evalErr != nil {
		return value.Value{}, evalErr
	}

	switch a.Fn {
	case Count:
		return value.Int(int64(len(values))), nil
	case Sum:
		return value.Float(sum(values)), nil
	case Avg:
		if len(values) == 0 {
			return value.Float(0), nil
		}
		return value.Float(sum(values) / float64(len(values))), nil
	case Min:
		if len(values) == 0 {
			return value.Null, nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return value.Float(m), nil
	case Max:
		if len(values) == 0 {
			return value.Null, nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return value.Float(m), nil
	default:
		return value.Value{}, errs.New(errs.CodeInvalidInput, "unknown accumulator function", nil)
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// rebind rewrites every unbound atom FactVar ("") in cond to var, so an
// accumulator's Inner filter (authored against an implicit single-fact
// scope, like Exists/ForAll's Inner) can be evaluated with a concrete
// binding.
func rebind(cond rule.ConditionNode, v string) rule.ConditionNode {
	out := cond
	if cond.FactVar == "" {
		out.FactVar = v
	}
	if len(cond.Children) > 0 {
		out.Children = make([]rule.ConditionNode, len(cond.Children))
		for i, c := range cond.Children {
			out.Children[i] = rebind(c, v)
		}
	}
	return out
}
