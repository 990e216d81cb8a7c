// Package parallel implements the dependency-analysis parallel executor
// of spec §4.K: rules are batched by conflicting read/write sets so that
// independent rules within a batch can fire concurrently, with a barrier
// between batches.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/engine
// /dag_executor.go (wave-based execution: topological waves run
// sequentially, nodes within a wave run on goroutines bounded by a
// semaphore, a sync.WaitGroup joins the wave) — here waves are replaced
// by batches from a greedy coloring of the conflict graph (graph.go)
// instead of DAG dependency edges, since rule bases have no declared
// ordering.
package parallel

import (
	"github.com/smilemakc/retecore/internal/rule"
)

// Analyzer computes read and write sets over a rule's condition and
// action trees (spec §4.K).
type Analyzer struct{}

// ReadSet returns every field path a rule's condition tree references.
func (Analyzer) ReadSet(r *rule.Rule) map[string]struct{} {
	out := make(map[string]struct{})
	collectReads(r.Condition, out)
	return out
}

func collectReads(cond rule.ConditionNode, out map[string]struct{}) {
	switch cond.Kind {
	case rule.CondAtom:
		if cond.FactVar != "" && cond.Field != "" {
			out[cond.FactVar+"."+cond.Field] = struct{}{}
		}
		if cond.Operand.FieldPath != "" {
			out[cond.Operand.FieldPath] = struct{}{}
		}
	case rule.CondFunctionAtom:
		for _, a := range cond.Args {
			out[a] = struct{}{}
		}
		if cond.Operand.FieldPath != "" {
			out[cond.Operand.FieldPath] = struct{}{}
		}
	case rule.CondAnd, rule.CondOr, rule.CondNot:
		for _, c := range cond.Children {
			collectReads(c, out)
		}
	case rule.CondExists, rule.CondForAll:
		if cond.Inner != nil {
			collectReads(*cond.Inner, out)
		}
	}
}

// WriteSet returns every field path a rule's action list can mutate.
// Call and MethodCall actions are treated as opaque writes (spec §4.K
// design note) since the function registry's side effects aren't
// statically known; they're recorded under a synthetic "call:<name>"
// key so two rules calling the same function still conflict.
func (Analyzer) WriteSet(r *rule.Rule) map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range r.Actions {
		switch a.Kind {
		case rule.ActSet:
			out[a.FieldPath] = struct{}{}
		case rule.ActCustom:
			out["custom:"+a.FunctionName] = struct{}{}
		case rule.ActCall:
			out["call:"+a.FunctionName] = struct{}{}
		case rule.ActMethodCall:
			out["call:"+a.ObjectPath+"."+a.MethodName] = struct{}{}
		case rule.ActRetract:
			out["retract:"+a.FactVar] = struct{}{}
		}
	}
	return out
}

func intersects(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}
