package forward

import (
	"strings"

	"github.com/smilemakc/retecore/internal/alpha"
	"github.com/smilemakc/retecore/internal/beta"
	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/rule"
)

// compiledRule is the result of compiling one rule.Rule into either an
// incremental alpha/beta network (the common case: a flat conjunction of
// atoms/function-atoms, optionally negated) or a "brute" fallback that
// re-evaluates the full condition tree via condeval on every relevant
// fact event (anything with Or/Exists/ForAll at the top, or join
// constraints condeval can't express structurally).
type compiledRule struct {
	rule     *rule.Rule
	network  bool
	terminal *beta.TerminalNode
	varOrder []string // network mode only: the chain order
}

// decompose flattens a rule's condition tree into per-variable positive
// and negated atom groups, when the tree is a plain conjunction (spec
// §9: "the beta network is identical" — only the common conjunctive
// shape is compiled into a network; anything richer falls back).
func decompose(cond rule.ConditionNode) (pos, neg map[string][]rule.ConditionNode, ok bool) {
	pos = map[string][]rule.ConditionNode{}
	neg = map[string][]rule.ConditionNode{}

	var children []rule.ConditionNode
	switch cond.Kind {
	case rule.CondAnd:
		children = cond.Children
	case rule.CondAtom, rule.CondFunctionAtom:
		children = []rule.ConditionNode{cond}
	default:
		return nil, nil, false
	}

	for _, c := range children {
		switch c.Kind {
		case rule.CondAtom, rule.CondFunctionAtom:
			pos[c.FactVar] = append(pos[c.FactVar], c)
		case rule.CondNot:
			if len(c.Children) != 1 {
				return nil, nil, false
			}
			inner := c.Children[0]
			if inner.Kind != rule.CondAtom && inner.Kind != rule.CondFunctionAtom {
				return nil, nil, false
			}
			neg[inner.FactVar] = append(neg[inner.FactVar], inner)
		default:
			return nil, nil, false
		}
	}
	for v := range pos {
		if len(neg[v]) > 0 {
			return nil, nil, false
		}
	}
	return pos, neg, true
}

func splitVar(path string) (v, rest string, ok bool) {
	i := strings.IndexByte(path, '.')
	if i < 0 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

// selfContained reports whether an atom only references selfVar (no
// cross-variable operand), meaning it can be evaluated entirely at the
// alpha stage.
func selfContained(atom rule.ConditionNode, selfVar string) bool {
	if atom.Operand.FieldPath != "" {
		v, _, ok := splitVar(atom.Operand.FieldPath)
		if !ok || v != selfVar {
			return false
		}
	}
	if atom.Kind == rule.CondFunctionAtom {
		for _, arg := range atom.Args {
			v, _, ok := splitVar(arg)
			if !ok || v != selfVar {
				return false
			}
		}
	}
	return true
}

// crossConstraint extracts a beta.Constraint from an atom whose operand
// references a different, already-bound variable. Only CondAtom (not
// FunctionAtom) atoms can cross variables in the compiled path;
// FunctionAtom atoms must be self-contained or the rule falls back.
func crossConstraint(atom rule.ConditionNode, selfVar string, bound map[string]bool) (beta.Constraint, bool) {
	if atom.Kind != rule.CondAtom || atom.Operand.FieldPath == "" {
		return beta.Constraint{}, false
	}
	v, path, ok := splitVar(atom.Operand.FieldPath)
	if !ok || v == selfVar || !bound[v] {
		return beta.Constraint{}, false
	}
	return beta.Constraint{
		LeftVar: v, LeftPath: path,
		RightVar: selfVar, RightPath: atom.Field,
		Operator: atom.Operator,
	}, true
}

// compileNetwork attempts to build an incremental alpha/beta network for
// r. ok is false if the rule's shape isn't a supported flat conjunction,
// in which case the caller should use the brute-force path instead.
func (e *Engine) compileNetwork(r *rule.Rule) (*compiledRule, bool) {
	pos, neg, ok := decompose(r.Condition)
	if !ok {
		return nil, false
	}
	order := r.BindingOrder()
	if len(order) == 0 {
		return nil, false
	}

	bound := map[string]bool{}
	var lastJoinOutput func(beta.OutputSink)
	var lastNotOutput func(beta.OutputSink)
	first := true

	for _, v := range order {
		factType, declared := r.Bindings[v]
		if !declared {
			return nil, false
		}
		posAtoms := pos[v]
		negAtoms := neg[v]

		if len(negAtoms) > 0 {
			var gate rule.ConditionNode
			if len(negAtoms) == 1 {
				gate = negAtoms[0]
			} else {
				gate = rule.And(negAtoms...)
			}
			for _, a := range negAtoms {
				if !selfContained(a, v) {
					return nil, false
				}
			}
			alphaNode := e.net.RegisterAtom(v, factType, gate)

			var constraints []beta.Constraint
			for _, a := range negAtoms {
				if c, ok := crossConstraint(a, v, bound); ok {
					constraints = append(constraints, c)
				}
			}
			nn := beta.NewNotNode(e.store, v, constraints)
			alphaNode.Subscribe(nn.RightInput)

			if first {
				nn.LeftInput(beta.Token{Bindings: condeval.Bindings{}, Facts: nil}, true)
			} else if lastJoinOutput != nil {
				lastJoinOutput(nn.LeftInput)
			} else {
				lastNotOutput(nn.LeftInput)
			}
			lastJoinOutput = nil
			lastNotOutput = nn.Subscribe
			bound[v] = true
			first = false
			continue
		}

		var selfAtoms []rule.ConditionNode
		var constraints []beta.Constraint
		for _, a := range posAtoms {
			if selfContained(a, v) {
				selfAtoms = append(selfAtoms, a)
				continue
			}
			if c, ok := crossConstraint(a, v, bound); ok {
				constraints = append(constraints, c)
				continue
			}
			return nil, false
		}

		var gate rule.ConditionNode
		switch len(selfAtoms) {
		case 0:
			gate = rule.ConditionNode{Kind: rule.CondAnd} // always true (empty conjunction)
		case 1:
			gate = selfAtoms[0]
		default:
			gate = rule.And(selfAtoms...)
		}
		alphaNode := e.net.RegisterAtom(v, factType, gate)

		jn := beta.NewJoinNode(e.store, v, constraints)
		alphaNode.Subscribe(jn.RightInput)

		if first {
			jn.LeftInput(beta.Token{Bindings: condeval.Bindings{}, Facts: nil}, true)
		} else if lastJoinOutput != nil {
			lastJoinOutput(jn.LeftInput)
		} else {
			lastNotOutput(jn.LeftInput)
		}
		lastJoinOutput = jn.Subscribe
		lastNotOutput = nil
		bound[v] = true
		first = false
	}

	terminal := beta.NewTerminalNode(r.Name)
	if lastJoinOutput != nil {
		lastJoinOutput(terminal.Input)
	} else {
		lastNotOutput(terminal.Input)
	}

	return &compiledRule{rule: r, network: true, terminal: terminal, varOrder: order}, true
}
