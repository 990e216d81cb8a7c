// Package backward implements spec §4.I: goal-directed backward chaining
// over the same rule.Rule / rule.ConditionNode model the forward engine
// uses, so forward rules need no translation to serve as backward
// inference rules.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/engine
// for the condition-tree walking style (condeval.Evaluator is reused
// directly, unmodified, for checking whether a goal already holds), and
// on the teacher's registry.go mutex-guarded map pattern for the
// memoization cache. Goal-string parsing reuses expr-lang's own parser
// (github.com/expr-lang/expr/parser) instead of hand-rolling a second
// expression grammar; "?"-prefixed identifiers are lowered to free
// condition variables rather than expr Env lookups.
package backward

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// SearchStrategy names a goal/subgoal traversal order. Prove walks
// candidate rules depth-first (recursive solve/chainRules) for every
// value; BFS is accepted but does not change the traversal order.
type SearchStrategy string

const (
	DFS SearchStrategy = "DFS"
	BFS SearchStrategy = "BFS"
)

// Options configures one Prove call (spec §6 backward.*).
type Options struct {
	MaxDepth          int
	Strategy          SearchStrategy
	EnableMemoization bool
	MaxSolutions      int
}

// Binding is a concrete resolution of the goal's free variables to fact
// handles.
type Binding map[string]fact.Handle

// Stats reports how much search a Prove call performed (spec §4.I/§6:
// "stats{goals_explored, rules_evaluated, max_depth}").
type Stats struct {
	GoalsExplored  int // fully-bound subgoal evaluation attempts
	RulesEvaluated int // candidate rules considered while chaining
	MaxDepth       int // deepest recursion reached while searching
}

// Result is the outcome of one Prove call.
type Result struct {
	Proved    bool
	Bindings  []Binding // one entry per distinct solution found, up to MaxSolutions
	Depth     int       // deepest recursion reached while searching
	RulesUsed []string  // names of rules whose conclusions contributed to any solution

	// MissingFacts lists the "FactType.Field" paths that could not be
	// resolved on any path explored while proving the goal (spec §4.I:
	// "record unprovable leaf atoms into missing_facts"). Populated only
	// when Proved is false, since a successful proof's abandoned branches
	// don't represent what actually blocked it.
	MissingFacts []string
	// ProofTrace lists the rule names whose conclusions were chained to
	// establish the goal, in the order they first contributed, deduped.
	ProofTrace []string
	Stats      Stats
}

// ParseGoal parses a goal expression such as `?x.Eligible == true and
// ?x.Age >= 18` into a rule.ConditionNode, using expr-lang's parser to
// build the AST. Every `?name` identifier becomes a free condition
// variable ("name", with the leading `?` stripped); bindings must map
// every such name to the fact type it ranges over.
func ParseGoal(goalExpr string) (rule.ConditionNode, error) {
	tree, err := parser.Parse(goalExpr)
	if err != nil {
		return rule.ConditionNode{}, errs.New(errs.CodeInvalidInput, "parsing goal expression", err)
	}
	return lowerNode(tree.Node)
}

func lowerNode(n ast.Node) (rule.ConditionNode, error) {
	switch node := n.(type) {
	case *ast.BinaryNode:
		switch node.Operator {
		case "and", "&&":
			l, err := lowerNode(node.Left)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			r, err := lowerNode(node.Right)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			return rule.And(l, r), nil
		case "or", "||":
			l, err := lowerNode(node.Left)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			r, err := lowerNode(node.Right)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			return rule.Or(l, r), nil
		default:
			op, ok := lowerOperator(node.Operator)
			if !ok {
				return rule.ConditionNode{}, errs.New(errs.CodeInvalidInput, "unsupported goal operator: "+node.Operator, nil)
			}
			factVar, field, err := lowerMember(node.Left)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			operand, err := lowerOperand(node.Right)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			return rule.Atom(factVar, field, op, operand), nil
		}
	case *ast.UnaryNode:
		if node.Operator == "not" || node.Operator == "!" {
			inner, err := lowerNode(node.Node)
			if err != nil {
				return rule.ConditionNode{}, err
			}
			return rule.Not(inner), nil
		}
		return rule.ConditionNode{}, errs.New(errs.CodeInvalidInput, "unsupported goal unary operator: "+node.Operator, nil)
	default:
		return rule.ConditionNode{}, errs.New(errs.CodeInvalidInput, "unsupported goal expression shape", nil)
	}
}

func lowerOperator(op string) (rule.Operator, bool) {
	switch op {
	case "==":
		return rule.OpEq, true
	case "!=":
		return rule.OpNeq, true
	case "<":
		return rule.OpLt, true
	case "<=":
		return rule.OpLte, true
	case ">":
		return rule.OpGt, true
	case ">=":
		return rule.OpGte, true
	case "contains":
		return rule.OpContains, true
	case "startsWith":
		return rule.OpStartsWith, true
	case "endsWith":
		return rule.OpEndsWith, true
	default:
		return "", false
	}
}

// lowerMember extracts a `?x.Field.Path` member chain into its free
// variable name (stripped of `?`) and dotted field path.
func lowerMember(n ast.Node) (factVar, field string, err error) {
	var segments []string
	cur := n
	for {
		member, ok := cur.(*ast.MemberNode)
		if !ok {
			break
		}
		prop, ok := member.Property.(*ast.StringNode)
		if !ok {
			return "", "", errs.New(errs.CodeInvalidInput, "goal member path must use literal property names", nil)
		}
		segments = append([]string{prop.Value}, segments...)
		cur = member.Node
	}
	ident, ok := cur.(*ast.IdentifierNode)
	if !ok {
		return "", "", errs.New(errs.CodeInvalidInput, "goal left-hand side must be a ?var.field path", nil)
	}
	if !strings.HasPrefix(ident.Value, "?") {
		return "", "", errs.New(errs.CodeInvalidInput, "goal free variables must be ?-prefixed, got "+ident.Value, nil)
	}
	return strings.TrimPrefix(ident.Value, "?"), strings.Join(segments, "."), nil
}

func lowerOperand(n ast.Node) (rule.Operand, error) {
	switch node := n.(type) {
	case *ast.StringNode:
		return rule.LiteralOperand(fmt.Sprintf("%q", node.Value)), nil
	case *ast.IntegerNode:
		return rule.LiteralOperand(fmt.Sprintf("%d", node.Value)), nil
	case *ast.FloatNode:
		return rule.LiteralOperand(fmt.Sprintf("%v", node.Value)), nil
	case *ast.BoolNode:
		return rule.LiteralOperand(fmt.Sprintf("%v", node.Value)), nil
	case *ast.MemberNode:
		factVar, field, err := lowerMember(node)
		if err != nil {
			return rule.Operand{}, err
		}
		return rule.FieldOperand(factVar + "." + field), nil
	default:
		return rule.Operand{}, errs.New(errs.CodeInvalidInput, "unsupported goal operand shape", nil)
	}
}

// undoEntry is one reversible mutation applied while speculatively
// testing whether firing a rule's actions would establish a subgoal
// (spec §4.I "Non-trivial detail": speculative Set rollback via an
// explicit undo log).
type undoEntry struct {
	handle   fact.Handle
	path     value.Path
	before   value.Value
	hadValue bool
}

// memoKey identifies a (goal pattern, binding projection) pair already
// explored in this Prove call, for both cycle detection and
// memoization (spec §4.I).
type memoKey string

func keyFor(cond rule.ConditionNode, b condeval.Bindings) memoKey {
	var sb strings.Builder
	writeCond(&sb, cond)
	sb.WriteByte('|')
	vars := make([]string, 0, len(b))
	for v := range b {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		fmt.Fprintf(&sb, "%s=%s;", v, b[v].ID.String())
	}
	return memoKey(sb.String())
}

func writeCond(sb *strings.Builder, cond rule.ConditionNode) {
	fmt.Fprintf(sb, "(%s:%s.%s%s%v", cond.Kind, cond.FactVar, cond.Field, cond.Operator, cond.Operand)
	for _, c := range cond.Children {
		writeCond(sb, c)
	}
	sb.WriteByte(')')
}

// memoEntry caches a resolved subgoal outcome plus the fact paths its
// proof depended on, so a later mutation to any of those paths can
// invalidate just the entries it actually affects.
type memoEntry struct {
	proved  bool
	support map[string]struct{} // "factType.field" paths the proof read
}

// Engine proves goals against a knowledge base and fact store via
// backward chaining (spec §4.I).
type Engine struct {
	eval *condeval.Evaluator

	mu    sync.Mutex
	memo  map[memoKey]memoEntry
}

// New builds an Engine evaluating conditions with eval.
func New(eval *condeval.Evaluator) *Engine {
	return &Engine{eval: eval, memo: make(map[memoKey]memoEntry)}
}

// InvalidateSupport drops every memo entry whose proof read path on
// factType (spec §4.I: "invalidated on any fact mutation touching a
// path in the cached proof's support set"). field is the bare field name
// (e.g. "Eligible"), matching the format collectSupportPaths records.
func (e *Engine) InvalidateSupport(factType, field string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := factType + "." + field
	for k, v := range e.memo {
		if _, ok := v.support[key]; ok {
			delete(e.memo, k)
		}
	}
}

// InvalidateType drops every memo entry whose proof touched any field of
// factType. A fact's insertion or retraction can change which instances
// an IterByType enumeration sees even when no individual field value
// changes, so it invalidates more broadly than InvalidateSupport.
func (e *Engine) InvalidateType(factType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := factType + "."
	for k, v := range e.memo {
		for path := range v.support {
			if strings.HasPrefix(path, prefix) {
				delete(e.memo, k)
				break
			}
		}
	}
}

type frame struct {
	cond  rule.ConditionNode
	binds condeval.Bindings
	depth int
}

// Prove attempts to establish goal against store, optionally applying
// base's rules backward: a rule whose action could establish part of
// the goal is itself proved recursively via its Condition, then its
// Set actions are applied speculatively (and rolled back at the end of
// the call — Prove never leaves lasting side effects).
func (e *Engine) Prove(ctx context.Context, base *rule.Base, store *fact.Store, goalExpr string, bindings map[string]string, opts Options) (Result, error) {
	goal, err := ParseGoal(goalExpr)
	if err != nil {
		return Result{}, err
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 50
	}
	if opts.MaxSolutions <= 0 {
		opts.MaxSolutions = 1
	}

	p := &proof{
		Engine:    e,
		base:      base,
		store:     store,
		opts:      opts,
		onStack:   make(map[memoKey]struct{}),
		undoLog:   nil,
		rulesUsed: map[string]struct{}{},
		traceSeen: map[string]struct{}{},
		missing:   map[string]struct{}{},
	}

	initialBinds := condeval.Bindings{}
	var result Result
	err = p.solve(ctx, goal, initialBinds, bindings, 0, &result)

	// Roll back every speculative mutation made while searching — Prove
	// is a query, not a command.
	for i := len(p.undoLog) - 1; i >= 0; i-- {
		u := p.undoLog[i]
		if u.hadValue {
			_ = store.Set(u.handle, u.path, u.before)
		}
	}

	if err != nil {
		return Result{}, err
	}
	result.RulesUsed = sortedKeys(p.rulesUsed)
	result.Proved = len(result.Bindings) > 0
	result.ProofTrace = append([]string(nil), p.trace...)
	result.Stats = Stats{
		GoalsExplored:  p.goalsExplored,
		RulesEvaluated: p.rulesEvaluated,
		MaxDepth:       result.Depth,
	}
	if !result.Proved {
		result.MissingFacts = sortedKeys(p.missing)
	}
	return result, nil
}

type proof struct {
	*Engine
	base      *rule.Base
	store     *fact.Store
	opts      Options
	onStack   map[memoKey]struct{}
	undoLog   []undoEntry
	rulesUsed map[string]struct{}

	// trace/traceSeen/missing/goalsExplored/rulesEvaluated accumulate
	// over the whole Prove call. They're only ever touched synchronously
	// from the goroutine running solve/chainRules (fact.Store.IterByType
	// invokes its callback in-line), so unlike memo they need no lock.
	trace          []string
	traceSeen      map[string]struct{}
	missing        map[string]struct{}
	goalsExplored  int
	rulesEvaluated int
}

// solve attempts to satisfy cond under binds (a partial binding of the
// goal's free variables to fact-type names, not yet to concrete facts),
// appending every distinct solution found to result.Bindings.
func (p *proof) solve(ctx context.Context, cond rule.ConditionNode, binds condeval.Bindings, typeOf map[string]string, depth int, result *Result) error {
	if err := ctx.Err(); err != nil {
		return errs.New(errs.CodeTimeout, "goal proof cancelled", err)
	}
	if depth > result.Depth {
		result.Depth = depth
	}
	if depth > p.opts.MaxDepth {
		return nil
	}
	if len(result.Bindings) >= p.opts.MaxSolutions {
		return nil
	}

	freeVars := collectFreeVars(cond, nil)
	unbound := firstUnbound(freeVars, binds)
	if unbound != "" {
		factType, ok := typeOf[unbound]
		if !ok {
			return errs.New(errs.CodeInvalidInput, "goal variable "+unbound+" has no declared fact type", nil)
		}
		before := len(result.Bindings)
		var innerErr error
		p.store.IterByType(factType, func(h fact.Handle) {
			if innerErr != nil || len(result.Bindings) >= p.opts.MaxSolutions {
				return
			}
			next := binds.Clone()
			next[unbound] = h
			if err := p.solve(ctx, cond, next, typeOf, depth, result); err != nil {
				innerErr = err
			}
		})
		if innerErr != nil {
			return innerErr
		}
		// also try establishing the goal backward even if no current
		// fact of factType satisfies it yet, by chaining through rules
		// whose conclusions populate fields of factType.
		if err := p.chainRules(ctx, cond, binds, typeOf, depth, result); err != nil {
			return err
		}
		if len(result.Bindings) == before {
			p.recordMissing(cond, binds, typeOf)
		}
		return nil
	}

	p.goalsExplored++

	key := keyFor(cond, binds)
	if p.opts.EnableMemoization {
		p.mu.Lock()
		if entry, ok := p.memo[key]; ok {
			p.mu.Unlock()
			if entry.proved {
				result.Bindings = append(result.Bindings, toBinding(binds))
			} else {
				p.recordMissing(cond, binds, typeOf)
			}
			return nil
		}
		p.mu.Unlock()
	}
	if _, cyc := p.onStack[key]; cyc {
		return nil // cycle: treat as not provable along this path
	}
	p.onStack[key] = struct{}{}
	defer delete(p.onStack, key)

	ok, err := p.eval.Evaluate(cond, binds)
	if err != nil {
		return err
	}
	if ok {
		result.Bindings = append(result.Bindings, toBinding(binds))
		p.memoize(key, cond, typeOf, true)
		return nil
	}

	before := len(result.Bindings)
	if err := p.chainRules(ctx, cond, binds, typeOf, depth, result); err != nil {
		return err
	}
	proved := len(result.Bindings) > before
	p.memoize(key, cond, typeOf, proved)
	if !proved {
		p.recordMissing(cond, binds, typeOf)
	}
	return nil
}

// chainRules tries every rule whose conclusion could establish cond: it
// proves the rule's own Condition as a subgoal, then speculatively
// applies its Set actions and re-checks cond.
func (p *proof) chainRules(ctx context.Context, cond rule.ConditionNode, binds condeval.Bindings, typeOf map[string]string, depth int, result *Result) error {
	if depth+1 > p.opts.MaxDepth {
		return nil
	}
	rules := p.candidateRules(cond)
	order := p.opts.Strategy
	if order == "" {
		order = DFS
	}
	for _, r := range rules {
		if len(result.Bindings) >= p.opts.MaxSolutions {
			return nil
		}
		p.rulesEvaluated++
		ruleBinds, ruleTypeOf := projectRuleBindings(r, binds, typeOf)
		subResult := Result{}
		if err := p.solve(ctx, r.Condition, ruleBinds, ruleTypeOf, depth+1, &subResult); err != nil {
			return err
		}
		if subResult.Depth > result.Depth {
			result.Depth = subResult.Depth
		}
		if len(subResult.Bindings) == 0 {
			continue
		}
		for _, sub := range subResult.Bindings {
			p.applySpeculative(r, sub)
			ok, err := p.eval.Evaluate(cond, binds)
			if err != nil {
				return err
			}
			if ok {
				p.rulesUsed[r.Name] = struct{}{}
				p.noteTrace(r.Name)
				result.Bindings = append(result.Bindings, toBinding(binds))
			}
			if len(result.Bindings) >= p.opts.MaxSolutions {
				return nil
			}
		}
	}
	return nil
}

// candidateRules returns every rule with at least one Set action whose
// field path matches an atom referenced by cond.
func (p *proof) candidateRules(cond rule.ConditionNode) []*rule.Rule {
	wanted := map[string]struct{}{}
	collectFields(cond, wanted)
	var out []*rule.Rule
	for _, r := range p.base.All() {
		for _, a := range r.Actions {
			if a.Kind != rule.ActSet {
				continue
			}
			if _, ok := wanted[lastSegment(a.FieldPath)]; ok {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// applySpeculative applies r's Set actions against the facts bound in
// sub, logging every mutation to the undo log for later rollback.
func (p *proof) applySpeculative(r *rule.Rule, sub Binding) []undoEntry {
	var applied []undoEntry
	for _, a := range r.Actions {
		if a.Kind != rule.ActSet {
			continue
		}
		factVar, field, ok := splitPath(a.FieldPath)
		if !ok {
			continue
		}
		h, ok := sub[factVar]
		if !ok {
			continue
		}
		before, hadValue := p.store.Get(h, value.Path(field))
		newVal, ok := evalSetExpr(a.ValueExpression, p.store, sub)
		if !ok {
			continue
		}
		if err := p.store.Set(h, value.Path(field), newVal); err != nil {
			continue
		}
		entry := undoEntry{handle: h, path: value.Path(field), before: before, hadValue: hadValue}
		p.undoLog = append(p.undoLog, entry)
		applied = append(applied, entry)
	}
	return applied
}

func evalSetExpr(expr string, store *fact.Store, sub Binding) (value.Value, bool) {
	if v, ok := literalValue(expr); ok {
		return v, true
	}
	factVar, field, ok := splitPath(expr)
	if !ok {
		return value.Value{}, false
	}
	h, ok := sub[factVar]
	if !ok {
		return value.Value{}, false
	}
	return store.Get(h, value.Path(field))
}

func literalValue(expr string) (value.Value, bool) {
	if len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"' {
		return value.String(expr[1 : len(expr)-1]), true
	}
	switch expr {
	case "true":
		return value.Bool(true), true
	case "false":
		return value.Bool(false), true
	}
	return value.Value{}, false
}

func splitPath(path string) (head, rest string, ok bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return "", "", false
}

func lastSegment(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// projectRuleBindings maps a rule's own binding variables onto the
// proof's existing binds/typeOf wherever their fact types match, so a
// shared fact (e.g. the same "x" a goal and a candidate rule both
// range over) isn't re-bound to an unrelated handle.
func projectRuleBindings(r *rule.Rule, binds condeval.Bindings, typeOf map[string]string) (condeval.Bindings, map[string]string) {
	ruleBinds := condeval.Bindings{}
	ruleTypeOf := map[string]string{}
	for v, factType := range r.Bindings {
		ruleTypeOf[v] = factType
		for existingVar, existingType := range typeOf {
			if existingType == factType {
				if h, ok := binds[existingVar]; ok {
					ruleBinds[v] = h
				}
			}
		}
	}
	return ruleBinds, ruleTypeOf
}

func (p *proof) memoize(key memoKey, cond rule.ConditionNode, typeOf map[string]string, proved bool) {
	if !p.opts.EnableMemoization {
		return
	}
	support := map[string]struct{}{}
	collectSupportPaths(cond, typeOf, support)
	p.mu.Lock()
	p.memo[key] = memoEntry{proved: proved, support: support}
	p.mu.Unlock()
}

// collectSupportPaths records the "FactType.Field" paths cond's proof
// read, resolving each atom's fact variable to its declared fact type via
// typeOf so the result matches the format InvalidateSupport/InvalidateType
// look keys up by.
func collectSupportPaths(cond rule.ConditionNode, typeOf map[string]string, out map[string]struct{}) {
	if cond.Kind == rule.CondAtom && cond.Field != "" {
		out[supportPath(cond, typeOf)] = struct{}{}
	}
	if cond.Kind == rule.CondExists || cond.Kind == rule.CondForAll {
		if cond.Inner != nil {
			collectSupportPaths(*cond.Inner, typeOf, out)
		}
	}
	for _, c := range cond.Children {
		collectSupportPaths(c, typeOf, out)
	}
}

func supportPath(cond rule.ConditionNode, typeOf map[string]string) string {
	factType := typeOf[cond.FactVar]
	if factType == "" {
		factType = cond.FactVar
	}
	return factType + "." + lastSegment(cond.Field)
}

// noteTrace appends ruleName to the proof trace the first time it
// contributes to establishing a (sub)goal, preserving discovery order.
func (p *proof) noteTrace(ruleName string) {
	if _, ok := p.traceSeen[ruleName]; ok {
		return
	}
	p.traceSeen[ruleName] = struct{}{}
	p.trace = append(p.trace, ruleName)
}

// recordMissing adds cond's unresolved leaf atoms to the proof's missing
// set (spec §4.I: "record unprovable leaf atoms into missing_facts").
func (p *proof) recordMissing(cond rule.ConditionNode, binds condeval.Bindings, typeOf map[string]string) {
	collectMissingAtoms(cond, binds, typeOf, p.store, p.missing)
}

// collectMissingAtoms walks cond's leaf atoms and records "FactType.Field"
// for each one that can't currently be resolved: either its fact variable
// has no bound handle, or the bound fact has no value at that field.
func collectMissingAtoms(cond rule.ConditionNode, binds condeval.Bindings, typeOf map[string]string, store *fact.Store, out map[string]struct{}) {
	if cond.Kind == rule.CondAtom && cond.Field != "" {
		h, bound := binds[cond.FactVar]
		if !bound {
			out[supportPath(cond, typeOf)] = struct{}{}
		} else if _, ok := store.Get(h, value.Path(cond.Field)); !ok {
			out[supportPath(cond, typeOf)] = struct{}{}
		}
	}
	if cond.Kind == rule.CondExists || cond.Kind == rule.CondForAll {
		if cond.Inner != nil {
			collectMissingAtoms(*cond.Inner, binds, typeOf, store, out)
		}
	}
	for _, c := range cond.Children {
		collectMissingAtoms(c, binds, typeOf, store, out)
	}
}

func collectFields(cond rule.ConditionNode, out map[string]struct{}) {
	if cond.Kind == rule.CondAtom && cond.Field != "" {
		out[lastSegment(cond.Field)] = struct{}{}
	}
	if cond.Kind == rule.CondExists || cond.Kind == rule.CondForAll {
		if cond.Inner != nil {
			collectFields(*cond.Inner, out)
		}
	}
	for _, c := range cond.Children {
		collectFields(c, out)
	}
}

func collectFreeVars(cond rule.ConditionNode, out []string) []string {
	switch cond.Kind {
	case rule.CondAtom, rule.CondFunctionAtom:
		if cond.FactVar != "" {
			out = appendUnique(out, cond.FactVar)
		}
	}
	if cond.Kind == rule.CondExists || cond.Kind == rule.CondForAll {
		if cond.Inner != nil {
			out = collectFreeVars(*cond.Inner, out)
		}
	}
	for _, c := range cond.Children {
		out = collectFreeVars(c, out)
	}
	return out
}

func appendUnique(out []string, v string) []string {
	for _, x := range out {
		if x == v {
			return out
		}
	}
	return append(out, v)
}

func firstUnbound(vars []string, binds condeval.Bindings) string {
	names := append([]string(nil), vars...)
	sort.Strings(names)
	for _, v := range names {
		if _, ok := binds[v]; !ok {
			return v
		}
	}
	return ""
}

func toBinding(b condeval.Bindings) Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
