// Package rule defines the static rule model: conditions, actions, and
// the name-unique knowledge base that holds them (spec §3 Rule / §4.B).
//
// Grounded on _examples/smilemakc-mbflow's internal/domain/types.go for
// the closed-sum-type-via-tag-field style (Workflow/Node/Edge structs
// with a Kind discriminator) and internal/node/registry.go for the
// RWMutex-guarded name registry.
package rule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/smilemakc/retecore/internal/errs"
)

// Operator is a condition/function-atom comparison operator (spec §3 Condition).
type Operator string

const (
	OpEq         Operator = "="
	OpNeq        Operator = "!="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
)

// ConditionKind discriminates the ConditionNode union (spec §3 Condition).
type ConditionKind string

const (
	CondAtom         ConditionKind = "atom"
	CondFunctionAtom ConditionKind = "function_atom"
	CondAnd          ConditionKind = "and"
	CondOr           ConditionKind = "or"
	CondNot          ConditionKind = "not"
	CondExists       ConditionKind = "exists"
	CondForAll       ConditionKind = "for_all"
)

// Operand is either a literal Value (as a pre-parsed expr-lang expression
// string so both literals and field references share one representation)
// or a field path on the bound fact. Exactly one of Literal/FieldPath is set.
type Operand struct {
	FieldPath string // dotted path on the bound fact, empty if Literal is used
	Literal   string // expr-lang expression source, empty if FieldPath is used
}

// FieldOperand builds an Operand referencing a dotted field path.
func FieldOperand(path string) Operand { return Operand{FieldPath: path} }

// LiteralOperand builds an Operand from an expr-lang expression literal.
func LiteralOperand(expr string) Operand { return Operand{Literal: expr} }

// ConditionNode is the closed sum type of spec §3 Condition. Exactly one
// of the kind-specific fields is populated, selected by Kind.
type ConditionNode struct {
	Kind ConditionKind

	// Atom / FunctionAtom
	FactVar  string // the bound variable this atom applies to, e.g. "x" in "x.Age"
	Field    string // dotted field path on FactVar, used by Atom
	Function string // built-in function name, used by FunctionAtom
	Args     []string
	Operator Operator
	Operand  Operand

	// And / Or / Not
	Children []ConditionNode

	// Exists / ForAll
	FactType string
	Inner    *ConditionNode
}

// Atom builds an Atom condition node.
func Atom(factVar, field string, op Operator, operand Operand) ConditionNode {
	return ConditionNode{Kind: CondAtom, FactVar: factVar, Field: field, Operator: op, Operand: operand}
}

// FunctionAtom builds a FunctionAtom condition node.
func FunctionAtom(fn string, args []string, op Operator, operand Operand) ConditionNode {
	return ConditionNode{Kind: CondFunctionAtom, Function: fn, Args: args, Operator: op, Operand: operand}
}

// And builds a conjunction over subtrees.
func And(children ...ConditionNode) ConditionNode {
	return ConditionNode{Kind: CondAnd, Children: children}
}

// Or builds a disjunction over subtrees.
func Or(children ...ConditionNode) ConditionNode {
	return ConditionNode{Kind: CondOr, Children: children}
}

// Not negates a subtree.
func Not(inner ConditionNode) ConditionNode {
	return ConditionNode{Kind: CondNot, Children: []ConditionNode{inner}}
}

// Exists builds a set-oriented existential quantifier over a fact type.
func Exists(factType string, inner ConditionNode) ConditionNode {
	return ConditionNode{Kind: CondExists, FactType: factType, Inner: &inner}
}

// ForAll builds a set-oriented universal quantifier over a fact type.
func ForAll(factType string, inner ConditionNode) ConditionNode {
	return ConditionNode{Kind: CondForAll, FactType: factType, Inner: &inner}
}

// ActionKind discriminates the Action union (spec §3 Action).
type ActionKind string

const (
	ActSet        ActionKind = "set"
	ActCall       ActionKind = "call"
	ActMethodCall ActionKind = "method_call"
	ActLog        ActionKind = "log"
	ActRetract    ActionKind = "retract"
	ActCustom     ActionKind = "custom"
)

// Action is the closed sum type of spec §3 Action. Exactly one
// kind-specific field group is populated, selected by Kind.
type Action struct {
	Kind ActionKind

	// Set
	FieldPath        string
	ValueExpression  string // expr-lang expression source

	// Call / MethodCall / Custom
	FunctionName    string
	ObjectPath      string // MethodCall only
	MethodName      string // MethodCall only
	Arguments       []string
	NamedParameters map[string]string

	// Log
	Message string

	// Retract
	FactVar string
}

// SetAction builds a Set action.
func SetAction(fieldPath, valueExpr string) Action {
	return Action{Kind: ActSet, FieldPath: fieldPath, ValueExpression: valueExpr}
}

// CallAction builds a Call action.
func CallAction(fn string, args ...string) Action {
	return Action{Kind: ActCall, FunctionName: fn, Arguments: args}
}

// MethodCallAction builds a MethodCall action.
func MethodCallAction(objectPath, method string, args ...string) Action {
	return Action{Kind: ActMethodCall, ObjectPath: objectPath, MethodName: method, Arguments: args}
}

// LogAction builds a Log action.
func LogAction(message string) Action { return Action{Kind: ActLog, Message: message} }

// RetractAction builds a Retract action over a bound fact variable.
func RetractAction(factVar string) Action { return Action{Kind: ActRetract, FactVar: factVar} }

// CustomAction builds a Custom action dispatched via the handler registry.
func CustomAction(name string, namedParams map[string]string) Action {
	return Action{Kind: ActCustom, FunctionName: name, NamedParameters: namedParams}
}

// Rule is the static definition of spec §3 Rule.
type Rule struct {
	Name      string
	Salience  int
	Condition ConditionNode
	Actions   []Action
	NoLoop    bool

	// Bindings declares, for every fact variable the condition tree
	// references (e.g. "x" in "x.Age"), the fact type it must be bound
	// against. The alpha/beta compiler uses this to route facts of the
	// right type to each atom instead of inferring it structurally.
	Bindings map[string]string
}

// BindingOrder returns the rule's fact variables in a stable order
// (declaration order is not preserved by a map, so callers that need a
// deterministic join chain should sort or otherwise fix an order; this
// helper exists so compilers don't each reinvent it).
func (r *Rule) BindingOrder() []string {
	out := make([]string, 0, len(r.Bindings))
	for v := range r.Bindings {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Base is a name-unique knowledge base (spec §3 Rule invariant, §7 intake
// shape errors).
type Base struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string
}

// NewBase creates an empty knowledge base.
func NewBase() *Base {
	return &Base{rules: make(map[string]*Rule)}
}

// Add registers a rule. Re-registering an existing name is a shape error
// (spec §7: intake-time rejection, not a runtime condition).
func (b *Base) Add(r *Rule) error {
	if r.Name == "" {
		return errs.New(errs.CodeInvalidInput, "rule name must not be empty", nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.rules[r.Name]; exists {
		return errs.New(errs.CodeAlreadyExists, fmt.Sprintf("rule %q already registered", r.Name), nil)
	}
	b.rules[r.Name] = r
	b.order = append(b.order, r.Name)
	return nil
}

// Remove deletes a rule by name.
func (b *Base) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rules[name]; !ok {
		return errs.New(errs.CodeNotFound, fmt.Sprintf("rule %q not found", name), nil)
	}
	delete(b.rules, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a rule by name.
func (b *Base) Get(name string) (*Rule, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rules[name]
	return r, ok
}

// All returns every registered rule, in registration order.
func (b *Base) All() []*Rule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Rule, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.rules[n])
	}
	return out
}

// Len returns the number of registered rules.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rules)
}
