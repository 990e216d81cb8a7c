// Package alpha implements the alpha network of spec §4.D: each atomic
// condition referencing a single fact type becomes one alpha node, and
// facts are routed to the nodes' subscribed beta inputs. Nodes are kept
// in a flat list per fact type, not a tree: only identical atoms share a
// node, atoms that merely share a prefix (same field, different operator
// or operand) get separate nodes, and Route evaluates every node
// registered for the fact's type.
//
// Grounded on _examples/smilemakc-mbflow's internal/node/registry.go
// (RWMutex-guarded registry) for the node-table shape, keyed per fact
// type by (fact variable, field, function, operator, operand).
package alpha

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
)

// Sink receives a positive or negative one-tuple token from a leaf node.
// Positive is true on insert/mutate-match, false on retraction,
// mutate-no-longer-match, or the first routing of a non-matching fact.
type Sink func(h fact.Handle, positive bool)

// key identifies a shareable alpha node. Its factType field holds the
// atom's fact variable; the fact type itself is the byType list key.
type key struct {
	factType string
	field    string
	function string
	operator rule.Operator
	literal  string
}

// node is one alpha node. It tests one atom and fans out to its sinks.
// The children map is allocated but never populated: nodes are not
// nested.
type node struct {
	mu       sync.RWMutex
	atom     rule.ConditionNode
	sinks    []Sink
	seen     *xsync.MapOf[fact.Handle, bool] // last known match result, for idempotent re-insert/mutate detection
	children map[key]*node
}

func newNode(atom rule.ConditionNode) *node {
	return &node{
		atom:     atom,
		seen:     xsync.NewMapOf[fact.Handle, bool](),
		children: make(map[key]*node),
	}
}

func keyOf(atom rule.ConditionNode) key {
	return key{
		factType: atom.FactVar,
		field:    atom.Field,
		function: atom.Function,
		operator: atom.Operator,
		literal:  atom.Operand.Literal + "|" + atom.Operand.FieldPath,
	}
}

// Network is the alpha network: nodes listed per fact type in byType.
// The roots map is allocated but not used.
type Network struct {
	mu       sync.RWMutex
	store    *fact.Store
	eval     *condeval.Evaluator
	roots    map[string]*node // factType -> root node covering atoms on that type
	byType   map[string][]*node
}

// New builds an alpha network reading from the given fact store.
func New(store *fact.Store, eval *condeval.Evaluator) *Network {
	return &Network{
		store:  store,
		eval:   eval,
		roots:  make(map[string]*node),
		byType: make(map[string][]*node),
	}
}

// RegisterAtom adds an atomic condition to factType's node list and
// returns the node that should be wired to a Sink. An atom identical to
// one already registered for factType (same fact variable, field,
// function, operator and operand) reuses that node (spec §4.D
// invariant i).
func (n *Network) RegisterAtom(factVar, factType string, atom rule.ConditionNode) *node {
	n.mu.Lock()
	defer n.mu.Unlock()

	k := keyOf(atom)
	for _, existing := range n.byType[factType] {
		if keyOf(existing.atom) == k {
			return existing
		}
	}
	nd := newNode(atom)
	n.byType[factType] = append(n.byType[factType], nd)
	return nd
}

// Subscribe attaches a sink to a leaf node's output.
func (nd *node) Subscribe(s Sink) {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	nd.sinks = append(nd.sinks, s)
}

func (nd *node) emit(h fact.Handle, positive bool) {
	nd.mu.RLock()
	sinks := make([]Sink, len(nd.sinks))
	copy(sinks, nd.sinks)
	nd.mu.RUnlock()
	for _, s := range sinks {
		s(h, positive)
	}
}

// Route evaluates every alpha node registered for factType against h and
// emits tokens to matching leaf nodes, applying idempotent re-insertion
// (spec §4.D invariant ii): evaluating the same fact twice without a
// change in match result does not re-emit.
func (n *Network) Route(factType string, h fact.Handle) {
	n.mu.RLock()
	nodes := append([]*node(nil), n.byType[factType]...)
	n.mu.RUnlock()

	for _, nd := range nodes {
		match, err := n.eval.Evaluate(nd.atom, condeval.Bindings{nd.atom.FactVar: h})
		if err != nil {
			match = false
		}
		prev, existed := nd.seen.Load(h)
		if existed && prev == match {
			continue
		}
		nd.seen.Store(h, match)
		nd.emit(h, match)
	}
}

// Retract propagates a negative token for h to every alpha node that
// previously matched it, and clears its membership from the seen set.
func (n *Network) Retract(factType string, h fact.Handle) {
	n.mu.RLock()
	nodes := append([]*node(nil), n.byType[factType]...)
	n.mu.RUnlock()

	for _, nd := range nodes {
		prev, existed := nd.seen.LoadAndDelete(h)
		if existed && prev {
			nd.emit(h, false)
		}
	}
}
