// Package beta implements the join network of spec §4.E: a rule's
// multi-atom body compiles to a chain of join nodes joining tokens from
// a predecessor (left memory) against one-tuple tokens from an alpha
// node (right memory), on shared fact-variable bindings.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/executor
// /join.go (left/right memory scan with an equality-constraint list),
// carried over onto fact.Handle bindings instead of arbitrary payload
// joins, plus a reverse dependency index for retraction propagation in
// the style of internal/node/registry.go's map-of-slices bookkeeping.
package beta

import (
	"sync"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// Token is a partial or complete binding tuple flowing through the beta
// network (spec §3 Activation is the terminal-node form of a Token).
type Token struct {
	Bindings condeval.Bindings
	Facts    []fact.Handle // in join order, for reverse-index bookkeeping
}

func (t Token) clone() Token {
	return Token{Bindings: t.Bindings.Clone(), Facts: append([]fact.Handle(nil), t.Facts...)}
}

// Constraint is a node-local equality test between a variable already
// bound on the left and the fact variable newly bound on the right
// (spec §4.E: "an identifier appearing in two atoms becomes an equality
// constraint on the join").
type Constraint struct {
	LeftVar   string
	LeftPath  string
	RightVar  string
	RightPath string
	Operator  rule.Operator // defaults to OpEq (the zero Operator is "")
}

func (c Constraint) op() rule.Operator {
	if c.Operator == "" {
		return rule.OpEq
	}
	return c.Operator
}

func (c Constraint) holds(store *fact.Store, left, right condeval.Bindings) bool {
	lh, ok := left[c.LeftVar]
	if !ok {
		return true // no binding yet to constrain against
	}
	rh, ok := right[c.RightVar]
	if !ok {
		return true
	}
	lv, lok := store.Get(lh, value.Path(c.LeftPath))
	rv, rok := store.Get(rh, value.Path(c.RightPath))
	if !lok || !rok {
		return false
	}
	return condeval.ApplyOperator(c.op(), lv, rv)
}

// OutputSink receives a positive or negative output token from a join
// or terminal node.
type OutputSink func(tok Token, positive bool)

// JoinNode joins a left memory (partial tokens) against a right memory
// (one-tuple alpha tokens) on a set of Constraints (spec §4.E).
type JoinNode struct {
	mu          sync.Mutex
	store       *fact.Store
	constraints []Constraint
	rightVar    string
	left        []Token
	right       map[fact.Handle]condeval.Bindings
	sinks       []OutputSink

	// byFact indexes which output tokens depend on which fact handle, for
	// retraction propagation (spec §4.E: "retraction ... removes derived
	// tokens and activations").
	byFact map[fact.Handle][]Token
}

// NewJoinNode builds a join node for the given right-hand fact variable.
func NewJoinNode(store *fact.Store, rightVar string, constraints []Constraint) *JoinNode {
	return &JoinNode{
		store:       store,
		constraints: constraints,
		rightVar:    rightVar,
		right:       make(map[fact.Handle]condeval.Bindings),
		byFact:      make(map[fact.Handle][]Token),
	}
}

// Subscribe attaches a downstream sink.
func (j *JoinNode) Subscribe(s OutputSink) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sinks = append(j.sinks, s)
}

func (j *JoinNode) emit(tok Token, positive bool) {
	j.mu.Lock()
	sinks := make([]OutputSink, len(j.sinks))
	copy(sinks, j.sinks)
	j.mu.Unlock()
	for _, s := range sinks {
		s(tok, positive)
	}
}

// LeftInput receives a token from the predecessor node (or an initial
// one-tuple for the first atom in the chain).
func (j *JoinNode) LeftInput(tok Token, positive bool) {
	j.mu.Lock()
	if positive {
		j.left = append(j.left, tok)
	} else {
		j.removeLeft(tok)
	}
	rightSnapshot := make(map[fact.Handle]condeval.Bindings, len(j.right))
	for h, b := range j.right {
		rightSnapshot[h] = b
	}
	j.mu.Unlock()

	if !positive {
		for _, f := range tok.Facts {
			j.retractDerived(f)
		}
		return
	}
	for rh, rb := range rightSnapshot {
		j.tryJoin(tok, rh, rb)
	}
}

func (j *JoinNode) removeLeft(tok Token) {
	out := j.left[:0]
	for _, l := range j.left {
		if !sameTokenKey(l, tok) {
			out = append(out, l)
		}
	}
	j.left = out
}

// RightInput receives a one-tuple token from the alpha node bound to
// this join's right-hand fact variable.
func (j *JoinNode) RightInput(h fact.Handle, positive bool) {
	j.mu.Lock()
	if positive {
		j.right[h] = condeval.Bindings{j.rightVar: h}
	} else {
		delete(j.right, h)
	}
	leftSnapshot := append([]Token(nil), j.left...)
	j.mu.Unlock()

	if !positive {
		j.retractDerived(h)
		return
	}
	for _, lt := range leftSnapshot {
		j.tryJoin(lt, h, condeval.Bindings{j.rightVar: h})
	}
}

func (j *JoinNode) tryJoin(left Token, rh fact.Handle, rb condeval.Bindings) {
	for _, c := range j.constraints {
		if !c.holds(j.store, left.Bindings, rb) {
			return
		}
	}
	merged := left.Bindings.Clone()
	for k, v := range rb {
		merged[k] = v
	}
	out := Token{Bindings: merged, Facts: append(append([]fact.Handle(nil), left.Facts...), rh)}

	j.mu.Lock()
	for _, f := range out.Facts {
		j.byFact[f] = append(j.byFact[f], out.clone())
	}
	j.mu.Unlock()

	j.emit(out, true)
}

// retractDerived removes and emits negative tokens for every derived
// token that depended on the retracted fact handle.
func (j *JoinNode) retractDerived(h fact.Handle) {
	j.mu.Lock()
	toks := j.byFact[h]
	delete(j.byFact, h)
	j.mu.Unlock()

	for _, t := range toks {
		j.emit(t, false)
	}
}

func sameTokenKey(a, b Token) bool {
	if len(a.Facts) != len(b.Facts) {
		return false
	}
	for i := range a.Facts {
		if a.Facts[i] != b.Facts[i] {
			return false
		}
	}
	return true
}
