package beta

import (
	"sync"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
)

// NotNode implements negation/absence (spec §4.E): it emits exactly one
// token for each left input while no matching right tokens exist;
// arrival of a right match retracts that token, and the token is
// re-emitted once the last matching right token disappears.
type NotNode struct {
	mu          sync.Mutex
	store       *fact.Store
	constraints []Constraint
	rightVar    string
	left        map[string]Token // keyed by left token's fact-handle tuple
	matchCount  map[string]int   // number of right tokens currently matching each left token
	right       map[fact.Handle]condeval.Bindings
	sinks       []OutputSink
}

// NewNotNode builds a Not node joining against the given right-hand
// fact variable's alpha output.
func NewNotNode(store *fact.Store, rightVar string, constraints []Constraint) *NotNode {
	return &NotNode{
		store:       store,
		constraints: constraints,
		rightVar:    rightVar,
		left:        make(map[string]Token),
		matchCount:  make(map[string]int),
		right:       make(map[fact.Handle]condeval.Bindings),
	}
}

// Subscribe attaches a downstream sink.
func (n *NotNode) Subscribe(s OutputSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

func (n *NotNode) emit(tok Token, positive bool) {
	n.mu.Lock()
	sinks := make([]OutputSink, len(n.sinks))
	copy(sinks, n.sinks)
	n.mu.Unlock()
	for _, s := range sinks {
		s(tok, positive)
	}
}

func tokenKey(tok Token) string {
	key := ""
	for _, h := range tok.Facts {
		key += h.Type + ":" + h.ID.String() + "|"
	}
	return key
}

// LeftInput receives a token from the predecessor node.
func (n *NotNode) LeftInput(tok Token, positive bool) {
	k := tokenKey(tok)
	n.mu.Lock()
	if !positive {
		delete(n.left, k)
		count := n.matchCount[k]
		delete(n.matchCount, k)
		n.mu.Unlock()
		if count == 0 {
			n.emit(tok, false)
		}
		return
	}
	n.left[k] = tok
	count := 0
	for rh, rb := range n.right {
		if n.holds(tok.Bindings, rb) {
			count++
			_ = rh
		}
	}
	n.matchCount[k] = count
	n.mu.Unlock()

	if count == 0 {
		n.emit(tok, true)
	}
}

func (n *NotNode) holds(left, right condeval.Bindings) bool {
	for _, c := range n.constraints {
		if !c.holds(n.store, left, right) {
			return false
		}
	}
	return true
}

// RightInput receives a one-tuple token from the alpha node. A new
// match retracts any currently-emitted left token whose count
// transitions 0->1; a departing match re-emits any left token whose
// count transitions 1->0.
func (n *NotNode) RightInput(h fact.Handle, positive bool) {
	n.mu.Lock()
	rb := condeval.Bindings{n.rightVar: h}
	if positive {
		n.right[h] = rb
	} else {
		delete(n.right, h)
	}

	type transition struct {
		tok       Token
		retracted bool
	}
	var transitions []transition

	for k, tok := range n.left {
		if !n.holds(tok.Bindings, rb) {
			continue
		}
		before := n.matchCount[k]
		if positive {
			n.matchCount[k] = before + 1
			if before == 0 {
				transitions = append(transitions, transition{tok: tok, retracted: true})
			}
		} else {
			after := before - 1
			if after < 0 {
				after = 0
			}
			n.matchCount[k] = after
			if before > 0 && after == 0 {
				transitions = append(transitions, transition{tok: tok, retracted: false})
			}
		}
	}
	n.mu.Unlock()

	for _, tr := range transitions {
		if tr.retracted {
			n.emit(tr.tok, false)
		} else {
			n.emit(tr.tok, true)
		}
	}
}
