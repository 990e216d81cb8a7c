// Package agenda implements the conflict-resolution agenda of spec
// §4.F: a priority structure over rule activations supporting eight
// strategies, each a distinct ordering over (salience, recency,
// condition_count, depth, insertion order).
//
// Grounded on _examples/smilemakc-mbflow's internal/application/engine
// /dag_executor.go wave-scheduling comparator style, generalized from a
// single topological-depth ordering into the pluggable Strategy
// interface the eight conflict-resolution modes require.
package agenda

import (
	"container/heap"
	"math/rand"
	"sync"
	"time"

	"github.com/smilemakc/retecore/internal/fact"
)

// Activation is the agenda's token (spec §3 Activation).
type Activation struct {
	RuleName       string
	Bindings       map[string]fact.Handle
	ConditionCount int
	Salience       int
	Sequence       uint64
	Timestamp      time.Time // wall time of insertion; doubles as "recency"
	MaxFactTime    time.Time // max fact timestamp in the token, for LEX/MEA
	Depth          int       // rule-chain depth, for Depth/Breadth strategies

	// Facts lists every fact handle bound in this activation, used by
	// RemoveForFact to find activations invalidated by a retraction.
	Facts []fact.Handle
}

// StrategyKind names one of the eight conflict-resolution strategies.
type StrategyKind string

const (
	StrategySalience   StrategyKind = "salience"
	StrategyLEX        StrategyKind = "lex"
	StrategyMEA        StrategyKind = "mea"
	StrategyDepth      StrategyKind = "depth"
	StrategyBreadth    StrategyKind = "breadth"
	StrategySimplicity StrategyKind = "simplicity"
	StrategyComplexity StrategyKind = "complexity"
	StrategyRandom     StrategyKind = "random"
)

// Strategy orders two activations: Less(a, b) reports whether a should
// fire before b.
type Strategy interface {
	Less(a, b *Activation) bool
}

type bySalience struct{}

func (bySalience) Less(a, b *Activation) bool {
	if a.Salience != b.Salience {
		return a.Salience > b.Salience
	}
	return a.Sequence < b.Sequence
}

type byLEX struct{}

func (byLEX) Less(a, b *Activation) bool {
	if !a.MaxFactTime.Equal(b.MaxFactTime) {
		return a.MaxFactTime.After(b.MaxFactTime)
	}
	return bySalience{}.Less(a, b)
}

type byMEA struct{}

func (byMEA) Less(a, b *Activation) bool {
	if !a.MaxFactTime.Equal(b.MaxFactTime) {
		return a.MaxFactTime.After(b.MaxFactTime)
	}
	if a.ConditionCount != b.ConditionCount {
		return a.ConditionCount > b.ConditionCount
	}
	return bySalience{}.Less(a, b)
}

type byDepth struct{}

func (byDepth) Less(a, b *Activation) bool {
	if a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	return bySalience{}.Less(a, b)
}

type byBreadth struct{}

func (byBreadth) Less(a, b *Activation) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return bySalience{}.Less(a, b)
}

type bySimplicity struct{}

func (bySimplicity) Less(a, b *Activation) bool {
	if a.ConditionCount != b.ConditionCount {
		return a.ConditionCount < b.ConditionCount
	}
	return bySalience{}.Less(a, b)
}

type byComplexity struct{}

func (byComplexity) Less(a, b *Activation) bool {
	if a.ConditionCount != b.ConditionCount {
		return a.ConditionCount > b.ConditionCount
	}
	return bySalience{}.Less(a, b)
}

// NewStrategy resolves a StrategyKind into its Strategy implementation.
// Random is handled separately by the Agenda itself (reservoir sampling
// rather than a heap comparator).
func NewStrategy(kind StrategyKind) Strategy {
	switch kind {
	case StrategyLEX:
		return byLEX{}
	case StrategyMEA:
		return byMEA{}
	case StrategyDepth:
		return byDepth{}
	case StrategyBreadth:
		return byBreadth{}
	case StrategySimplicity:
		return bySimplicity{}
	case StrategyComplexity:
		return byComplexity{}
	default:
		return bySalience{}
	}
}

// activationHeap adapts []*Activation to container/heap using a Strategy.
type activationHeap struct {
	items    []*Activation
	strategy Strategy
}

func (h activationHeap) Len() int            { return len(h.items) }
func (h activationHeap) Less(i, j int) bool  { return h.strategy.Less(h.items[i], h.items[j]) }
func (h activationHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *activationHeap) Push(x interface{}) { h.items = append(h.items, x.(*Activation)) }
func (h *activationHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Agenda is the conflict-resolution structure of spec §4.F.
type Agenda struct {
	mu       sync.Mutex
	kind     StrategyKind
	heap     *activationHeap
	random   []*Activation // flat slice for the Random strategy
	rng      *rand.Rand
	sequence uint64
}

// New builds an Agenda using the given strategy. seed is only used by
// the Random strategy, for deterministic tiebreaking (spec §4.F table).
func New(kind StrategyKind, seed int64) *Agenda {
	a := &Agenda{kind: kind, rng: rand.New(rand.NewSource(seed))}
	if kind != StrategyRandom {
		a.heap = &activationHeap{strategy: NewStrategy(kind)}
		heap.Init(a.heap)
	}
	return a
}

// Add inserts a new activation (spec §4.F: add(activation)).
func (a *Agenda) Add(act *Activation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sequence++
	act.Sequence = a.sequence
	if a.kind == StrategyRandom {
		a.random = append(a.random, act)
		return
	}
	heap.Push(a.heap, act)
}

// PopNext removes and returns the highest-priority activation, or nil
// if the agenda is empty (spec §4.F: pop_next() -> activation?).
func (a *Agenda) PopNext() *Activation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kind == StrategyRandom {
		if len(a.random) == 0 {
			return nil
		}
		i := a.rng.Intn(len(a.random))
		act := a.random[i]
		a.random[i] = a.random[len(a.random)-1]
		a.random = a.random[:len(a.random)-1]
		return act
	}
	if a.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(a.heap).(*Activation)
}

// RemoveForFact removes every pending activation that binds the given
// fact handle (spec §4.F: remove_for_fact(handle), driven by beta
// retraction propagation).
func (a *Agenda) RemoveForFact(h fact.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	keep := func(act *Activation) bool {
		for _, f := range act.Facts {
			if f == h {
				return false
			}
		}
		return true
	}

	if a.kind == StrategyRandom {
		out := a.random[:0]
		for _, act := range a.random {
			if keep(act) {
				out = append(out, act)
			}
		}
		a.random = out
		return
	}

	filtered := make([]*Activation, 0, a.heap.Len())
	for _, act := range a.heap.items {
		if keep(act) {
			filtered = append(filtered, act)
		}
	}
	a.heap.items = filtered
	heap.Init(a.heap)
}

// Remove removes one specific activation by identity, used when a beta
// negative token invalidates exactly one binding tuple rather than every
// activation touching a fact (spec §4.E: retraction "removes derived
// tokens and activations").
func (a *Agenda) Remove(target *Activation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	keep := func(act *Activation) bool { return act != target }

	if a.kind == StrategyRandom {
		out := a.random[:0]
		for _, act := range a.random {
			if keep(act) {
				out = append(out, act)
			}
		}
		a.random = out
		return
	}

	filtered := make([]*Activation, 0, a.heap.Len())
	for _, act := range a.heap.items {
		if keep(act) {
			filtered = append(filtered, act)
		}
	}
	a.heap.items = filtered
	heap.Init(a.heap)
}

// Clear empties the agenda.
func (a *Agenda) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kind == StrategyRandom {
		a.random = nil
		return
	}
	a.heap.items = nil
}

// Len reports the number of pending activations.
func (a *Agenda) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kind == StrategyRandom {
		return len(a.random)
	}
	return a.heap.Len()
}
