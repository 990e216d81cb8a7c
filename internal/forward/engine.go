// Package forward implements the forward-chaining cycle engine of spec
// §4.G: drain pending fact events into the alpha/beta network, pop the
// highest-priority activation, check no_loop, dispatch its actions, and
// repeat until the agenda empties, a cycle limit is hit, or a timeout
// fires.
//
// Grounded on _examples/smilemakc-mbflow's internal/application/engine
// /dag_executor.go (Execute's wave loop: pop ready work, run it, collect
// newly-ready work, repeat) for the cycle-loop shape, generalized from
// topological DAG waves to agenda-ordered rule activations.
package forward

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/retecore/internal/agenda"
	"github.com/smilemakc/retecore/internal/alpha"
	"github.com/smilemakc/retecore/internal/beta"
	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/conclusion"
	"github.com/smilemakc/retecore/internal/dispatch"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
)

// Halt reasons (spec §4.G).
const (
	HaltEmpty     = "empty"
	HaltMaxCycles = "max_cycles"
	HaltTimeout   = "timeout"
	HaltError     = "error"
)

// Options configures one Execute call.
type Options struct {
	Strategy  agenda.StrategyKind
	Seed      int64
	MaxCycles int
	Timeout   time.Duration
	Debug     bool // gates CycleTrace collection (spec §3 supplement)
}

// Result is the outcome of a forward-engine run (spec §4.G).
type Result struct {
	Cycles         int
	RulesFired     int
	RulesEvaluated int
	Elapsed        time.Duration
	HaltReason     string
	Traces         []CycleTrace // only populated when Options.Debug is set
}

// CycleTrace is wave-level debugging metadata (spec §3 supplement,
// grounded in dag_executor.go's wave-started/wave-completed events).
type CycleTrace struct {
	Cycle     int
	RuleFired string
}

type factEvent struct {
	handle fact.Handle
	kind   string // "insert", "mutate", "retract"
}

// Engine runs forward-chaining cycles over a rule.Base and fact.Store.
type Engine struct {
	base  *rule.Base
	store *fact.Store
	net   *alpha.Network
	eval  *condeval.Evaluator

	Functions *dispatch.FunctionRegistry
	Handlers  *dispatch.HandlerRegistry
	Retry     dispatch.RetryPolicy
	Logger    zerolog.Logger

	Conclusions *conclusion.Index

	dispatcher *dispatch.Dispatcher
	compiled   map[string]*compiledRule
	lastFired  map[string]string

	pending []factEvent

	active        map[string]*agenda.Activation // keyed by bruteKey/tokenKeyFor
	currentAgenda *agenda.Agenda
}

// New builds a forward engine over base/store with default registries.
func New(base *rule.Base, store *fact.Store) *Engine {
	eval := condeval.New(store, nil)
	e := &Engine{
		base:        base,
		store:       store,
		net:         alpha.New(store, eval),
		eval:        eval,
		Functions:   dispatch.NewFunctionRegistry(),
		Handlers:    dispatch.NewHandlerRegistry(),
		Retry:       dispatch.NoRetryPolicy(),
		Logger:      zerolog.Nop(),
		Conclusions: conclusion.NewIndex(),
		dispatcher:  dispatch.New(),
		compiled:    make(map[string]*compiledRule),
		lastFired:   make(map[string]string),
		active:      make(map[string]*agenda.Activation),
	}
	store.Subscribe(e)
	return e
}

// OnInsert implements fact.Listener: events are queued, not processed
// immediately (spec §4.G step 1: drained at the start of the next cycle).
func (e *Engine) OnInsert(h fact.Handle) {
	e.pending = append(e.pending, factEvent{handle: h, kind: "insert"})
}
func (e *Engine) OnMutate(h fact.Handle) {
	e.pending = append(e.pending, factEvent{handle: h, kind: "mutate"})
}
func (e *Engine) OnRetract(h fact.Handle) {
	e.pending = append(e.pending, factEvent{handle: h, kind: "retract"})
}

// Compile wires a rule into the alpha/beta network (or flags it for the
// brute-force fallback path), and registers it with the conclusion index.
func (e *Engine) Compile(r *rule.Rule) {
	e.Conclusions.IndexRule(r)
	if cr, ok := e.compileNetwork(r); ok {
		e.wireTerminal(cr)
		e.compiled[r.Name] = cr
		return
	}
	e.compiled[r.Name] = &compiledRule{rule: r, network: false}
}

func (e *Engine) wireTerminal(cr *compiledRule) {
	ruleName := cr.rule.Name
	cr.terminal.Subscribe(func(tok beta.Token, positive bool) {
		e.handleToken(ruleName, tok.Bindings, tok.Facts, positive)
	})
}

func (e *Engine) handleToken(ruleName string, bindings condeval.Bindings, facts []fact.Handle, positive bool) {
	key := tokenKeyFor(ruleName, facts)
	if positive {
		if _, exists := e.active[key]; exists {
			return
		}
		r, _ := e.base.Get(ruleName)
		act := &agenda.Activation{
			RuleName:       ruleName,
			Bindings:       map[string]fact.Handle(bindings),
			ConditionCount: countAtoms(r.Condition),
			Salience:       r.Salience,
			Timestamp:      time.Now(),
			Facts:          facts,
		}
		e.active[key] = act
		if e.currentAgenda != nil {
			e.currentAgenda.Add(act)
		}
		return
	}
	if act, ok := e.active[key]; ok {
		delete(e.active, key)
		if e.currentAgenda != nil {
			e.currentAgenda.Remove(act)
		}
	}
}

func tokenKeyFor(ruleName string, facts []fact.Handle) string {
	s := ruleName + "|"
	for _, f := range facts {
		s += f.Type + ":" + f.ID.String() + ","
	}
	return s
}

func bruteKey(ruleName string, b map[string]fact.Handle) string {
	s := ruleName + "|"
	for k, h := range b {
		s += k + "=" + h.Type + ":" + h.ID.String() + ";"
	}
	return s
}

func countAtoms(cond rule.ConditionNode) int {
	switch cond.Kind {
	case rule.CondAtom, rule.CondFunctionAtom:
		return 1
	case rule.CondNot:
		n := 0
		for _, c := range cond.Children {
			n += countAtoms(c)
		}
		return n
	case rule.CondAnd, rule.CondOr:
		n := 0
		for _, c := range cond.Children {
			n += countAtoms(c)
		}
		return n
	case rule.CondExists, rule.CondForAll:
		if cond.Inner != nil {
			return 1 + countAtoms(*cond.Inner)
		}
		return 1
	default:
		return 0
	}
}

// rescanBrute re-evaluates a brute-force-compiled rule's condition tree
// over the cartesian product of candidate facts for each declared
// binding variable, diffing against previously active activations.
func (e *Engine) rescanBrute(cr *compiledRule) {
	r := cr.rule
	order := r.BindingOrder()

	var combos []map[string]fact.Handle
	var rec func(i int, cur map[string]fact.Handle)
	rec = func(i int, cur map[string]fact.Handle) {
		if i == len(order) {
			clone := make(map[string]fact.Handle, len(cur))
			for k, v := range cur {
				clone[k] = v
			}
			combos = append(combos, clone)
			return
		}
		v := order[i]
		factType := r.Bindings[v]
		e.store.IterByType(factType, func(h fact.Handle) {
			cur[v] = h
			rec(i+1, cur)
		})
		delete(cur, v)
	}
	if len(order) == 0 {
		combos = append(combos, map[string]fact.Handle{})
	} else {
		rec(0, map[string]fact.Handle{})
	}

	seen := make(map[string]bool, len(combos))
	for _, b := range combos {
		ok, err := e.eval.Evaluate(r.Condition, condeval.Bindings(b))
		if err != nil || !ok {
			continue
		}
		key := bruteKey(r.Name, b)
		seen[key] = true
		if _, exists := e.active[key]; exists {
			continue
		}
		facts := make([]fact.Handle, 0, len(b))
		for _, v := range order {
			facts = append(facts, b[v])
		}
		act := &agenda.Activation{
			RuleName:       r.Name,
			Bindings:       b,
			ConditionCount: countAtoms(r.Condition),
			Salience:       r.Salience,
			Timestamp:      time.Now(),
			Facts:          facts,
		}
		e.active[key] = act
		if e.currentAgenda != nil {
			e.currentAgenda.Add(act)
		}
	}

	prefix := r.Name + "|"
	for key, act := range e.active {
		if !strings.HasPrefix(key, prefix) || seen[key] {
			continue
		}
		delete(e.active, key)
		if e.currentAgenda != nil {
			e.currentAgenda.Remove(act)
		}
	}
}

// drainPending routes queued fact events through the alpha/beta network
// (network-mode rules) and re-scans brute-force rules (spec §4.G step 1).
func (e *Engine) drainPending(ag *agenda.Agenda) {
	events := e.pending
	e.pending = nil

	for _, ev := range events {
		switch ev.kind {
		case "insert", "mutate":
			e.net.Route(ev.handle.Type, ev.handle)
		case "retract":
			e.net.Retract(ev.handle.Type, ev.handle)
			ag.RemoveForFact(ev.handle)
			e.pruneActiveForFact(ev.handle)
		}
	}

	if len(events) == 0 {
		return
	}
	for _, cr := range e.compiled {
		if !cr.network {
			e.rescanBrute(cr)
		}
	}
}

func (e *Engine) pruneActiveForFact(h fact.Handle) {
	for key, act := range e.active {
		for _, f := range act.Facts {
			if f == h {
				delete(e.active, key)
				break
			}
		}
	}
}

// Execute runs the forward cycle loop of spec §4.G to completion.
func (e *Engine) Execute(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	ag := agenda.New(opts.Strategy, opts.Seed)
	e.currentAgenda = ag
	e.lastFired = make(map[string]string)

	var result Result

	var deadlineAt time.Time
	if opts.Timeout > 0 {
		deadlineAt = start.Add(opts.Timeout)
	}

	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 10000
	}

	for {
		select {
		case <-ctx.Done():
			result.HaltReason = HaltError
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		default:
		}

		e.drainPending(ag)

		act := ag.PopNext()
		if act == nil {
			result.HaltReason = HaltEmpty
			break
		}

		result.RulesEvaluated++

		r, ok := e.base.Get(act.RuleName)
		if !ok {
			continue
		}

		key := bindingKey(act.Bindings)
		if r.NoLoop && e.lastFired[r.Name] == key {
			continue
		}

		if err := e.fire(ctx, r, act); err != nil {
			e.Logger.Error().Err(err).Str("rule", r.Name).Msg("action execution failed")
		}
		e.lastFired[r.Name] = key
		result.RulesFired++
		if opts.Debug {
			result.Traces = append(result.Traces, CycleTrace{Cycle: result.Cycles + 1, RuleFired: r.Name})
		}

		result.Cycles++
		if result.Cycles >= maxCycles {
			result.HaltReason = HaltMaxCycles
			break
		}

		if !deadlineAt.IsZero() && time.Now().After(deadlineAt) {
			result.HaltReason = HaltTimeout
			break
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// RefreshActivations drains any pending fact events into the alpha/beta
// network and brute-force rescans without popping or firing anything,
// leaving e.active up to date. Used by the parallel executor (spec
// §4.K), which fires already-activated rules across conflict-free
// batches instead of going through the single-activation agenda loop.
func (e *Engine) RefreshActivations() {
	if e.currentAgenda == nil {
		e.currentAgenda = agenda.New(agenda.StrategySalience, 0)
	}
	e.drainPending(e.currentAgenda)
}

// ActiveBindings returns the binding sets of every activation currently
// active for ruleName.
func (e *Engine) ActiveBindings(ruleName string) []map[string]fact.Handle {
	prefix := ruleName + "|"
	var out []map[string]fact.Handle
	for key, act := range e.active {
		if strings.HasPrefix(key, prefix) {
			out = append(out, act.Bindings)
		}
	}
	return out
}

// FireRule runs r's actions directly against bindings, bypassing the
// agenda (spec §4.K: the parallel executor computes its own fire order).
func (e *Engine) FireRule(ctx context.Context, r *rule.Rule, bindings map[string]fact.Handle) error {
	act := &agenda.Activation{RuleName: r.Name, Bindings: bindings}
	return e.fire(ctx, r, act)
}

func (e *Engine) fire(ctx context.Context, r *rule.Rule, act *agenda.Activation) error {
	env := &dispatch.Env{
		Store:     e.store,
		Bindings:  condeval.Bindings(act.Bindings),
		Functions: e.Functions,
		Handlers:  e.Handlers,
		Retry:     e.Retry,
		Logger:    e.Logger,
	}
	for _, a := range r.Actions {
		if err := e.dispatcher.Run(ctx, a, env); err != nil {
			return err
		}
	}
	return nil
}

func bindingKey(b map[string]fact.Handle) string {
	s := ""
	for k, h := range b {
		s += k + "=" + h.Type + ":" + h.ID.String() + ";"
	}
	return s
}
