// Package retecore wires the engine's internal packages into the
// single embeddable Engine spec §2/§9 describes: a stateful knowledge
// base plus working memory, exposing forward-chaining execution,
// backward-chaining goal proof, parallel batch execution, and the
// streaming/accumulator/analytics extensions as one cohesive API.
//
// Grounded on _examples/smilemakc-mbflow's top-level factory.go (a
// single constructor wiring config, logger, and every subsystem
// together before returning one facade object).
package retecore

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/smilemakc/retecore/internal/accumulator"
	"github.com/smilemakc/retecore/internal/analytics"
	"github.com/smilemakc/retecore/internal/backward"
	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/config"
	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/forward"
	"github.com/smilemakc/retecore/internal/logging"
	"github.com/smilemakc/retecore/internal/parallel"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

// Engine is the top-level facade: one knowledge base, one fact store,
// and the forward/backward sub-engines operating over them.
type Engine struct {
	Base  *rule.Base
	Store *fact.Store

	Forward  *forward.Engine
	Backward *backward.Engine

	Analytics *analytics.Collector
	Config    config.Config

	parallelEval *condeval.Evaluator
}

// New builds an Engine from cfg, wiring a fresh knowledge base, fact
// store, forward engine, backward engine, and analytics collector.
func New(cfg config.Config) *Engine {
	base := rule.NewBase()
	store := fact.New()

	fwd := forward.New(base, store)
	fwd.Logger = logging.New(logging.Config{Level: levelFor(cfg.DebugMode)})

	bwdEval := condeval.New(store, nil)
	bwd := backward.New(bwdEval)

	return &Engine{
		Base:         base,
		Store:        store,
		Forward:      fwd,
		Backward:     bwd,
		Analytics:    analytics.NewCollector(1),
		Config:       cfg,
		parallelEval: bwdEval,
	}
}

func levelFor(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

// AddRule registers r and compiles it into the forward engine's
// alpha/beta network (or its brute-force fallback path).
func (e *Engine) AddRule(r *rule.Rule) error {
	if err := e.Base.Add(r); err != nil {
		return err
	}
	e.Forward.Compile(r)
	return nil
}

// RemoveRule unregisters a rule by name.
func (e *Engine) RemoveRule(name string) error {
	if err := e.Base.Remove(name); err != nil {
		return err
	}
	e.Forward.Conclusions.RemoveRule(name)
	return nil
}

// Insert adds a new fact to working memory (spec §3 Fact). Any backward
// proof memoized over factType is invalidated: a new instance can change
// what an IterByType enumeration finds even without touching a field.
func (e *Engine) Insert(factType string, payload map[string]value.Value) fact.Handle {
	h := e.Store.Insert(factType, payload)
	e.Backward.InvalidateType(factType)
	return h
}

// Retract removes a fact from working memory, invalidating any backward
// proof memoized over its fact type for the same reason Insert does.
func (e *Engine) Retract(h fact.Handle) error {
	if err := e.Store.Retract(h); err != nil {
		return err
	}
	e.Backward.InvalidateType(h.Type)
	return nil
}

// Set writes a single field on an existing fact, invalidating any
// backward proof whose memoized support read that field.
func (e *Engine) Set(h fact.Handle, path value.Path, v value.Value) error {
	if err := e.Store.Set(h, path, v); err != nil {
		return err
	}
	e.Backward.InvalidateSupport(h.Type, string(path))
	return nil
}

// Run executes forward-chaining cycles to completion (spec §4.G),
// applying engine configuration defaults where the caller's opts leave
// a field unset.
func (e *Engine) Run(ctx context.Context, opts forward.Options) (forward.Result, error) {
	opts = applyDefaults(opts, e.Config)
	return e.Forward.Execute(ctx, opts)
}

func applyDefaults(opts forward.Options, cfg config.Config) forward.Options {
	if opts.MaxCycles == 0 {
		opts.MaxCycles = cfg.MaxCycles
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.Strategy == "" {
		opts.Strategy = cfg.ConflictResolutionStrategy
	}
	if cfg.DebugMode {
		opts.Debug = true
	}
	return opts
}

// Prove runs backward-chaining goal proof (spec §4.I) over the current
// knowledge base and working memory.
func (e *Engine) Prove(ctx context.Context, goalExpr string, bindings map[string]string, opts backward.Options) (backward.Result, error) {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = e.Config.Backward.MaxDepth
	}
	if opts.Strategy == "" {
		opts.Strategy = e.Config.Backward.Strategy
	}
	if opts.MaxSolutions == 0 {
		opts.MaxSolutions = e.Config.Backward.MaxSolutions
	}
	return e.Backward.Prove(ctx, e.Base, e.Store, goalExpr, bindings, opts)
}

// RunParallel fires every currently-activated rule across conflict-free
// batches (spec §4.K) instead of going through the single-activation
// agenda loop. Callers normally call Run once first so the alpha/beta
// network has populated activations; RunParallel then refreshes and
// drains them itself so it also picks up any facts inserted since.
func (e *Engine) RunParallel(ctx context.Context, popts parallel.Options) (parallel.Report, error) {
	e.Forward.RefreshActivations()

	rules := e.Base.All()
	batches := parallel.ConflictGraph(rules, e.Config.Parallel.DependencyAnalysis)
	if !e.Config.Parallel.DependencyAnalysis {
		popts.MaxThreads = 1
	}

	exec := parallel.NewExecutor(popts)
	return exec.FireAll(ctx, batches, func(r *rule.Rule) error {
		bindingSets := e.Forward.ActiveBindings(r.Name)
		for _, b := range bindingSets {
			if err := e.Forward.FireRule(ctx, r, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// Accumulate evaluates an aggregate pattern against current working
// memory (spec §4.M).
func (e *Engine) Accumulate(acc accumulator.Accumulator) (value.Value, error) {
	return acc.Evaluate(e.Store, e.parallelEval)
}

// Logger exposes the engine's configured zerolog.Logger.
func (e *Engine) Logger() zerolog.Logger {
	return e.Forward.Logger
}

// ErrCode re-exports errs.Code so callers don't need to import the
// internal errs package directly to pattern-match on error kind.
type ErrCode = errs.Code

// IsErrCode reports whether err carries the given engine error code.
func IsErrCode(err error, code ErrCode) bool {
	return errs.Is(err, code)
}
