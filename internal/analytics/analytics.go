// Package analytics implements spec §4.N: per-rule advisory counters, a
// rolling window of execution durations for trend detection, and an
// optional OpenTelemetry span per rule evaluation.
//
// Grounded on _examples/smilemakc-mbflow's internal/infrastructure
// /monitoring/metrics.go (RWMutex-guarded map[string]*Metrics with
// running min/max/average) for the counter shape, and
// metrics_display.go's summary rendering for the trend classification
// idea, reworked into linear regression over a ring buffer instead of a
// simple first-vs-last comparison.
package analytics

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Trend classifies a rule's recent execution-time trajectory.
type Trend string

const (
	TrendStable    Trend = "stable"
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendUnknown   Trend = "unknown" // not enough samples yet
)

const windowSize = 32

// RuleMetrics is the advisory counter set for one rule (spec §4.N).
type RuleMetrics struct {
	Evaluations   int64
	Fires         int64
	Successes     int64
	Failures      int64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration

	window    [windowSize]time.Duration
	windowLen int
	windowPos int
}

// Collector is the analytics registry (spec §4.N). It never affects
// forward/backward engine semantics — purely advisory bookkeeping.
type Collector struct {
	mu           sync.RWMutex
	metrics      map[string]*RuleMetrics
	SamplingRate float64 // in (0,1]; 0 defaults to 1 (always sample)
	Tracer       trace.Tracer
	rng          *rand.Rand
}

// NewCollector builds an empty Collector. If seed is 0 a fixed seed is
// used; callers needing true randomness across runs should pass a
// distinct seed per process.
func NewCollector(seed int64) *Collector {
	return &Collector{
		metrics:      make(map[string]*RuleMetrics),
		SamplingRate: 1.0,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (c *Collector) shouldSample() bool {
	rate := c.SamplingRate
	if rate <= 0 || rate >= 1 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < rate
}

// RecordEvaluation records one condition evaluation for ruleName,
// whether or not it resulted in an activation.
func (c *Collector) RecordEvaluation(ruleName string) {
	if !c.shouldSample() {
		return
	}
	m := c.ruleMetrics(ruleName)
	c.mu.Lock()
	m.Evaluations++
	c.mu.Unlock()
}

// RecordFire records one rule firing outcome and its action-execution
// duration (spec §4.N counters + rolling window).
func (c *Collector) RecordFire(ctx context.Context, ruleName string, duration time.Duration, success bool, fn func(context.Context) error) error {
	var span trace.Span
	runCtx := ctx
	if c.Tracer != nil {
		runCtx, span = c.Tracer.Start(ctx, "rule.fire:"+ruleName)
		defer span.End()
	}

	if !c.shouldSample() {
		if fn != nil {
			return fn(runCtx)
		}
		return nil
	}

	var err error
	if fn != nil {
		err = fn(runCtx)
		success = err == nil
	}

	m := c.ruleMetrics(ruleName)
	c.mu.Lock()
	m.Fires++
	if success {
		m.Successes++
	} else {
		m.Failures++
	}
	m.TotalDuration += duration
	if m.MinDuration == 0 || duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
	m.window[m.windowPos] = duration
	m.windowPos = (m.windowPos + 1) % windowSize
	if m.windowLen < windowSize {
		m.windowLen++
	}
	c.mu.Unlock()

	return err
}

func (c *Collector) ruleMetrics(ruleName string) *RuleMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.metrics[ruleName]
	if !ok {
		m = &RuleMetrics{}
		c.metrics[ruleName] = m
	}
	return m
}

// Snapshot returns a copy of a rule's current counters.
func (c *Collector) Snapshot(ruleName string) (RuleMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.metrics[ruleName]
	if !ok {
		return RuleMetrics{}, false
	}
	return *m, true
}

// TrendFor classifies ruleName's recent execution-time trajectory via
// linear regression of windowed means over the ring buffer (spec §4.N).
func (c *Collector) TrendFor(ruleName string) Trend {
	c.mu.RLock()
	m, ok := c.metrics[ruleName]
	if !ok {
		c.mu.RUnlock()
		return TrendUnknown
	}
	samples := windowInOrder(m)
	c.mu.RUnlock()

	if len(samples) < 4 {
		return TrendUnknown
	}

	slope := linearRegressionSlope(samples)
	// a positive slope means durations are growing over the window,
	// i.e. the rule is getting slower (degrading).
	threshold := float64(avgDuration(samples)) * 0.02
	switch {
	case slope > threshold:
		return TrendDegrading
	case slope < -threshold:
		return TrendImproving
	default:
		return TrendStable
	}
}

func windowInOrder(m *RuleMetrics) []time.Duration {
	if m.windowLen == 0 {
		return nil
	}
	out := make([]time.Duration, m.windowLen)
	start := m.windowPos - m.windowLen
	if start < 0 {
		start += windowSize
	}
	for i := 0; i < m.windowLen; i++ {
		out[i] = m.window[(start+i)%windowSize]
	}
	return out
}

func avgDuration(samples []time.Duration) time.Duration {
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}

// linearRegressionSlope computes the slope of the least-squares line
// through (index, duration) pairs.
func linearRegressionSlope(samples []time.Duration) float64 {
	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range samples {
		x := float64(i)
		y := float64(s)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
