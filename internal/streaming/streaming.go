// Package streaming implements spec §4.H: the streaming extension layered
// on top of the base fact store and alpha network — window assignment,
// watermark tracking, late-data handling, and a windowed stream-stream
// join.
//
// Grounded on the alpha package's own Route/Retract routing discipline
// (internal/alpha/alpha.go) and on fact.Store's StreamMeta/
// InsertStreamEvent support, which this package is the first consumer
// of. No teacher file does stream processing directly, so the window/
// watermark bookkeeping below follows the same RWMutex-guarded-map
// shape used throughout the rest of this module (fact.Store, rule.Base)
// rather than importing an unrelated streaming framework.
package streaming

import (
	"sync"
	"time"

	"github.com/smilemakc/retecore/internal/alpha"
	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/value"
)

// WindowKind discriminates the Window union (spec §4.H).
type WindowKind string

const (
	WindowTumbling WindowKind = "tumbling"
	WindowSliding  WindowKind = "sliding"
	WindowSession  WindowKind = "session"
)

// Span is a half-open window interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the span.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Window assigns event timestamps to one or more window spans.
type Window struct {
	Kind WindowKind
	Size time.Duration // Tumbling, Sliding
	Step time.Duration // Sliding slide interval
	Gap  time.Duration // Session inactivity gap
}

// Tumbling builds a fixed, non-overlapping window of the given size.
func Tumbling(size time.Duration) Window { return Window{Kind: WindowTumbling, Size: size} }

// Sliding builds an overlapping window of size advancing every step.
func Sliding(size, step time.Duration) Window {
	return Window{Kind: WindowSliding, Size: size, Step: step}
}

// Session builds a session window that closes after gap of inactivity.
func Session(gap time.Duration) Window { return Window{Kind: WindowSession, Gap: gap} }

// AssignTumbling returns the single tumbling span containing t.
func (w Window) AssignTumbling(t time.Time) Span {
	size := w.Size.Nanoseconds()
	start := (t.UnixNano() / size) * size
	return Span{Start: time.Unix(0, start), End: time.Unix(0, start+size)}
}

// AssignSliding returns every sliding span containing t.
func (w Window) AssignSliding(t time.Time) []Span {
	var spans []Span
	step := w.Step.Nanoseconds()
	size := w.Size.Nanoseconds()
	latestStart := (t.UnixNano() / step) * step
	for start := latestStart; start > t.UnixNano()-size; start -= step {
		span := Span{Start: time.Unix(0, start), End: time.Unix(0, start+size)}
		if span.Contains(t) {
			spans = append(spans, span)
		}
	}
	return spans
}

// Assign returns every span t belongs to for Tumbling/Sliding windows.
// Session windows are assigned incrementally by SessionAssigner instead,
// since their boundaries depend on prior events.
func (w Window) Assign(t time.Time) []Span {
	switch w.Kind {
	case WindowTumbling:
		return []Span{w.AssignTumbling(t)}
	case WindowSliding:
		return w.AssignSliding(t)
	default:
		return nil
	}
}

// SessionAssigner tracks open session spans per key, merging a new event
// into an existing session if it arrives before the session's current
// end (its latest event plus Gap), or opening a new one otherwise.
type SessionAssigner struct {
	mu      sync.Mutex
	gap     time.Duration
	current map[string]Span
}

// NewSessionAssigner builds an assigner for the given inactivity gap.
func NewSessionAssigner(gap time.Duration) *SessionAssigner {
	return &SessionAssigner{gap: gap, current: make(map[string]Span)}
}

// Assign folds t into key's current session, extending it if t arrives
// within the gap, and returns the resulting span.
func (a *SessionAssigner) Assign(key string, t time.Time) Span {
	a.mu.Lock()
	defer a.mu.Unlock()
	span, ok := a.current[key]
	if ok && !t.Before(span.Start) && t.Before(span.End) {
		if t.Add(a.gap).After(span.End) {
			span.End = t.Add(a.gap)
		}
		a.current[key] = span
		return span
	}
	span = Span{Start: t, End: t.Add(a.gap)}
	a.current[key] = span
	return span
}

// WatermarkStrategy selects how the stream's watermark advances (spec §4.H).
type WatermarkStrategy string

const (
	MonotonicAscending WatermarkStrategy = "monotonic_ascending"
	BoundedOutOfOrder  WatermarkStrategy = "bounded_out_of_order"
	Periodic           WatermarkStrategy = "periodic"
)

// LateDataPolicy names how a stream handles an event past the current
// watermark minus AllowedLateness (spec §6).
type LateDataPolicy string

const (
	LateDataDrop       LateDataPolicy = "drop"
	LateDataSideOutput LateDataPolicy = "side_output"
	LateDataAllow      LateDataPolicy = "allow"
)

// Watermark tracks a single stream's progress in event time.
type Watermark struct {
	mu              sync.Mutex
	Strategy        WatermarkStrategy
	OutOfOrderBound time.Duration // BoundedOutOfOrder: watermark = max seen - bound
	PeriodicEvery   time.Duration // Periodic: watermark only advances this often
	maxSeen         time.Time
	current         time.Time
	lastEmit        time.Time
}

// Observe folds one event's timestamp into the watermark and returns the
// (possibly unchanged) current watermark value.
func (w *Watermark) Observe(eventTime time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if eventTime.After(w.maxSeen) {
		w.maxSeen = eventTime
	}

	switch w.Strategy {
	case BoundedOutOfOrder:
		candidate := w.maxSeen.Add(-w.OutOfOrderBound)
		if candidate.After(w.current) {
			w.current = candidate
		}
	case Periodic:
		if w.lastEmit.IsZero() || eventTime.Sub(w.lastEmit) >= w.PeriodicEvery {
			w.current = w.maxSeen
			w.lastEmit = eventTime
		}
	default: // MonotonicAscending
		w.current = w.maxSeen
	}
	return w.current
}

// Current returns the watermark's last computed value.
func (w *Watermark) Current() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Min returns the earliest of a set of watermarks — spec §4.H:
// "Downstream watermark = min of input watermarks."
func Min(marks ...*Watermark) time.Time {
	var min time.Time
	for i, m := range marks {
		c := m.Current()
		if i == 0 || c.Before(min) {
			min = c
		}
	}
	return min
}

// IsLate reports whether eventTime falls behind the watermark by more
// than allowedLateness.
func IsLate(watermark time.Time, allowedLateness time.Duration, eventTime time.Time) bool {
	return eventTime.Before(watermark.Add(-allowedLateness))
}

// StreamAlphaNode wraps alpha.Network with watermark bookkeeping: an
// event behind the watermark by more than AllowedLateness is handled per
// LateDataPolicy before reaching any rule condition, and every other
// event is routed into the network (spec §4.H). Route does not consult
// Window: events are not buffered per window span, and nothing is
// evicted or retracted when the watermark advances.
type StreamAlphaNode struct {
	Network         *alpha.Network
	Window          Window
	AllowedLateness time.Duration
	LatePolicy      LateDataPolicy

	watermark *Watermark
	sideMu    sync.Mutex
	sideOut   []fact.Handle
}

// NewStreamAlphaNode builds a StreamAlphaNode over an existing alpha
// network, using strategy for its watermark.
func NewStreamAlphaNode(net *alpha.Network, window Window, strategy WatermarkStrategy, allowedLateness time.Duration, policy LateDataPolicy) *StreamAlphaNode {
	return &StreamAlphaNode{
		Network:         net,
		Window:          window,
		AllowedLateness: allowedLateness,
		LatePolicy:      policy,
		watermark:       &Watermark{Strategy: strategy},
	}
}

// Watermark exposes the node's current watermark tracker, so callers
// can combine several streams' watermarks via Min.
func (n *StreamAlphaNode) Watermark() *Watermark { return n.watermark }

// Route admits one streaming fact into the underlying alpha network,
// first checking it against the watermark/lateness policy.
func (n *StreamAlphaNode) Route(factType string, h fact.Handle, meta fact.StreamMeta) error {
	wm := n.watermark.Current()
	if IsLate(wm, n.AllowedLateness, meta.EventTime) {
		switch n.LatePolicy {
		case LateDataDrop, "":
			return nil
		case LateDataSideOutput:
			n.sideMu.Lock()
			n.sideOut = append(n.sideOut, h)
			n.sideMu.Unlock()
			return nil
		case LateDataAllow:
			// fall through to normal routing despite lateness
		default:
			return errs.New(errs.CodeInvalidInput, "unknown late data policy: "+string(n.LatePolicy), nil)
		}
	}
	n.watermark.Observe(meta.EventTime)
	n.Network.Route(factType, h)
	return nil
}

// SideOutput drains and returns every fact routed to the side output
// since the last call.
func (n *StreamAlphaNode) SideOutput() []fact.Handle {
	n.sideMu.Lock()
	defer n.sideMu.Unlock()
	out := n.sideOut
	n.sideOut = nil
	return out
}

// JoinMode selects stream-stream join semantics (spec §4.H).
type JoinMode string

const (
	JoinInner     JoinMode = "inner"
	JoinLeftOuter JoinMode = "left_outer"
	JoinRightOuter JoinMode = "right_outer"
	JoinFullOuter JoinMode = "full_outer"
)

// KeyExtractor projects a join key out of a fact snapshot.
type KeyExtractor func(snapshot value.Value) value.Value

// Predicate is an additional, user-supplied join condition evaluated
// once two facts' keys already match.
type Predicate func(l, r fact.Handle, snapL, snapR value.Value) bool

// Pair is one emitted join result. For an outer join with no match on
// one side, the unmatched handle is the zero fact.Handle and Matched is
// false.
type Pair struct {
	Left    fact.Handle
	Right   fact.Handle
	Matched bool
}

// StreamJoinNode performs a windowed stream-stream join: facts from two
// streams are bucketed by window span, and within a span every left/
// right pair whose keys match (and whose Predicate, if set, also holds)
// is emitted (spec §4.H).
type StreamJoinNode struct {
	Mode      JoinMode
	Window    Window
	LeftKey   KeyExtractor
	RightKey  KeyExtractor
	Predicate Predicate
	Store     *fact.Store

	mu      sync.Mutex
	left    map[Span][]fact.Handle
	right   map[Span][]fact.Handle
}

// NewStreamJoinNode builds a join node over store, using window to
// bucket both input streams.
func NewStreamJoinNode(store *fact.Store, window Window, mode JoinMode, leftKey, rightKey KeyExtractor) *StreamJoinNode {
	return &StreamJoinNode{
		Mode:     mode,
		Window:   window,
		LeftKey:  leftKey,
		RightKey: rightKey,
		Store:    store,
		left:     make(map[Span][]fact.Handle),
		right:    make(map[Span][]fact.Handle),
	}
}

// AddLeft admits a left-stream fact at eventTime and returns every pair
// it completes.
func (j *StreamJoinNode) AddLeft(h fact.Handle, eventTime time.Time) []Pair {
	return j.add(h, eventTime, true)
}

// AddRight admits a right-stream fact at eventTime and returns every
// pair it completes.
func (j *StreamJoinNode) AddRight(h fact.Handle, eventTime time.Time) []Pair {
	return j.add(h, eventTime, false)
}

func (j *StreamJoinNode) add(h fact.Handle, eventTime time.Time, isLeft bool) []Pair {
	spans := j.Window.Assign(eventTime)
	snap, ok := j.Store.Snapshot(h)
	if !ok {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var pairs []Pair
	for _, span := range spans {
		if isLeft {
			j.left[span] = append(j.left[span], h)
			for _, rh := range j.right[span] {
				if p, ok := j.match(h, rh, snap); ok {
					pairs = append(pairs, p)
				}
			}
		} else {
			j.right[span] = append(j.right[span], h)
			for _, lh := range j.left[span] {
				if p, ok := j.match(lh, h, snap); ok {
					pairs = append(pairs, p)
				}
			}
		}
	}
	return pairs
}

func (j *StreamJoinNode) match(lh, rh fact.Handle, triggeringSnap value.Value) (Pair, bool) {
	lSnap, ok := j.Store.Snapshot(lh)
	if !ok {
		return Pair{}, false
	}
	rSnap, ok := j.Store.Snapshot(rh)
	if !ok {
		return Pair{}, false
	}
	lKey := j.LeftKey(lSnap)
	rKey := j.RightKey(rSnap)
	if !value.Equal(lKey, rKey) {
		return Pair{}, false
	}
	if j.Predicate != nil && !j.Predicate(lh, rh, lSnap, rSnap) {
		return Pair{}, false
	}
	return Pair{Left: lh, Right: rh, Matched: true}, true
}

// CloseSpan flushes span, emitting unmatched rows per Mode (LeftOuter/
// RightOuter/FullOuter) and discarding the span's buffered facts.
// Matched pairs were already returned by AddLeft/AddRight and are not
// emitted again.
func (j *StreamJoinNode) CloseSpan(span Span) []Pair {
	j.mu.Lock()
	defer j.mu.Unlock()

	lefts := j.left[span]
	rights := j.right[span]
	matchedLeft := make(map[fact.Handle]bool)
	matchedRight := make(map[fact.Handle]bool)
	var pairs []Pair

	for _, lh := range lefts {
		lSnap, ok := j.Store.Snapshot(lh)
		if !ok {
			continue
		}
		for _, rh := range rights {
			if _, ok := j.match(lh, rh, lSnap); ok {
				matchedLeft[lh] = true
				matchedRight[rh] = true
			}
		}
	}

	if j.Mode == JoinLeftOuter || j.Mode == JoinFullOuter {
		for _, lh := range lefts {
			if !matchedLeft[lh] {
				pairs = append(pairs, Pair{Left: lh, Matched: false})
			}
		}
	}
	if j.Mode == JoinRightOuter || j.Mode == JoinFullOuter {
		for _, rh := range rights {
			if !matchedRight[rh] {
				pairs = append(pairs, Pair{Right: rh, Matched: false})
			}
		}
	}

	delete(j.left, span)
	delete(j.right, span)
	return pairs
}
