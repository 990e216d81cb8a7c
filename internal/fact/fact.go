// Package fact implements the typed fact store (working memory) of spec
// §3/§4.A: a Handle-addressed arena of mappings, with dotted-path reads and
// writes, exclusively owned by the engine (spec §5 shared-resource policy).
//
// Grounded on _examples/smilemakc-mbflow's internal/domain/variables.go
// (VariableSet: a sync.RWMutex-guarded map[string]any with Get/Set/Clone)
// for the per-fact mutation discipline, and on the teacher's
// internal/node/registry.go (RWMutex-guarded map registry) for the
// top-level Store shape. The per-type index additionally uses
// puzpuzpuz/xsync's lock-free MapOf, since IterByType is on the hot path
// of every alpha-node routing call (spec §4.D: "independent of rule
// count").
package fact

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/value"
)

// Handle is a stable, logical reference to a fact: a lookup key, never an
// address (spec §3 Ownership / §9 cyclic-reference design note).
type Handle struct {
	Type string
	ID   uuid.UUID
}

// StreamMeta carries the event-time metadata a streaming-mode fact needs
// (spec §3 Fact: "auto-generated id carrying an event timestamp and
// source-stream name").
type StreamMeta struct {
	EventTime time.Time
	Stream    string
}

type record struct {
	mu     sync.RWMutex
	typ    string
	fields value.Value // always a Map
	stream *StreamMeta
}

// Mutator is the view handed to action handlers (spec §5: "permits reads
// and dotted writes but not topology changes").
type Mutator interface {
	Get(h Handle, path value.Path) (value.Value, bool)
	Set(h Handle, path value.Path, v value.Value) error
}

// Listener is notified of fact lifecycle events so the alpha network can
// route insert/mutate/retract without the Store importing it (spec §4.D
// routing is driven from here).
type Listener interface {
	OnInsert(h Handle)
	OnMutate(h Handle)
	OnRetract(h Handle)
}

// Store is the working-memory arena (spec §4.A).
type Store struct {
	mu        sync.RWMutex
	records   map[Handle]*record
	byType    *xsync.MapOf[string, *xsync.MapOf[Handle, struct{}]]
	listeners []Listener
}

// New creates an empty fact store.
func New() *Store {
	return &Store{
		records: make(map[Handle]*record),
		byType:  xsync.NewMapOf[string, *xsync.MapOf[Handle, struct{}]](),
	}
}

// Subscribe registers a listener for fact lifecycle events (used by the
// alpha network and the streaming coordinator).
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(fn func(Listener, Handle), h Handle) {
	s.mu.RLock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.mu.RUnlock()
	for _, l := range ls {
		fn(l, h)
	}
}

// Insert adds a new fact of the given type with the given payload and
// returns its handle. The FactType never changes after insertion (spec
// §3 invariant).
func (s *Store) Insert(factType string, payload map[string]value.Value) Handle {
	return s.insert(factType, payload, nil)
}

// InsertStreamEvent inserts a streaming-mode fact carrying event-time and
// source-stream metadata (spec §3 Fact, streaming mode).
func (s *Store) InsertStreamEvent(factType string, payload map[string]value.Value, meta StreamMeta) Handle {
	return s.insert(factType, payload, &meta)
}

func (s *Store) insert(factType string, payload map[string]value.Value, meta *StreamMeta) Handle {
	h := Handle{Type: factType, ID: uuid.New()}
	r := &record{typ: factType, fields: value.Map(cloneFields(payload)), stream: meta}

	s.mu.Lock()
	s.records[h] = r
	s.mu.Unlock()

	idx, _ := s.byType.LoadOrCompute(factType, func() *xsync.MapOf[Handle, struct{}] {
		return xsync.NewMapOf[Handle, struct{}]()
	})
	idx.Store(h, struct{}{})

	s.notify(Listener.OnInsert, h)
	return h
}

func cloneFields(payload map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// Retract removes a fact from the store.
func (s *Store) Retract(h Handle) error {
	s.mu.Lock()
	_, ok := s.records[h]
	if ok {
		delete(s.records, h)
	}
	s.mu.Unlock()

	if !ok {
		return errs.New(errs.CodeNotFound, "fact not found", nil)
	}

	if idx, found := s.byType.Load(h.Type); found {
		idx.Delete(h)
	}
	s.notify(Listener.OnRetract, h)
	return nil
}

// Exists reports whether a handle is still live in the store.
func (s *Store) Exists(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[h]
	return ok
}

func (s *Store) record(h Handle) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[h]
	return r, ok
}

// Get reads a dotted field path from a fact. A missing fact or path
// segment yields absence (spec §4.A).
func (s *Store) Get(h Handle, path value.Path) (value.Value, bool) {
	r, ok := s.record(h)
	if !ok {
		return value.Value{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return value.Get(r.fields, path)
}

// Set writes a dotted field path on a fact in place. Mutation is visible
// to all subsequent rule evaluations within the same engine cycle (spec
// §3: "no snapshot isolation within a cycle").
func (s *Store) Set(h Handle, path value.Path, v value.Value) error {
	r, ok := s.record(h)
	if !ok {
		return errs.New(errs.CodeNotFound, "fact not found", nil)
	}
	r.mu.Lock()
	r.fields = value.Set(r.fields, path, v)
	r.mu.Unlock()

	s.notify(Listener.OnMutate, h)
	return nil
}

// Update applies an arbitrary mutator function to a fact's full payload,
// atomically with respect to other Get/Set calls on the same fact.
func (s *Store) Update(h Handle, mutate func(current value.Value) value.Value) error {
	r, ok := s.record(h)
	if !ok {
		return errs.New(errs.CodeNotFound, "fact not found", nil)
	}
	r.mu.Lock()
	r.fields = mutate(r.fields)
	r.mu.Unlock()

	s.notify(Listener.OnMutate, h)
	return nil
}

// Snapshot returns the full Map value of a fact for pure (non-mutating)
// condition evaluation.
func (s *Store) Snapshot(h Handle) (value.Value, bool) {
	r, ok := s.record(h)
	if !ok {
		return value.Value{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields, true
}

// StreamMetaOf returns the event-time metadata for a streaming fact, if any.
func (s *Store) StreamMetaOf(h Handle) (StreamMeta, bool) {
	r, ok := s.record(h)
	if !ok || r.stream == nil {
		return StreamMeta{}, false
	}
	return *r.stream, true
}

// IterByType calls fn for every live fact of the given type. Iteration
// order is unspecified.
func (s *Store) IterByType(factType string, fn func(Handle)) {
	idx, ok := s.byType.Load(factType)
	if !ok {
		return
	}
	idx.Range(func(h Handle, _ struct{}) bool {
		fn(h)
		return true
	})
}

// CountByType returns the number of live facts of the given type.
func (s *Store) CountByType(factType string) int {
	idx, ok := s.byType.Load(factType)
	if !ok {
		return 0
	}
	return idx.Size()
}
