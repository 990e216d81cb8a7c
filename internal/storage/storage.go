// Package storage defines the engine's persistence hook: an abstract
// put/get/delete/checkpoint/restore/list_checkpoints/cleanup_expired
// contract any durability backend can satisfy, plus an in-memory
// implementation for tests and a Postgres/bun-backed one for production
// use (spec §6 / SPEC_FULL.md dependency table).
//
// Grounded on _examples/smilemakc-mbflow's internal/infrastructure
// /storage/memory.go (RWMutex-guarded map store) for the in-memory
// shape, and bun_store.go (bun.DB + pgdialect + pgdriver, per-model
// table registration) for the Postgres-backed shape.
package storage

import (
	"context"
	"time"
)

// Store is the abstract persistence contract the engine depends on for
// durable checkpoints of its working memory / agenda state.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error

	Checkpoint(ctx context.Context, name string, value []byte, ttl time.Duration) error
	Restore(ctx context.Context, name string) ([]byte, bool, error)
	ListCheckpoints(ctx context.Context) ([]CheckpointInfo, error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// CheckpointInfo describes one stored checkpoint without its payload.
type CheckpointInfo struct {
	Name      string
	CreatedAt time.Time
	ExpiresAt time.Time // zero means "never expires"
}

func (c CheckpointInfo) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
