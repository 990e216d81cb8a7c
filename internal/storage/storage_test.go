package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", []byte("v1")))
	v, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Delete(ctx, "k1"))
	_, ok, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreGetMissingKeyIsNotAnError(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreCheckpointRestoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, "cp1", []byte("snapshot"), 0))
	v, ok, err := s.Restore(ctx, "cp1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("snapshot"), v)

	list, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "cp1", list[0].Name)
	require.True(t, list[0].ExpiresAt.IsZero())
}

func TestMemoryStoreCleanupExpiredRemovesOnlyPastTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, "short", []byte("a"), time.Millisecond))
	require.NoError(t, s.Checkpoint(ctx, "long", []byte("b"), time.Hour))

	removed, err := s.CleanupExpired(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	list, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "long", list[0].Name)
}

func TestMemoryStorePutIsolatesCallerBuffer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, s.Put(ctx, "k", buf))
	buf[0] = 'X' // mutating the caller's slice must not affect the stored copy

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("original"), v)
}
