package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsStoredChallengeWithinTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5 * time.Minute)

	require.NoError(t, s.Put(ctx, "alice", "qr-payload"))

	got, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "qr-payload", got)
}

func TestGetEvictsAfterTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5 * time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Put(ctx, "alice", "qr-payload"))

	s.now = func() time.Time { return base.Add(5 * time.Minute) }
	_, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	// Evicted for good, even if the clock rolls back.
	s.now = func() time.Time { return base }
	_, ok, err = s.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutOverwritesPriorChallenge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5 * time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Put(ctx, "alice", "old"))
	s.now = func() time.Time { return base.Add(4 * time.Minute) }
	require.NoError(t, s.Put(ctx, "alice", "new"))

	// The overwrite reset the creation instant, so the entry survives
	// past the original TTL horizon.
	s.now = func() time.Time { return base.Add(6 * time.Minute) }
	got, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5 * time.Minute)

	require.NoError(t, s.Put(ctx, "alice", "qr-payload"))
	require.NoError(t, s.Remove(ctx, "alice"))
	require.NoError(t, s.Remove(ctx, "alice"))

	_, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSweepExpiredKeepsFreshEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5 * time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Put(ctx, "stale", "a"))
	s.now = func() time.Time { return base.Add(4 * time.Minute) }
	require.NoError(t, s.Put(ctx, "fresh", "b"))

	s.now = func() time.Time { return base.Add(6 * time.Minute) }
	s.SweepExpired(ctx)

	_, ok, _ := s.Get(ctx, "stale")
	require.False(t, ok)
	got, ok, _ := s.Get(ctx, "fresh")
	require.True(t, ok)
	require.Equal(t, "b", got)
}
