package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wagate/internal/challenge"
)

func TestQRChallengeRoundTrip(t *testing.T) {
	ctx := context.Background()
	ch := challenge.NewMemoryStore(5 * time.Minute)
	b := NewBinder(nil, ch, zap.NewNop().Sugar())

	b.OnQRChallenge(ctx, "alice", "first")
	b.OnQRChallenge(ctx, "alice", "second")

	got, ok, err := ch.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", got, "a new challenge overwrites the previous one")
}

func TestSessionDeletedDropsChallenge(t *testing.T) {
	ctx := context.Background()
	ch := challenge.NewMemoryStore(5 * time.Minute)
	b := NewBinder(nil, ch, zap.NewNop().Sugar())

	b.OnQRChallenge(ctx, "alice", "qr")
	b.OnSessionDeleted(ctx, "alice")

	_, ok, err := ch.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
