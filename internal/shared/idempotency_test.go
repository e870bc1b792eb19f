package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotency(t *testing.T) {
	store := NewMemoryIdempotency()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "transfer.dispatch"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "k1", "transfer.dispatch"), ErrIdempotencyConflict)
	require.Error(t, store.CheckAndInsert(ctx, "", "transfer.dispatch"))
	require.Error(t, store.CheckAndInsert(ctx, "k2", ""))

	require.NoError(t, store.Delete(ctx, "k1"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "transfer.dispatch"))

	now = now.Add(48 * time.Hour)
	require.NoError(t, store.CheckAndInsert(ctx, "k3", "transfer.receive"))
	removed, err := store.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.ErrorIs(t, store.CheckAndInsert(ctx, "k3", "transfer.receive"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "transfer.dispatch"))
}
