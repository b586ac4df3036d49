package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hull/internal/capability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := capability.OpenDB(filepath.Join(t.TempDir(), "hull.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, capability.NewCrypto())
	require.NoError(t, store.EnsureSchema())
	return store
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, time.Hour, map[string]any{"user": "alice"})
	require.NoError(t, err)
	assert.Len(t, sess.ID, 64) // hex-encoded 256 bits

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserFields["user"])
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExpiredSessionReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, -time.Second, nil)
	require.NoError(t, err)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchExtendsExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, time.Minute, nil)
	require.NoError(t, err)

	require.NoError(t, store.Touch(ctx, sess.ID, 2*time.Hour))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.After(sess.ExpiresAt))
}

func TestTouchUnknownIDReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.Touch(context.Background(), "nope", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDestroyRemovesSessionImmediately(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, sess.ID))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepRemovesOnlyExpiredRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expired, err := store.Create(ctx, -time.Second, nil)
	require.NoError(t, err)
	live, err := store.Create(ctx, time.Hour, nil)
	require.NoError(t, err)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, live.ID)
	assert.NoError(t, err)
}
