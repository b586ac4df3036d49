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

func TestSweeperRemovesExpiredSessionOnTick(t *testing.T) {
	db, err := capability.OpenDB(filepath.Join(t.TempDir(), "hull.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, capability.NewCrypto())
	require.NoError(t, store.EnsureSchema())

	sess, err := store.Create(context.Background(), -time.Second, nil)
	require.NoError(t, err)

	sw := NewSweeper(store, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)

	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), sess.ID)
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)

	cancel()
	sw.Stop()
}

func TestSweeperStopReturnsAfterStart(t *testing.T) {
	db, err := capability.OpenDB(filepath.Join(t.TempDir(), "hull.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, capability.NewCrypto())
	require.NoError(t, store.EnsureSchema())

	sw := NewSweeper(store, time.Hour)
	ctx := context.Background()
	sw.Start(ctx)
	sw.Stop()
}
