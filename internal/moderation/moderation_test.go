package moderation_test

import (
	"context"
	"testing"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/moderation"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeFlagStore struct {
	storage.Storage

	blocked map[string]bool
}

func newFakeFlagStore() *fakeFlagStore {
	return &fakeFlagStore{blocked: make(map[string]bool)}
}

func (f *fakeFlagStore) SetUserBlocked(_ context.Context, userID string, blocked bool, _ time.Duration) error {
	f.blocked[userID] = blocked
	return nil
}

func (f *fakeFlagStore) IsUserBlocked(_ context.Context, userID string) (bool, error) {
	return f.blocked[userID], nil
}

func (f *fakeFlagStore) UserRoom(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeFlagStore) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestBlockUnblock(t *testing.T) {
	store := newFakeFlagStore()
	svc := moderation.NewService(store, rooms.NewService(store, 2, 10))
	ctx := context.Background()
	user := &models.User{Model: gorm.Model{ID: 1}, Username: "user_A"}

	blocked, err := svc.IsBlocked(ctx, user.RedisID())
	require.NoError(t, err)
	assert.False(t, blocked)

	// The user occupies no room; eviction is a quiet no-op.
	require.NoError(t, svc.Block(ctx, user, time.Hour))
	blocked, err = svc.IsBlocked(ctx, user.RedisID())
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, svc.Unblock(ctx, user))
	blocked, err = svc.IsBlocked(ctx, user.RedisID())
	require.NoError(t, err)
	assert.False(t, blocked)
}
