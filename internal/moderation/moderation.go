// Package moderation blocks and unblocks users. Blocking sets the shared
// blocked flag (so every process rejects the user) and force-evicts the
// user from any room they occupy — the one cross-cutting call external
// collaborators make into the room core.
package moderation

import (
	"context"
	"errors"
	"log"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"
)

// Service applies and lifts user blocks.
type Service struct {
	Storage storage.Storage
	Rooms   *rooms.Service
}

// NewService creates the moderation service.
func NewService(s storage.Storage, r *rooms.Service) *Service {
	return &Service{Storage: s, Rooms: r}
}

// Block flags the user and evicts them from their room. A zero duration
// blocks until explicitly lifted.
func (s *Service) Block(ctx context.Context, user *models.User, duration time.Duration) error {
	if err := s.Storage.SetUserBlocked(ctx, user.RedisID(), true, duration); err != nil {
		return err
	}

	if _, err := s.Rooms.Leave(ctx, user); err != nil && !errors.Is(err, rooms.ErrNotInRoom) {
		// The block is already in place; eviction failure is logged, not
		// rolled back.
		log.Printf("ERROR: failed to evict blocked user %s from room: %v", user.Username, err)
	}

	log.Printf("INFO: user %s blocked (duration=%s)", user.Username, duration)
	return nil
}

// Unblock lifts the flag.
func (s *Service) Unblock(ctx context.Context, user *models.User) error {
	if err := s.Storage.SetUserBlocked(ctx, user.RedisID(), false, 0); err != nil {
		return err
	}
	log.Printf("INFO: user %s unblocked", user.Username)
	return nil
}

// IsBlocked reports whether the user is currently blocked.
func (s *Service) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return s.Storage.IsUserBlocked(ctx, userID)
}
