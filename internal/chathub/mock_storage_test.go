package chathub

import (
	"context"
	"sync"

	"omilia/backend/internal/models"
	"omilia/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// stubStore covers the few store calls the hub path exercises. The embedded
// interface fills in everything else.
type stubStore struct {
	storage.Storage

	mu        sync.Mutex
	userRoom  map[string]string
	appended  []models.RoomMessage
	published []models.Event
}

func newStubStore() *stubStore {
	return &stubStore{userRoom: make(map[string]string)}
}

func (s *stubStore) UserRoom(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userRoom[userID], nil
}

func (s *stubStore) AppendMessage(_ context.Context, _ string, msg models.RoomMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, msg)
	return nil
}

func (s *stubStore) PublishEvent(_ context.Context, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, ev)
	return nil
}

func (s *stubStore) SubscribeRooms(context.Context) *redis.PubSub { return nil }

func (s *stubStore) appendedMessages() []models.RoomMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RoomMessage(nil), s.appended...)
}
