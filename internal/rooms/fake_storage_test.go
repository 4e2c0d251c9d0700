package rooms_test

import (
	"context"
	"sync"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// fakeStore is an in-memory stand-in for the shared store. The embedded
// interface covers the account methods the room engine never calls.
type fakeStore struct {
	storage.Storage

	mu        sync.Mutex
	userRoom  map[string]string
	joinedAt  map[string]time.Time
	capIndex  map[int][]string
	rooms     map[string]models.RoomInfo
	members   map[string]map[string]struct{}
	messages  map[string][]models.RoomMessage
	published []models.Event

	locks sync.Map

	// failing makes every store call report the backend as unreachable.
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		userRoom: make(map[string]string),
		joinedAt: make(map[string]time.Time),
		capIndex: make(map[int][]string),
		rooms:    make(map[string]models.RoomInfo),
		members:  make(map[string]map[string]struct{}),
		messages: make(map[string][]models.RoomMessage),
	}
}

func (f *fakeStore) down() error {
	if f.failing {
		return storage.ErrUnreachable
	}
	return nil
}

func (f *fakeStore) UserRoom(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return "", err
	}
	return f.userRoom[userID], nil
}

func (f *fakeStore) UserJoinedAt(_ context.Context, userID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return time.Time{}, false, err
	}
	t, ok := f.joinedAt[userID]
	return t, ok, nil
}

func (f *fakeStore) BindUser(_ context.Context, userID, roomID string, joinedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.userRoom[userID] = roomID
	f.joinedAt[userID] = joinedAt
	return nil
}

func (f *fakeStore) UnbindUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	delete(f.userRoom, userID)
	delete(f.joinedAt, userID)
	return nil
}

func (f *fakeStore) RoomsByCapacity(_ context.Context, capacity int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return append([]string(nil), f.capIndex[capacity]...), nil
}

func (f *fakeStore) RoomInfo(_ context.Context, roomID string) (models.RoomInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return models.RoomInfo{}, err
	}
	info, ok := f.rooms[roomID]
	if !ok {
		return models.RoomInfo{}, storage.ErrNotFound
	}
	return info, nil
}

func (f *fakeStore) CreateRoom(_ context.Context, roomID string, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.rooms[roomID] = models.RoomInfo{RoomID: roomID, MaxUsers: capacity, CurrentUsers: 1}
	f.capIndex[capacity] = append(f.capIndex[capacity], roomID)
	return nil
}

func (f *fakeStore) IncrRoomUsers(_ context.Context, roomID string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return 0, err
	}
	info := f.rooms[roomID]
	info.CurrentUsers += delta
	f.rooms[roomID] = info
	return info.CurrentUsers, nil
}

func (f *fakeStore) AddRoomMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	if f.members[roomID] == nil {
		f.members[roomID] = make(map[string]struct{})
	}
	f.members[roomID][userID] = struct{}{}
	return nil
}

func (f *fakeStore) RemoveRoomMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	delete(f.members[roomID], userID)
	return nil
}

func (f *fakeStore) RoomMembers(_ context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.members[roomID]))
	for id := range f.members[roomID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, roomID string, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	delete(f.rooms, roomID)
	delete(f.members, roomID)
	delete(f.messages, roomID)
	idx := f.capIndex[capacity]
	for i, id := range idx {
		if id == roomID {
			f.capIndex[capacity] = append(idx[:i], idx[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) AppendMessage(_ context.Context, roomID string, msg models.RoomMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.messages[roomID] = append(f.messages[roomID], msg)
	return nil
}

func (f *fakeStore) RoomMessages(_ context.Context, roomID string) ([]models.RoomMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return append([]models.RoomMessage(nil), f.messages[roomID]...), nil
}

func (f *fakeStore) PublishEvent(_ context.Context, ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeStore) SubscribeRooms(context.Context) *redis.PubSub { return nil }

func (f *fakeStore) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	mu, _ := f.locks.LoadOrStore(name, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()
	return fn(ctx)
}

// seedStaleIndex plants a capacity-index entry whose room hash is gone,
// mimicking an index left behind by a crashed cleanup.
func (f *fakeStore) seedStaleIndex(capacity int, roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capIndex[capacity] = append(f.capIndex[capacity], roomID)
}

// eventsFor returns the names of events published to one room, in order.
func (f *fakeStore) eventsFor(roomID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, ev := range f.published {
		if ev.RoomID == roomID {
			names = append(names, ev.Name)
		}
	}
	return names
}
