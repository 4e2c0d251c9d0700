package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"omilia/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	fieldRoom     = "room"
	fieldJoinedAt = "joined_at"
	fieldMaxUsers = "max_users"
	fieldCurUsers = "current_users"
)

// UserRoom returns the room the user is bound to, or "" when unbound.
func (s *Service) UserRoom(ctx context.Context, userID string) (string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	room, err := s.Redis.HGet(ctx, userKey(userID), fieldRoom).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return room, wrap(err)
}

// UserJoinedAt returns the user's join timestamp; ok is false when no join
// time is recorded.
func (s *Service) UserJoinedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := s.Redis.HGet(ctx, userKey(userID), fieldJoinedAt).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrap(err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt joined_at for user %s: %w", userID, err)
	}
	return t, true, nil
}

// BindUser records the room binding and join time in one HSET, so the two
// fields can never be observed half-written.
func (s *Service) BindUser(ctx context.Context, userID, roomID string, joinedAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return wrap(s.Redis.HSet(ctx, userKey(userID),
		fieldRoom, roomID,
		fieldJoinedAt, joinedAt.UTC().Format(time.RFC3339Nano),
	).Err())
}

// UnbindUser removes both presence fields together.
func (s *Service) UnbindUser(ctx context.Context, userID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return wrap(s.Redis.HDel(ctx, userKey(userID), fieldRoom, fieldJoinedAt).Err())
}

// RoomsByCapacity lists the rooms registered under the capacity index.
// Iteration order of the result is whatever Redis returned; callers must
// not rely on it.
func (s *Service) RoomsByCapacity(ctx context.Context, capacity int) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rooms, err := s.Redis.SMembers(ctx, capacityIndexKey(capacity)).Result()
	return rooms, wrap(err)
}

// RoomInfo reads the room hash. ErrNotFound when the room does not exist or
// its counters are missing.
func (s *Service) RoomInfo(ctx context.Context, roomID string) (models.RoomInfo, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	vals, err := s.Redis.HMGet(ctx, roomID, fieldCurUsers, fieldMaxUsers).Result()
	if err != nil {
		return models.RoomInfo{}, wrap(err)
	}
	if vals[0] == nil || vals[1] == nil {
		return models.RoomInfo{}, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	info := models.RoomInfo{RoomID: roomID}
	if _, err := fmt.Sscan(vals[0].(string), &info.CurrentUsers); err != nil {
		return models.RoomInfo{}, fmt.Errorf("room %s has corrupt current_users: %w", roomID, err)
	}
	if _, err := fmt.Sscan(vals[1].(string), &info.MaxUsers); err != nil {
		return models.RoomInfo{}, fmt.Errorf("room %s has corrupt max_users: %w", roomID, err)
	}
	return info, nil
}

// CreateRoom initializes the room hash with occupancy 1 and registers it in
// the capacity index, in a single pipeline round trip.
func (s *Service) CreateRoom(ctx context.Context, roomID string, capacity int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, roomID, fieldMaxUsers, capacity, fieldCurUsers, 1)
	pipe.SAdd(ctx, capacityIndexKey(capacity), roomID)
	_, err := pipe.Exec(ctx)
	return wrap(err)
}

// IncrRoomUsers adjusts occupancy and returns the new value.
func (s *Service) IncrRoomUsers(ctx context.Context, roomID string, delta int) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.Redis.HIncrBy(ctx, roomID, fieldCurUsers, int64(delta)).Result()
	return int(n), wrap(err)
}

// AddRoomMember adds the user to the room's member set.
func (s *Service) AddRoomMember(ctx context.Context, roomID, userID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return wrap(s.Redis.SAdd(ctx, roomMembersKey(roomID), userID).Err())
}

// RemoveRoomMember removes the user from the room's member set.
func (s *Service) RemoveRoomMember(ctx context.Context, roomID, userID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return wrap(s.Redis.SRem(ctx, roomMembersKey(roomID), userID).Err())
}

// RoomMembers returns the member user IDs of a room.
func (s *Service) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	members, err := s.Redis.SMembers(ctx, roomMembersKey(roomID)).Result()
	return members, wrap(err)
}

// DeleteRoom destroys every artifact of a room: its hash, member set,
// message log, and its entry in the capacity index.
func (s *Service) DeleteRoom(ctx context.Context, roomID string, capacity int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, roomID, roomMembersKey(roomID), roomMessagesKey(roomID))
	pipe.SRem(ctx, capacityIndexKey(capacity), roomID)
	_, err := pipe.Exec(ctx)
	return wrap(err)
}

// AppendMessage appends one JSON record to the room's message log.
func (s *Service) AppendMessage(ctx context.Context, roomID string, msg models.RoomMessage) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return wrap(s.Redis.RPush(ctx, roomMessagesKey(roomID), raw).Err())
}

// RoomMessages returns the whole message log in append order. Records that
// fail to decode are skipped, not fatal: a corrupt entry must not hide the
// rest of the log.
func (s *Service) RoomMessages(ctx context.Context, roomID string) ([]models.RoomMessage, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := s.Redis.LRange(ctx, roomMessagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, wrap(err)
	}
	msgs := make([]models.RoomMessage, 0, len(raw))
	for _, entry := range raw {
		var msg models.RoomMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			log.Printf("WARNING: skipping corrupt message record in %s: %v", roomID, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// PublishEvent broadcasts an event on the room's pub/sub channel so every
// backend process can fan it out to its local connections.
func (s *Service) PublishEvent(ctx context.Context, ev models.Event) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return wrap(s.Redis.Publish(ctx, ev.RoomID, raw).Err())
}

// SubscribeRooms subscribes to every room channel. The hub owns the
// returned PubSub and closes it on shutdown.
func (s *Service) SubscribeRooms(ctx context.Context) *redis.PubSub {
	return s.Redis.PSubscribe(ctx, "room:*")
}

// IsUserBlocked reports whether the moderation flag is set for the user.
func (s *Service) IsUserBlocked(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	val, err := s.Redis.Get(ctx, userBlockedKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err)
	}
	return val == "1", nil
}

// SetUserBlocked sets or clears the moderation flag. A positive ttl makes
// the block expire on its own.
func (s *Service) SetUserBlocked(ctx context.Context, userID string, blocked bool, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if !blocked {
		return wrap(s.Redis.Del(ctx, userBlockedKey(userID)).Err())
	}
	return wrap(s.Redis.Set(ctx, userBlockedKey(userID), "1", ttl).Err())
}
