// Package rooms is the matchmaking and relay core: it allocates users into
// fixed-capacity rooms, tracks their presence in the shared store, appends
// and fans out messages, and reclaims rooms when the last member leaves.
//
// Every multi-key sequence (join, leave-with-cleanup) runs under advisory
// locks held in Redis, because handlers run concurrently across processes
// and the store offers no multi-key transactions.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"omilia/backend/internal/metrics"
	"omilia/backend/internal/models"
	"omilia/backend/internal/storage"
)

// PresenceNotifier lets the live-connection hub follow room membership
// changes made over REST, so an already-connected user starts receiving a
// room's fan-out the moment they join it.
type PresenceNotifier interface {
	UserJoined(userID, roomID string)
	UserLeft(userID string)
}

// Service implements the room allocator, presence registry (store side),
// message relay, and lifecycle manager.
type Service struct {
	Storage storage.Storage

	// MinSize and MaxSize bound the capacities accepted by Join.
	MinSize int
	MaxSize int

	presence PresenceNotifier
}

// NewService creates the room engine with the given capacity bounds.
func NewService(s storage.Storage, minSize, maxSize int) *Service {
	return &Service{Storage: s, MinSize: minSize, MaxSize: maxSize}
}

// SetPresenceNotifier wires the hub in after construction (the hub also
// depends on this service, so one side has to be set late).
func (s *Service) SetPresenceNotifier(p PresenceNotifier) {
	s.presence = p
}

func userLockName(userID string) string { return "lock:user:" + userID }

// Join binds the user to an open room of the requested capacity, creating a
// new room when none has space. Returns the room ID and whether it was
// created. First-fit: candidate order comes from store set iteration and is
// deliberately arbitrary.
func (s *Service) Join(ctx context.Context, user *models.User, capacity int) (string, bool, error) {
	if capacity < s.MinSize || capacity > s.MaxSize {
		return "", false, fmt.Errorf("%w: must be %d to %d", ErrInvalidCapacity, s.MinSize, s.MaxSize)
	}

	userID := user.RedisID()
	var roomID string
	var created bool

	// User lock first, capacity lock second; Leave takes them in the same
	// order. The user lock stops one account joining two capacities at
	// once, the capacity lock serializes the check-then-increment sequence
	// that would otherwise overfill a room or create a duplicate one.
	err := s.Storage.WithLock(ctx, userLockName(userID), func(ctx context.Context) error {
		current, err := s.Storage.UserRoom(ctx, userID)
		if err != nil {
			return s.storeErr("join: read presence", err)
		}
		if current != "" {
			return ErrAlreadyInRoom
		}

		return s.Storage.WithLock(ctx, storage.CapacityLockName(capacity), func(ctx context.Context) error {
			roomID, created, err = s.allocate(ctx, user, capacity)
			return err
		})
	})
	// A failure acquiring a lock surfaces as a raw storage error; map it
	// onto the taxonomy so the transport detail never reaches a client.
	if errors.Is(err, storage.ErrUnreachable) {
		return "", false, s.storeErr("join: acquire lock", err)
	}
	if err != nil {
		return "", false, err
	}

	if s.presence != nil {
		s.presence.UserJoined(userID, roomID)
	}
	if created {
		metrics.JoinsTotal.WithLabelValues("created").Inc()
		log.Printf("INFO: user %s created & joined room %s", user.Username, roomID)
	} else {
		metrics.JoinsTotal.WithLabelValues("joined").Inc()
		log.Printf("INFO: user %s joined room %s", user.Username, roomID)
	}
	return roomID, created, nil
}

// allocate runs inside the capacity lock: pick the first open room, or
// synthesize a new one.
func (s *Service) allocate(ctx context.Context, user *models.User, capacity int) (string, bool, error) {
	userID := user.RedisID()
	now := time.Now().UTC()

	candidates, err := s.Storage.RoomsByCapacity(ctx, capacity)
	if err != nil {
		return "", false, s.storeErr("join: list rooms", err)
	}

	var chosen string
	for _, candidate := range candidates {
		info, err := s.Storage.RoomInfo(ctx, candidate)
		if errors.Is(err, storage.ErrNotFound) {
			// Stale index entry; the room was deleted underneath it.
			continue
		}
		if err != nil {
			return "", false, s.storeErr("join: read room", err)
		}
		if info.HasSpace() {
			chosen = candidate
			break
		}
	}

	if chosen != "" {
		if _, err := s.Storage.IncrRoomUsers(ctx, chosen, 1); err != nil {
			return "", false, s.storeErr("join: increment occupancy", err)
		}
		if err := s.Storage.BindUser(ctx, userID, chosen, now); err != nil {
			return "", false, s.storeErr("join: bind user", err)
		}
		if err := s.Storage.AddRoomMember(ctx, chosen, userID); err != nil {
			return "", false, s.storeErr("join: add member", err)
		}
		s.notify(ctx, chosen, fmt.Sprintf("User %s has joined the room.", user.Username))
		return chosen, false, nil
	}

	roomID, err := s.freshRoomID(ctx, capacity)
	if err != nil {
		return "", false, s.storeErr("join: allocate room id", err)
	}
	if err := s.Storage.CreateRoom(ctx, roomID, capacity); err != nil {
		return "", false, s.storeErr("join: create room", err)
	}
	if err := s.Storage.BindUser(ctx, userID, roomID, now); err != nil {
		return "", false, s.storeErr("join: bind user", err)
	}
	if err := s.Storage.AddRoomMember(ctx, roomID, userID); err != nil {
		return "", false, s.storeErr("join: add member", err)
	}
	s.notify(ctx, roomID, fmt.Sprintf("User %s created and joined the room.", user.Username))
	return roomID, true, nil
}

// freshRoomID draws candidate identities until one is unused. A random draw
// can hit a live room; overwriting it would reset its counters. Runs inside
// the capacity lock, so the existence check cannot race another creation.
func (s *Service) freshRoomID(ctx context.Context, capacity int) (string, error) {
	for {
		roomID := storage.NewRoomID(capacity)
		_, err := s.Storage.RoomInfo(ctx, roomID)
		if errors.Is(err, storage.ErrNotFound) {
			return roomID, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Leave removes the user from their current room and deletes the room when
// it empties. Also the entry point for forced eviction (moderation, logout).
func (s *Service) Leave(ctx context.Context, user *models.User) (string, error) {
	userID := user.RedisID()
	var roomID string

	err := s.Storage.WithLock(ctx, userLockName(userID), func(ctx context.Context) error {
		var err error
		roomID, err = s.Storage.UserRoom(ctx, userID)
		if err != nil {
			return s.storeErr("leave: read presence", err)
		}
		if roomID == "" {
			return ErrNotInRoom
		}

		capacity, err := storage.RoomCapacity(roomID)
		if err != nil {
			return s.storeErr("leave: parse room id", err)
		}

		// Occupancy decrement and the delete decision are re-checked
		// inside the same lock that join holds, so a concurrent joiner
		// can neither revive a half-deleted room nor lose its increment.
		return s.Storage.WithLock(ctx, storage.CapacityLockName(capacity), func(ctx context.Context) error {
			remaining, err := s.Storage.IncrRoomUsers(ctx, roomID, -1)
			if err != nil {
				return s.storeErr("leave: decrement occupancy", err)
			}
			if err := s.Storage.RemoveRoomMember(ctx, roomID, userID); err != nil {
				return s.storeErr("leave: remove member", err)
			}
			if err := s.Storage.UnbindUser(ctx, userID); err != nil {
				return s.storeErr("leave: unbind user", err)
			}
			s.notify(ctx, roomID, fmt.Sprintf("User %s has left the room.", user.Username))

			if remaining <= 0 {
				if err := s.Storage.DeleteRoom(ctx, roomID, capacity); err != nil {
					return s.storeErr("leave: delete empty room", err)
				}
				metrics.RoomsDeletedTotal.Inc()
				log.Printf("INFO: room %s deleted because it became empty", roomID)
			}
			return nil
		})
	})
	if errors.Is(err, storage.ErrUnreachable) {
		return "", s.storeErr("leave: acquire lock", err)
	}
	if err != nil {
		return "", err
	}

	if s.presence != nil {
		s.presence.UserLeft(userID)
	}
	metrics.LeavesTotal.Inc()
	log.Printf("INFO: user %s left room %s", user.Username, roomID)
	return roomID, nil
}

// CurrentRoom returns the room the user occupies, or "" when none.
func (s *Service) CurrentRoom(ctx context.Context, userID string) (string, error) {
	roomID, err := s.Storage.UserRoom(ctx, userID)
	if err != nil {
		return "", s.storeErr("current room", err)
	}
	return roomID, nil
}

// Send validates and appends a message to the room's log, then fans it out
// to every subscribed connection. The user's binding is re-read from the
// store rather than trusted from connection state.
func (s *Service) Send(ctx context.Context, user *models.User, roomID, content string) (models.RoomMessage, error) {
	if strings.TrimSpace(content) == "" {
		return models.RoomMessage{}, ErrEmptyMessage
	}

	bound, err := s.Storage.UserRoom(ctx, user.RedisID())
	if err != nil {
		return models.RoomMessage{}, s.storeErr("send: read presence", err)
	}
	if bound == "" || bound != roomID {
		return models.RoomMessage{}, ErrNotInRoom
	}

	msg := models.RoomMessage{
		Sender:    user.Username,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.Storage.AppendMessage(ctx, roomID, msg); err != nil {
		return models.RoomMessage{}, s.storeErr("send: append message", err)
	}

	// Fan-out is best-effort: a failed publish does not undo the append.
	if err := s.Storage.PublishEvent(ctx, models.NewEvent(roomID, models.EventNewMessage, msg)); err != nil {
		log.Printf("ERROR: send: publish to %s failed: %v", roomID, err)
	}

	metrics.MessagesSentTotal.Inc()
	return msg, nil
}

// History returns the room's messages stamped at or after the caller's join
// time, in append order. Records with unparsable timestamps are skipped.
func (s *Service) History(ctx context.Context, user *models.User, roomID string) ([]models.RoomMessage, error) {
	userID := user.RedisID()

	joinedAt, ok, err := s.Storage.UserJoinedAt(ctx, userID)
	if err != nil {
		return nil, s.storeErr("history: read join time", err)
	}
	if !ok {
		return nil, ErrNotJoined
	}
	bound, err := s.Storage.UserRoom(ctx, userID)
	if err != nil {
		return nil, s.storeErr("history: read presence", err)
	}
	if bound != roomID {
		return nil, ErrNotJoined
	}

	all, err := s.Storage.RoomMessages(ctx, roomID)
	if err != nil {
		return nil, s.storeErr("history: read log", err)
	}

	visible := make([]models.RoomMessage, 0, len(all))
	for _, msg := range all {
		ts, err := msg.Time()
		if err != nil {
			log.Printf("WARNING: history: skipping message with bad timestamp in %s: %v", roomID, err)
			continue
		}
		if !ts.Before(joinedAt) {
			visible = append(visible, msg)
		}
	}
	return visible, nil
}

// notify pushes an informational event to the room's current members over
// the fan-out path. Notifications are not persisted anywhere; failures are
// logged and swallowed so they never fail the surrounding operation.
func (s *Service) notify(ctx context.Context, roomID, text string) {
	ev := models.NewEvent(roomID, models.EventNotification, models.NotificationPayload{Text: text})
	if err := s.Storage.PublishEvent(ctx, ev); err != nil {
		log.Printf("ERROR: failed to notify room %s: %v", roomID, err)
	}
}

// storeErr maps a storage failure onto the domain taxonomy and logs the
// real cause, which must never reach a client.
func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, storage.ErrUnreachable) {
		log.Printf("ERROR: %s: %v", op, err)
		return ErrUnreachable
	}
	log.Printf("ERROR: %s: %v", op, err)
	return ErrInternal
}
