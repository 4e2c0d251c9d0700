// Package storage is the single gateway to shared state. Room, presence,
// message and complaint state lives in Redis and is shared by every backend
// process; account records live in PostgreSQL. Components never touch a
// Redis client directly, they get a Storage injected.
package storage

import (
	"context"
	"errors"
	"net"
	"time"

	"omilia/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrUnreachable is returned when the shared store cannot be reached within
// the configured timeout. Callers translate it into their own taxonomy.
var ErrUnreachable = errors.New("shared store unreachable")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the state-access interface injected into every component.
type Storage interface {
	// Accounts (PostgreSQL).
	CreateUser(user *models.User) error
	UserByID(id uint) (*models.User, error)
	UserByLogin(login string) (*models.User, error)
	UserByTelegramID(telegramID string) (*models.User, error)
	UpdateUser(user *models.User) error
	UsernameTaken(username string) (bool, error)

	// User presence (Redis "user:{id}" hash).
	UserRoom(ctx context.Context, userID string) (string, error)
	UserJoinedAt(ctx context.Context, userID string) (time.Time, bool, error)
	BindUser(ctx context.Context, userID, roomID string, joinedAt time.Time) error
	UnbindUser(ctx context.Context, userID string) error

	// Rooms (Redis hash + member set + capacity index).
	RoomsByCapacity(ctx context.Context, capacity int) ([]string, error)
	RoomInfo(ctx context.Context, roomID string) (models.RoomInfo, error)
	CreateRoom(ctx context.Context, roomID string, capacity int) error
	IncrRoomUsers(ctx context.Context, roomID string, delta int) (int, error)
	AddRoomMember(ctx context.Context, roomID, userID string) error
	RemoveRoomMember(ctx context.Context, roomID, userID string) error
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
	DeleteRoom(ctx context.Context, roomID string, capacity int) error

	// Message log (Redis "{room}:messages" list of JSON records).
	AppendMessage(ctx context.Context, roomID string, msg models.RoomMessage) error
	RoomMessages(ctx context.Context, roomID string) ([]models.RoomMessage, error)

	// Fan-out (Redis pub/sub, one channel per room).
	PublishEvent(ctx context.Context, ev models.Event) error
	SubscribeRooms(ctx context.Context) *redis.PubSub

	// Moderation flag ("user:{id}:blocked").
	IsUserBlocked(ctx context.Context, userID string) (bool, error)
	SetUserBlocked(ctx context.Context, userID string, blocked bool, ttl time.Duration) error

	// Complaints (Redis records).
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	ListComplaints(ctx context.Context) ([]models.Complaint, error)
	RemoveComplaint(ctx context.Context, id int64) (bool, error)

	// WithLock runs fn while holding the named advisory lock in Redis.
	// Multi-key sequences that must not interleave across processes
	// (join, leave-with-cleanup) go through here.
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Service is the production Storage backed by GORM and go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	// opTimeout bounds each individual Redis operation.
	opTimeout time.Duration
	// lockTTL is the expiry set on advisory locks.
	lockTTL time.Duration
}

// NewStorageService constructs the Service. Zero timeouts fall back to
// defaults suitable for production.
func NewStorageService(db *gorm.DB, rdb *redis.Client, opTimeout, lockTTL time.Duration) *Service {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &Service{DB: db, Redis: rdb, opTimeout: opTimeout, lockTTL: lockTTL}
}

// opCtx derives a bounded context for one store operation.
func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// wrap classifies a Redis error: timeouts and transport failures become
// ErrUnreachable, everything else passes through for the caller to map.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return errors.Join(ErrUnreachable, err)
	}
	return err
}
