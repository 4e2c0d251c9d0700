package rooms_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testUser(id uint, username string) *models.User {
	return &models.User{Model: gorm.Model{ID: id}, Username: username, Role: "user"}
}

func newTestService(f *fakeStore) *rooms.Service {
	return rooms.NewService(f, 2, 10)
}

// assertOccupancy checks that the stored counter agrees with the member set.
func assertOccupancy(t *testing.T, f *fakeStore, roomID string, want int) {
	t.Helper()
	info, err := f.RoomInfo(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, want, info.CurrentUsers)
	members, err := f.RoomMembers(context.Background(), roomID)
	require.NoError(t, err)
	assert.Len(t, members, want)
}

func TestJoin_CreatesRoomWhenNoneOpen(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	roomID, created, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, roomID)

	assertOccupancy(t, f, roomID, 1)
	bound, err := f.UserRoom(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, roomID, bound)
	assert.Equal(t, []string{models.EventNotification}, f.eventsFor(roomID))
}

func TestJoin_SecondUserFillsExistingRoom(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	roomA, created, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)
	assert.True(t, created)

	roomB, created, err := svc.Join(ctx, testUser(2, "user_B"), 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, roomA, roomB)
	assertOccupancy(t, f, roomA, 2)
}

func TestJoin_FullRoomSpillsToNewRoom(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	roomA, _, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, testUser(2, "user_B"), 2)
	require.NoError(t, err)

	roomC, created, err := svc.Join(ctx, testUser(3, "user_C"), 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, roomA, roomC)
	assertOccupancy(t, f, roomA, 2)
	assertOccupancy(t, f, roomC, 1)
}

func TestJoin_RejectsUserAlreadyInRoom(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	_, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)

	// Same capacity and a different one both refuse.
	_, _, err = svc.Join(ctx, userA, 2)
	assert.ErrorIs(t, err, rooms.ErrAlreadyInRoom)
	_, _, err = svc.Join(ctx, userA, 3)
	assert.ErrorIs(t, err, rooms.ErrAlreadyInRoom)
}

func TestJoin_RejectsInvalidCapacity(t *testing.T) {
	svc := newTestService(newFakeStore())
	ctx := context.Background()

	for _, capacity := range []int{-1, 0, 1, 11} {
		_, _, err := svc.Join(ctx, testUser(1, "user_A"), capacity)
		assert.ErrorIs(t, err, rooms.ErrInvalidCapacity, "capacity %d", capacity)
	}
}

func TestJoin_SkipsStaleIndexEntries(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	f.seedStaleIndex(2, "room:2:000001")

	roomID, created, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "room:2:000001", roomID)
}

func TestJoin_StoreDown(t *testing.T) {
	f := newFakeStore()
	f.failing = true
	svc := newTestService(f)

	_, _, err := svc.Join(context.Background(), testUser(1, "user_A"), 2)
	assert.ErrorIs(t, err, rooms.ErrUnreachable)
}

// lockDownStore fails every lock acquisition the way a dead Redis does.
type lockDownStore struct {
	*fakeStore
}

func (s *lockDownStore) WithLock(context.Context, string, func(ctx context.Context) error) error {
	return errors.Join(storage.ErrUnreachable, errors.New("dial tcp 10.0.0.5:6379: connection refused"))
}

func TestJoinLeave_LockAcquisitionFailure(t *testing.T) {
	svc := rooms.NewService(&lockDownStore{fakeStore: newFakeStore()}, 2, 10)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	_, _, err := svc.Join(ctx, userA, 2)
	assert.ErrorIs(t, err, rooms.ErrUnreachable)
	assert.NotContains(t, err.Error(), "dial", "transport detail must not reach the client")

	_, err = svc.Leave(ctx, userA)
	assert.ErrorIs(t, err, rooms.ErrUnreachable)
	assert.NotContains(t, err.Error(), "dial", "transport detail must not reach the client")
}

// collidingStore reports the next few room-ID draws as already taken.
type collidingStore struct {
	*fakeStore
	collisions int
}

func (s *collidingStore) RoomInfo(ctx context.Context, roomID string) (models.RoomInfo, error) {
	if s.collisions > 0 {
		s.collisions--
		return models.RoomInfo{RoomID: roomID, MaxUsers: 2, CurrentUsers: 2}, nil
	}
	return s.fakeStore.RoomInfo(ctx, roomID)
}

func TestJoin_RedrawsCollidingRoomID(t *testing.T) {
	f := &collidingStore{fakeStore: newFakeStore(), collisions: 3}
	svc := rooms.NewService(f, 2, 10)

	roomID, created, err := svc.Join(context.Background(), testUser(1, "user_A"), 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Zero(t, f.collisions, "every taken identity must be re-drawn")
	assertOccupancy(t, f.fakeStore, roomID, 1)
}

func TestJoin_ConcurrentJoinersNeverOverfill(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	const joiners = 20
	const capacity = 4

	var wg sync.WaitGroup
	for i := 1; i <= joiners; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _, err := svc.Join(ctx, testUser(id, fmt.Sprintf("user_%02d", id)), capacity)
			assert.NoError(t, err)
		}(uint(i))
	}
	wg.Wait()

	ids, err := f.RoomsByCapacity(ctx, capacity)
	require.NoError(t, err)
	assert.Len(t, ids, joiners/capacity, "joins serialized per capacity must fill rooms before creating new ones")

	total := 0
	for _, roomID := range ids {
		info, err := f.RoomInfo(ctx, roomID)
		require.NoError(t, err)
		assert.LessOrEqual(t, info.CurrentUsers, info.MaxUsers)
		assert.Positive(t, info.CurrentUsers)
		assertOccupancy(t, f, roomID, info.CurrentUsers)
		total += info.CurrentUsers
	}
	assert.Equal(t, joiners, total)
}

func TestLeave_NotInRoom(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Leave(context.Background(), testUser(1, "user_A"))
	assert.ErrorIs(t, err, rooms.ErrNotInRoom)
}

func TestLeave_LastLeaverDeletesRoom(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA, userB := testUser(1, "user_A"), testUser(2, "user_B")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, userB, 2)
	require.NoError(t, err)

	left, err := svc.Leave(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, roomID, left)
	assertOccupancy(t, f, roomID, 1)

	_, err = svc.Leave(ctx, userB)
	require.NoError(t, err)

	// The room hash, member set, message log and index entry are all gone.
	_, err = f.RoomInfo(ctx, roomID)
	assert.Error(t, err)
	ids, err := f.RoomsByCapacity(ctx, 2)
	require.NoError(t, err)
	assert.NotContains(t, ids, roomID)
}

func TestLeave_FreesSlotForNextJoiner(t *testing.T) {
	f := newFakeStore()
	svc := rooms.NewService(f, 2, 10)
	ctx := context.Background()
	userA, userB, userC := testUser(1, "user_A"), testUser(2, "user_B"), testUser(3, "user_C")

	roomID, _, err := svc.Join(ctx, userA, 3)
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, userB, 3)
	require.NoError(t, err)
	_, _, err = svc.Join(ctx, userC, 3)
	require.NoError(t, err)
	assertOccupancy(t, f, roomID, 3)

	// Full: the next joiner gets a fresh room.
	roomD, created, err := svc.Join(ctx, testUser(4, "user_D"), 3)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, roomID, roomD)

	// A leave reopens the first room.
	_, err = svc.Leave(ctx, userB)
	require.NoError(t, err)
	assertOccupancy(t, f, roomID, 2)

	roomE, created, err := svc.Join(ctx, testUser(5, "user_E"), 3)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, roomID, roomE)
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)

	_, err = svc.Send(ctx, userA, roomID, "   \t\n")
	assert.ErrorIs(t, err, rooms.ErrEmptyMessage)
	msgs, err := f.RoomMessages(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSend_RejectsNonMember(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	roomID, _, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)

	// Not in any room.
	_, err = svc.Send(ctx, testUser(2, "user_B"), roomID, "hello")
	assert.ErrorIs(t, err, rooms.ErrNotInRoom)

	// In a different room.
	otherRoom, _, err := svc.Join(ctx, testUser(3, "user_C"), 4)
	require.NoError(t, err)
	_, err = svc.Send(ctx, testUser(3, "user_C"), roomID, "hello")
	assert.ErrorIs(t, err, rooms.ErrNotInRoom)
	msgs, err := f.RoomMessages(ctx, otherRoom)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSend_AppendsAndFansOut(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)

	msg, err := svc.Send(ctx, userA, roomID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "user_A", msg.Sender)
	assert.Equal(t, "hello", msg.Content)
	_, err = msg.Time()
	assert.NoError(t, err)

	msgs, err := f.RoomMessages(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg, msgs[0])

	// Join notification first, then the message event.
	assert.Equal(t, []string{models.EventNotification, models.EventNewMessage}, f.eventsFor(roomID))
}

func TestHistory_FiltersByJoinTime(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA, userB := testUser(1, "user_A"), testUser(2, "user_B")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)
	_, err = svc.Send(ctx, userA, roomID, "before B")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, _, err = svc.Join(ctx, userB, 2)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Send(ctx, userA, roomID, "after B")
	require.NoError(t, err)

	historyB, err := svc.History(ctx, userB, roomID)
	require.NoError(t, err)
	require.Len(t, historyB, 1)
	assert.Equal(t, "after B", historyB[0].Content)

	historyA, err := svc.History(ctx, userA, roomID)
	require.NoError(t, err)
	require.Len(t, historyA, 2)
	assert.Equal(t, "before B", historyA[0].Content)
	assert.Equal(t, "after B", historyA[1].Content)
}

func TestHistory_SkipsCorruptTimestamps(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)
	require.NoError(t, f.AppendMessage(ctx, roomID, models.RoomMessage{
		Sender: "user_X", Content: "bad clock", Timestamp: "not-a-time",
	}))
	_, err = svc.Send(ctx, userA, roomID, "fine")
	require.NoError(t, err)

	history, err := svc.History(ctx, userA, roomID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fine", history[0].Content)
}

func TestHistory_RequiresMembership(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()

	roomID, _, err := svc.Join(ctx, testUser(1, "user_A"), 2)
	require.NoError(t, err)

	// Never joined anything.
	_, err = svc.History(ctx, testUser(2, "user_B"), roomID)
	assert.ErrorIs(t, err, rooms.ErrNotJoined)

	// Joined a different room.
	userC := testUser(3, "user_C")
	_, _, err = svc.Join(ctx, userC, 4)
	require.NoError(t, err)
	_, err = svc.History(ctx, userC, roomID)
	assert.ErrorIs(t, err, rooms.ErrNotJoined)
}

func TestCurrentRoom(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	roomID, err := svc.CurrentRoom(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, roomID)

	joined, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)
	roomID, err = svc.CurrentRoom(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, joined, roomID)
}

type recordingNotifier struct {
	joins  []string
	leaves []string
}

func (n *recordingNotifier) UserJoined(userID, roomID string) {
	n.joins = append(n.joins, userID+"->"+roomID)
}

func (n *recordingNotifier) UserLeft(userID string) {
	n.leaves = append(n.leaves, userID)
}

func TestPresenceNotifierFollowsMembership(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	notifier := &recordingNotifier{}
	svc.SetPresenceNotifier(notifier)
	ctx := context.Background()
	userA := testUser(1, "user_A")

	roomID, _, err := svc.Join(ctx, userA, 2)
	require.NoError(t, err)
	_, err = svc.Leave(ctx, userA)
	require.NoError(t, err)

	assert.Equal(t, []string{"1->" + roomID}, notifier.joins)
	assert.Equal(t, []string{"1"}, notifier.leaves)
}
