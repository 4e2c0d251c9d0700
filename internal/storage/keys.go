package storage

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Redis key scheme (case-sensitive, colon-delimited):
//
//	user:{id}            hash   fields "room", "joined_at"
//	user:{id}:blocked    string "1" while the user is blocked
//	rooms:{capacity}     set    room IDs of that capacity
//	room:{capacity}:{rand} hash fields "max_users", "current_users"
//	{room_id}:users      set    member user IDs
//	{room_id}:messages   list   JSON RoomMessage records
//	lock:rooms:{capacity} string advisory lock guarding join/leave
//	complaint:{id}       hash   complaint fields
//	complaints:all       set    complaint IDs
//	complaint_id_counter string auto-increment source

func userKey(userID string) string { return "user:" + userID }

func userBlockedKey(userID string) string { return "user:" + userID + ":blocked" }

func capacityIndexKey(capacity int) string { return "rooms:" + strconv.Itoa(capacity) }

func capacityLockKey(capacity int) string { return "lock:rooms:" + strconv.Itoa(capacity) }

func roomMembersKey(roomID string) string { return roomID + ":users" }

func roomMessagesKey(roomID string) string { return roomID + ":messages" }

func complaintKey(id int64) string { return "complaint:" + strconv.FormatInt(id, 10) }

// NewRoomID synthesizes a candidate room identity for the given capacity.
// The discriminator is a random 6-digit number, so a draw can collide with
// a live room; callers must check existence and re-draw while it is taken.
func NewRoomID(capacity int) string {
	return fmt.Sprintf("room:%d:%06d", capacity, 100000+rand.IntN(900000))
}

// RoomCapacity extracts the capacity embedded in a room ID.
func RoomCapacity(roomID string) (int, error) {
	parts := strings.Split(roomID, ":")
	if len(parts) != 3 || parts[0] != "room" {
		return 0, fmt.Errorf("malformed room id %q", roomID)
	}
	capacity, err := strconv.Atoi(parts[1])
	if err != nil || capacity <= 0 {
		return 0, fmt.Errorf("malformed room id %q", roomID)
	}
	return capacity, nil
}

// CapacityLockName is the advisory lock name guarding all join/leave
// sequences for one capacity. Exported so the rooms service can name the
// lock it needs without knowing the key layout.
func CapacityLockName(capacity int) string { return capacityLockKey(capacity) }
