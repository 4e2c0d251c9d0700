package rooms

import "errors"

// Domain errors returned by the room engine. Handlers translate them into
// client-facing responses; anything not in this list never crosses the API
// boundary.
var (
	ErrAlreadyInRoom   = errors.New("you are already in a room")
	ErrNotInRoom       = errors.New("you are not in a room")
	ErrNotJoined       = errors.New("you have not joined this room")
	ErrEmptyMessage    = errors.New("no valid message provided")
	ErrInvalidCapacity = errors.New("room size out of range")

	// ErrUnreachable means the shared store could not be reached in time.
	ErrUnreachable = errors.New("internal server error: store unreachable")
	// ErrInternal hides any unexpected failure; details go to the log only.
	ErrInternal = errors.New("internal server error")
)
