package match

import "time"

// Room is a private pairing slot: host-created, joined by exactly one guest.
// The entry stays in the open set until the dispatcher has promoted it into a
// session, so a racing second join sees the occupied guest slot (ErrRoomFull)
// rather than a vanished room.
type Room struct {
	Code      string
	HostID    string
	GuestID   string
	CreatedAt time.Time
}

// Errors
var (
	ErrRoomNotFound = errf("room not found")
	ErrRoomFull     = errf("room already has a guest")
	ErrCodeSpace    = errf("failed to allocate room code")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
