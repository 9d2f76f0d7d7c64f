package match

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Queue pairs anonymous players first-come-first-served and manages the table
// of open private rooms. It has its own lock, distinct from any per-session
// lock, so matchmaking never stalls on game processing.
type Queue struct {
	mu      sync.Mutex
	waiting []string
	rooms   map[string]*Room
}

func NewQueue() *Queue {
	return &Queue{rooms: make(map[string]*Room)}
}

// EnqueueQuickMatch adds the handle to the FIFO waiting list. If another
// handle is already waiting, the earliest waiter is returned as the opponent
// and both leave the list. Re-enqueueing an already waiting handle is a no-op
// (paired == "" and ok == false, same as waiting alone).
func (q *Queue) EnqueueQuickMatch(id string) (paired string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, w := range q.waiting {
		if w == id {
			return "", false
		}
	}
	if len(q.waiting) > 0 {
		paired = q.waiting[0]
		q.waiting = q.waiting[1:]
		return paired, true
	}
	q.waiting = append(q.waiting, id)
	return "", false
}

// CreateRoom opens a private room hosted by id and returns its code. A
// client-suggested code is honored when well-formed and free; otherwise the
// server generates one, retrying on collision.
func (q *Queue) CreateRoom(id, suggested string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	code := normalizeCode(suggested)
	if code != "" {
		if _, taken := q.rooms[code]; taken {
			code = ""
		}
	}
	if code == "" {
		for i := 0; i < 5; i++ {
			c, err := codeGen()
			if err != nil {
				return "", err
			}
			if _, taken := q.rooms[c]; !taken {
				code = c
				break
			}
		}
		if code == "" {
			return "", ErrCodeSpace
		}
	}
	q.rooms[code] = &Room{Code: code, HostID: id, CreatedAt: time.Now()}
	return code, nil
}

// JoinRoom claims the guest slot of an open room. The room entry remains in
// the table until RemoveRoom; callers must remove it once the session exists.
func (q *Queue) JoinRoom(id, code string) (*Room, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	room, ok := q.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.GuestID != "" {
		return nil, ErrRoomFull
	}
	room.GuestID = id
	return room, nil
}

// RemoveRoom drops a room from the open set.
func (q *Queue) RemoveRoom(code string) {
	q.mu.Lock()
	delete(q.rooms, normalizeCode(code))
	q.mu.Unlock()
}

// Remove purges a handle from the waiting list and closes any room it hosts,
// so a disconnected player is never paired as a ghost.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiting {
		if w == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	for code, room := range q.rooms {
		if room.HostID == id {
			delete(q.rooms, code)
		}
	}
}

// WaitingCount reports the quick-match queue length.
func (q *Queue) WaitingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// OpenRooms reports the number of rooms still waiting for a guest.
func (q *Queue) OpenRooms() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, room := range q.rooms {
		if room.GuestID == "" {
			n++
		}
	}
	return n
}

var codeShape = regexp.MustCompile(`^[A-Z0-9-]{4,16}$`)

func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !codeShape.MatchString(s) {
		return ""
	}
	return s
}

// codeGen returns `R-` + 6 upper alnum from crypto/rand.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return fmt.Sprintf("R-%s", string(b)), nil
}
