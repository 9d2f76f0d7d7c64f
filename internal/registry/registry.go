package registry

import (
	"sync"

	"github.com/park285/chess-arena-server/internal/rules"
)

// AssocState is what a registered connection is currently doing.
type AssocState string

const (
	StateIdle         AssocState = "idle"
	StateWaitingQuick AssocState = "waiting_quick_match"
	StateWaitingRoom  AssocState = "waiting_room"
	StateInGame       AssocState = "in_game"
)

// Association binds a connection handle to its current role. RoomCode is set
// for StateWaitingRoom; SessionID and Color for StateInGame.
type Association struct {
	State     AssocState
	RoomCode  string
	SessionID string
	Color     rules.Color
}

// Idle is the association every connection starts with.
func Idle() Association { return Association{State: StateIdle} }

// Registry is pure bookkeeping of live connection handles. It performs no
// legality checks; the dispatcher reacts to what Unregister returns (an
// in-game association means the owning session must be told of the
// disconnect before the handle disappears).
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Association
}

func New() *Registry {
	return &Registry{conns: make(map[string]Association)}
}

// Register adds a handle in the idle state. Registering an existing handle
// resets it to idle.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	r.conns[id] = Idle()
	r.mu.Unlock()
}

// Unregister removes the handle and returns its last association so the
// caller can notify an owning session. ok is false if the handle was unknown,
// which makes disconnect handling idempotent.
func (r *Registry) Unregister(id string) (Association, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return a, ok
}

// Lookup returns the current association of a handle.
func (r *Registry) Lookup(id string) (Association, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.conns[id]
	return a, ok
}

// SetAssociation replaces the association of a registered handle. It is a
// no-op for unknown handles (the connection raced its own close).
func (r *Registry) SetAssociation(id string, a Association) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	r.conns[id] = a
	return true
}

// Count reports the number of live handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
