package session

import (
	"context"

	"github.com/park285/chess-arena-server/internal/rules"
)

// Status is the lifecycle state of a game session. Every state other than
// StatusInProgress is terminal and absorbing.
type Status string

const (
	StatusInProgress   Status = "IN_PROGRESS"
	StatusCheckmate    Status = "CHECKMATE"
	StatusStalemate    Status = "STALEMATE"
	StatusDraw         Status = "DRAW"
	StatusResigned     Status = "RESIGNED"
	StatusDisconnected Status = "DISCONNECTED"
)

// Terminal reports whether the status admits no further moves.
func (s Status) Terminal() bool { return s != StatusInProgress }

// Peer is the non-owning view of a connection a session sends on. The
// transport layer owns the socket; Send must be bounded by ctx and a failure
// is treated like a disconnect by the read pump, never retried here.
type Peer interface {
	ID() string
	Send(ctx context.Context, v any) error
}

// MoveOutcome tells the dispatcher what an accepted move did.
type MoveOutcome struct {
	Result   *rules.Result
	Finished bool
	Status   Status
	Winner   string // "White", "Black" or "Draw" when Finished
}
