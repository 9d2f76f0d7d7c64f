package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena-server/internal/obslog"
	"github.com/park285/chess-arena-server/internal/rules"
	"github.com/park285/chess-arena-server/pkg/wire"
)

// Archiver persists finished games. Implemented by archive.Repository.
type Archiver interface {
	SaveResult(ctx context.Context, snap *Snapshot, method string) error
}

// Game is one two-player session. It owns the authoritative board state,
// turn pointer, move log and termination status. Every mutation goes through
// g.mu, so moves and disconnects within a session are strictly serialized;
// sessions are otherwise fully independent.
type Game struct {
	id      string
	adapter rules.Adapter

	mu      sync.Mutex
	white   Peer
	black   Peer
	state   *rules.State
	moveLog []wire.MoveRequest
	turn    rules.Color
	status  Status
	winner  string
	reason  string

	createdAt time.Time
	updatedAt time.Time

	store       *Store
	archive     Archiver
	sendTimeout time.Duration
}

// New creates an in-progress session. The white peer is always the side to
// move first.
func New(id string, white, black Peer, adapter rules.Adapter) *Game {
	now := time.Now()
	return &Game{
		id:          id,
		adapter:     adapter,
		white:       white,
		black:       black,
		state:       adapter.NewState(),
		turn:        rules.White,
		status:      StatusInProgress,
		createdAt:   now,
		updatedAt:   now,
		sendTimeout: 5 * time.Second,
	}
}

// AttachStore wires the optional redis snapshot store.
func (g *Game) AttachStore(s *Store) { g.store = s }

// AttachArchive wires the optional finished-game repository.
func (g *Game) AttachArchive(a Archiver) { g.archive = a }

// SetSendTimeout bounds every broadcast write.
func (g *Game) SetSendTimeout(d time.Duration) {
	if d > 0 {
		g.sendTimeout = d
	}
}

func (g *Game) ID() string      { return g.id }
func (g *Game) WhiteID() string { return g.white.ID() }
func (g *Game) BlackID() string { return g.black.ID() }

// Status returns the current lifecycle state.
func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// MoveCount returns the move log length.
func (g *Game) MoveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.moveLog)
}

// Turn returns the side to move.
func (g *Game) Turn() rules.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

func (g *Game) colorOf(peerID string) (rules.Color, bool) {
	switch peerID {
	case g.white.ID():
		return rules.White, true
	case g.black.ID():
		return rules.Black, true
	}
	return "", false
}

// SubmitMove validates and applies one move from peerID. Rejections are
// returned as *wire.ProtocolError for the dispatcher to report to the sender
// only; an accepted move is broadcast to both connections, including the
// mover. A terminal result additionally broadcasts game_over.
func (g *Game) SubmitMove(ctx context.Context, peerID string, req wire.MoveRequest) (*MoveOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.Terminal() {
		return nil, wire.Errf(wire.CodeSessionTerminated, "game is over")
	}
	color, ok := g.colorOf(peerID)
	if !ok {
		return nil, wire.Errf(wire.CodeNoActiveSession, "not a participant")
	}
	if color != g.turn {
		return nil, wire.Errf(wire.CodeNotYourTurn, "it is not your turn")
	}

	next, res, err := g.adapter.Apply(g.state, req.From, req.To, req.Promotion)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil, wire.Errf(wire.CodeIllegalMove, "illegal move")
		}
		return nil, err
	}

	g.state = next
	g.moveLog = append(g.moveLog, req)
	g.turn = res.NextTurn
	g.updatedAt = time.Now()

	g.broadcast(ctx, wire.TypeMove, &wire.MoveBroadcast{Move: req, SAN: res.SAN, Check: res.Check})

	out := &MoveOutcome{Result: res, Status: g.status}
	if res.Terminal() {
		switch {
		case res.Checkmate:
			g.status = StatusCheckmate
			g.winner = color.Title()
			g.reason = "checkmate"
		case res.Stalemate:
			g.status = StatusStalemate
			g.winner = "Draw"
			g.reason = "stalemate"
		default:
			g.status = StatusDraw
			g.winner = "Draw"
			g.reason = "draw"
		}
		out.Finished = true
		out.Status = g.status
		out.Winner = g.winner
		g.broadcast(ctx, wire.TypeGameOver, &wire.GameOverPayload{Winner: g.winner, Reason: g.reason})
	}

	obslog.L().Info("session_move",
		zap.String("session_id", g.id),
		zap.String("color", string(color)),
		zap.String("uci", res.UCI),
		zap.String("san", res.SAN),
		zap.Int("move_count", len(g.moveLog)),
		zap.String("status", string(g.status)),
	)

	g.persistLocked(ctx)
	return out, nil
}

// Resign ends the game in favor of the opponent. Terminal sessions reject it
// like any other move.
func (g *Game) Resign(ctx context.Context, peerID string) (*MoveOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.Terminal() {
		return nil, wire.Errf(wire.CodeSessionTerminated, "game is over")
	}
	color, ok := g.colorOf(peerID)
	if !ok {
		return nil, wire.Errf(wire.CodeNoActiveSession, "not a participant")
	}

	g.status = StatusResigned
	g.winner = color.Other().Title()
	g.reason = "resignation"
	g.updatedAt = time.Now()
	g.broadcast(ctx, wire.TypeGameOver, &wire.GameOverPayload{Winner: g.winner, Reason: g.reason})

	obslog.L().Info("session_resign",
		zap.String("session_id", g.id),
		zap.String("resigner", string(color)),
		zap.String("winner", g.winner),
	)
	g.persistLocked(ctx)
	return &MoveOutcome{Finished: true, Status: g.status, Winner: g.winner}, nil
}

// HandleDisconnect awards a forfeit win to the remaining player. It is
// idempotent: once the session is terminal it does nothing and reports false.
func (g *Game) HandleDisconnect(ctx context.Context, peerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.Terminal() {
		return false
	}
	color, ok := g.colorOf(peerID)
	if !ok {
		return false
	}

	g.status = StatusDisconnected
	g.winner = color.Other().Title()
	g.reason = "forfeit"
	g.updatedAt = time.Now()

	remaining := g.white
	if color == rules.White {
		remaining = g.black
	}
	g.send(ctx, remaining, wire.TypeGameOver, &wire.GameOverPayload{Winner: g.winner, Reason: g.reason})

	obslog.L().Info("session_forfeit",
		zap.String("session_id", g.id),
		zap.String("disconnected", string(color)),
		zap.String("winner", g.winner),
	)
	g.persistLocked(ctx)
	return true
}

// LegalDestinations enumerates legal targets from a square for a participant.
// Read-only: no state change, no broadcast.
func (g *Game) LegalDestinations(peerID, from string) ([]rules.Destination, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.Terminal() {
		return nil, wire.Errf(wire.CodeSessionTerminated, "game is over")
	}
	if _, ok := g.colorOf(peerID); !ok {
		return nil, wire.Errf(wire.CodeNoActiveSession, "not a participant")
	}
	dests, err := g.adapter.LegalDestinations(g.state, from)
	if err != nil {
		return nil, wire.Errf(wire.CodeBadRequest, "invalid square")
	}
	return dests, nil
}

// Snapshot captures the session for the redis store / archive.
func (g *Game) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() *Snapshot {
	return &Snapshot{
		ID:        g.id,
		WhiteConn: g.white.ID(),
		BlackConn: g.black.ID(),
		FEN:       g.state.FEN,
		MovesUCI:  append([]string(nil), g.state.MovesUCI...),
		MovesSAN:  append([]string(nil), g.state.MovesSAN...),
		Turn:      g.turn,
		Status:    g.status,
		Winner:    g.winner,
		Reason:    g.reason,
		CreatedAt: g.createdAt,
		UpdatedAt: g.updatedAt,
	}
}

// persistLocked pushes the snapshot to redis and, once terminal, to the
// archive. Both are best-effort: play never blocks on persistence.
func (g *Game) persistLocked(ctx context.Context) {
	snap := g.snapshotLocked()
	if g.store != nil {
		if err := g.store.Save(ctx, snap); err != nil {
			obslog.L().Warn("session_snapshot_error", zap.String("session_id", g.id), zap.Error(err))
		}
	}
	if g.archive != nil && snap.Status.Terminal() {
		if err := g.archive.SaveResult(ctx, snap, g.reason); err != nil {
			obslog.L().Error("session_archive_error", zap.String("session_id", g.id), zap.Error(err))
		}
	}
}

// broadcast sends one frame to both connections with a bounded deadline per
// write. A failed send is left to the peer's read pump, which will surface
// the dead connection as a disconnect.
func (g *Game) broadcast(ctx context.Context, typ string, payload any) {
	g.send(ctx, g.white, typ, payload)
	g.send(ctx, g.black, typ, payload)
}

func (g *Game) send(ctx context.Context, p Peer, typ string, payload any) {
	env, err := wire.NewEnvelope(typ, payload)
	if err != nil {
		obslog.L().Error("session_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, g.sendTimeout)
	defer cancel()
	if err := p.Send(sctx, env); err != nil {
		obslog.L().Warn("session_send_error",
			zap.String("session_id", g.id),
			zap.String("conn_id", p.ID()),
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}
