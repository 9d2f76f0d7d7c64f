package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/park285/chess-arena-server/internal/rules"
	"github.com/park285/chess-arena-server/pkg/wire"
)

type fakePeer struct {
	id string

	mu   sync.Mutex
	sent []*wire.Envelope
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(_ context.Context, v any) error {
	env, ok := v.(*wire.Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	p.mu.Lock()
	p.sent = append(p.sent, env)
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) frames(typ string) []*wire.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*wire.Envelope
	for _, env := range p.sent {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func newTestGame() (*Game, *fakePeer, *fakePeer) {
	white := &fakePeer{id: "w"}
	black := &fakePeer{id: "b"}
	return New("g1", white, black, rules.NewAdapter()), white, black
}

func protoCode(t *testing.T, err error) string {
	t.Helper()
	var perr *wire.ProtocolError
	if !errors.As(err, &perr) { t.Fatalf("expected ProtocolError, got %v", err) }
	return perr.Code
}

func TestSubmitMoveBroadcastsToBoth(t *testing.T) {
	g, white, black := newTestGame()
	ctx := context.Background()

	out, err := g.SubmitMove(ctx, "w", wire.MoveRequest{From: "e2", To: "e4"})
	if err != nil { t.Fatalf("SubmitMove: %v", err) }
	if out.Finished { t.Fatalf("opening move must not finish the game") }
	if g.Turn() != rules.Black { t.Fatalf("turn did not flip") }
	if g.MoveCount() != 1 { t.Fatalf("move log: %d", g.MoveCount()) }

	for _, p := range []*fakePeer{white, black} {
		frames := p.frames(wire.TypeMove)
		if len(frames) != 1 { t.Fatalf("peer %s got %d move frames", p.id, len(frames)) }
		var bc wire.MoveBroadcast
		if err := json.Unmarshal(frames[0].Payload, &bc); err != nil { t.Fatalf("payload: %v", err) }
		if bc.Move.From != "e2" || bc.Move.To != "e4" || bc.SAN != "e4" { t.Fatalf("broadcast: %+v", bc) }
	}
}

func TestSubmitMoveRejections(t *testing.T) {
	g, _, _ := newTestGame()
	ctx := context.Background()

	if _, err := g.SubmitMove(ctx, "b", wire.MoveRequest{From: "e7", To: "e5"}); protoCode(t, err) != wire.CodeNotYourTurn {
		t.Fatalf("expected not_your_turn")
	}
	if _, err := g.SubmitMove(ctx, "w", wire.MoveRequest{From: "e2", To: "e5"}); protoCode(t, err) != wire.CodeIllegalMove {
		t.Fatalf("expected illegal_move")
	}
	if _, err := g.SubmitMove(ctx, "x", wire.MoveRequest{From: "e2", To: "e4"}); protoCode(t, err) != wire.CodeNoActiveSession {
		t.Fatalf("expected no_active_session for stranger")
	}
	if g.MoveCount() != 0 { t.Fatalf("rejected moves must not touch the log") }
}

func TestCheckmateFinishesSession(t *testing.T) {
	g, white, black := newTestGame()
	ctx := context.Background()

	moves := []struct {
		peer string
		req  wire.MoveRequest
	}{
		{"w", wire.MoveRequest{From: "f2", To: "f3"}},
		{"b", wire.MoveRequest{From: "e7", To: "e5"}},
		{"w", wire.MoveRequest{From: "g2", To: "g4"}},
		{"b", wire.MoveRequest{From: "d8", To: "h4"}},
	}
	var out *MoveOutcome
	var err error
	for _, mv := range moves {
		out, err = g.SubmitMove(ctx, mv.peer, mv.req)
		if err != nil { t.Fatalf("SubmitMove %+v: %v", mv.req, err) }
	}
	if !out.Finished || out.Status != StatusCheckmate || out.Winner != "Black" { t.Fatalf("outcome: %+v", out) }
	if g.Status() != StatusCheckmate { t.Fatalf("status: %s", g.Status()) }

	for _, p := range []*fakePeer{white, black} {
		frames := p.frames(wire.TypeGameOver)
		if len(frames) != 1 { t.Fatalf("peer %s got %d game_over frames", p.id, len(frames)) }
		var over wire.GameOverPayload
		if err := json.Unmarshal(frames[0].Payload, &over); err != nil { t.Fatalf("payload: %v", err) }
		if over.Winner != "Black" || over.Reason != "checkmate" { t.Fatalf("game_over: %+v", over) }
	}

	// The session is absorbing once terminal.
	if _, err := g.SubmitMove(ctx, "w", wire.MoveRequest{From: "a2", To: "a3"}); protoCode(t, err) != wire.CodeSessionTerminated {
		t.Fatalf("expected session_terminated")
	}
}

func TestResign(t *testing.T) {
	g, _, black := newTestGame()
	ctx := context.Background()

	out, err := g.Resign(ctx, "w")
	if err != nil { t.Fatalf("Resign: %v", err) }
	if !out.Finished || out.Status != StatusResigned || out.Winner != "Black" { t.Fatalf("outcome: %+v", out) }

	frames := black.frames(wire.TypeGameOver)
	if len(frames) != 1 { t.Fatalf("opponent got %d game_over frames", len(frames)) }
	var over wire.GameOverPayload
	if err := json.Unmarshal(frames[0].Payload, &over); err != nil { t.Fatalf("payload: %v", err) }
	if over.Reason != "resignation" { t.Fatalf("reason: %q", over.Reason) }

	if _, err := g.Resign(ctx, "b"); protoCode(t, err) != wire.CodeSessionTerminated {
		t.Fatalf("resigning a finished game must fail")
	}
}

func TestHandleDisconnectForfeits(t *testing.T) {
	g, white, black := newTestGame()
	ctx := context.Background()

	if !g.HandleDisconnect(ctx, "w") { t.Fatalf("first disconnect should terminate") }
	if g.Status() != StatusDisconnected { t.Fatalf("status: %s", g.Status()) }

	// Only the remaining player is notified.
	if len(white.frames(wire.TypeGameOver)) != 0 { t.Fatalf("disconnected peer must not be notified") }
	frames := black.frames(wire.TypeGameOver)
	if len(frames) != 1 { t.Fatalf("remaining peer got %d game_over frames", len(frames)) }
	var over wire.GameOverPayload
	if err := json.Unmarshal(frames[0].Payload, &over); err != nil { t.Fatalf("payload: %v", err) }
	if over.Winner != "Black" || over.Reason != "forfeit" { t.Fatalf("game_over: %+v", over) }

	if g.HandleDisconnect(ctx, "b") { t.Fatalf("disconnect on terminal session must be a no-op") }
}

func TestLegalDestinationsReadOnly(t *testing.T) {
	g, white, _ := newTestGame()

	dests, err := g.LegalDestinations("w", "e2")
	if err != nil { t.Fatalf("LegalDestinations: %v", err) }
	if len(dests) != 2 { t.Fatalf("expected two pawn moves, got %v", dests) }
	if g.MoveCount() != 0 { t.Fatalf("query must not mutate state") }
	if len(white.sent) != 0 { t.Fatalf("query must not broadcast") }

	if _, err := g.LegalDestinations("x", "e2"); protoCode(t, err) != wire.CodeNoActiveSession {
		t.Fatalf("expected no_active_session for stranger")
	}
}

func TestSnapshot(t *testing.T) {
	g, _, _ := newTestGame()
	ctx := context.Background()
	if _, err := g.SubmitMove(ctx, "w", wire.MoveRequest{From: "e2", To: "e4"}); err != nil { t.Fatalf("SubmitMove: %v", err) }

	snap := g.Snapshot()
	if snap.ID != "g1" || snap.WhiteConn != "w" || snap.BlackConn != "b" { t.Fatalf("snapshot identity: %+v", snap) }
	if snap.Turn != rules.Black || snap.Status != StatusInProgress { t.Fatalf("snapshot state: %+v", snap) }
	if len(snap.MovesUCI) != 1 || snap.MovesUCI[0] != "e2e4" { t.Fatalf("snapshot moves: %v", snap.MovesUCI) }
}
