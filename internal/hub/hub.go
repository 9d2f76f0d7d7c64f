package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-arena-server/internal/match"
	"github.com/park285/chess-arena-server/internal/obslog"
	"github.com/park285/chess-arena-server/internal/registry"
	"github.com/park285/chess-arena-server/internal/rules"
	"github.com/park285/chess-arena-server/internal/session"
	"github.com/park285/chess-arena-server/pkg/wire"
)

// Hub is the session manager / dispatcher. It owns the connection registry,
// the matchmaking queue and the table of live sessions, and routes every
// inbound frame by connection handle. A malformed or out-of-context frame is
// answered or dropped, never fatal.
//
// Waiting policy: repeating a quick-match request while queued is answered
// with already_waiting, repeating create_room re-announces the open code, and
// requesting a different kind of wait replaces the previous one. None of them
// change the waiting state.
type Hub struct {
	adapter  rules.Adapter
	registry *registry.Registry
	queue    *match.Queue

	mu       sync.RWMutex
	peers    map[string]session.Peer
	sessions map[string]*session.Game

	store       *session.Store
	archive     session.Archiver
	maxSessions int
	sendTimeout time.Duration
}

func New(adapter rules.Adapter) *Hub {
	return &Hub{
		adapter:     adapter,
		registry:    registry.New(),
		queue:       match.NewQueue(),
		peers:       make(map[string]session.Peer),
		sessions:    make(map[string]*session.Game),
		maxSessions: 500,
		sendTimeout: 5 * time.Second,
	}
}

// AttachStore wires the optional redis snapshot store into new sessions.
func (h *Hub) AttachStore(s *session.Store) { h.store = s }

// AttachArchive wires the optional finished-game repository.
func (h *Hub) AttachArchive(a session.Archiver) { h.archive = a }

// SetMaxSessions caps concurrently active sessions.
func (h *Hub) SetMaxSessions(n int) {
	if n > 0 {
		h.maxSessions = n
	}
}

// SetSendTimeout bounds outbound writes made by the hub and its sessions.
func (h *Hub) SetSendTimeout(d time.Duration) {
	if d > 0 {
		h.sendTimeout = d
	}
}

// Stats is served by the ops endpoint.
type Stats struct {
	Connections    int `json:"connections"`
	WaitingQuick   int `json:"waiting_quick_match"`
	OpenRooms      int `json:"open_rooms"`
	ActiveSessions int `json:"active_sessions"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	active := len(h.sessions)
	h.mu.RUnlock()
	return Stats{
		Connections:    h.registry.Count(),
		WaitingQuick:   h.queue.WaitingCount(),
		OpenRooms:      h.queue.OpenRooms(),
		ActiveSessions: active,
	}
}

// OnConnectionOpen registers a new transport connection as idle.
func (h *Hub) OnConnectionOpen(p session.Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	h.mu.Unlock()
	h.registry.Register(p.ID())
	obslog.L().Info("conn_open", zap.String("conn_id", p.ID()))
}

// OnConnectionClose tears down whatever the connection was doing. Exactly one
// close is processed per handle; later calls are no-ops.
func (h *Hub) OnConnectionClose(peerID string) {
	h.mu.Lock()
	delete(h.peers, peerID)
	h.mu.Unlock()

	assoc, ok := h.registry.Unregister(peerID)
	if !ok {
		return
	}
	fields := []zap.Field{zap.String("conn_id", peerID), zap.String("state", string(assoc.State))}
	if assoc.State == registry.StateInGame {
		fields = append(fields, zap.String("session_id", assoc.SessionID), zap.String("color", string(assoc.Color)))
	}
	obslog.L().Info("conn_close", fields...)

	switch assoc.State {
	case registry.StateWaitingQuick, registry.StateWaitingRoom:
		h.queue.Remove(peerID)
	case registry.StateInGame:
		g := h.lookupSession(assoc.SessionID)
		if g == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
		defer cancel()
		if g.HandleDisconnect(ctx, peerID) {
			h.teardown(g)
		}
	}
}

// OnConnectionMessage routes one inbound text frame. Unparseable frames are
// dropped with a warning.
func (h *Hub) OnConnectionMessage(ctx context.Context, peerID string, raw []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		obslog.L().Warn("frame_malformed", zap.String("conn_id", peerID), zap.Error(err))
		return
	}

	switch env.Type {
	case wire.TypeInitGame:
		h.handleInitGame(ctx, peerID)
	case wire.TypeCreateRoom:
		h.handleCreateRoom(ctx, peerID, env.Payload)
	case wire.TypeJoinRoom:
		h.handleJoinRoom(ctx, peerID, env.Payload)
	case wire.TypeMove:
		h.handleMove(ctx, peerID, env.Payload)
	case wire.TypeResign:
		h.handleResign(ctx, peerID)
	case wire.TypeLegalMoves:
		h.handleLegalMoves(ctx, peerID, env.Payload)
	default:
		obslog.L().Warn("frame_unknown_type", zap.String("conn_id", peerID), zap.String("type", env.Type))
	}
}

func (h *Hub) handleInitGame(ctx context.Context, peerID string) {
	assoc, ok := h.registry.Lookup(peerID)
	if !ok {
		return
	}
	switch assoc.State {
	case registry.StateInGame:
		h.sendError(ctx, peerID, wire.CodeAlreadyInGame, "finish or resign your current game first")
		return
	case registry.StateWaitingQuick:
		h.sendError(ctx, peerID, wire.CodeAlreadyWaiting, "already waiting for quick match")
		return
	case registry.StateWaitingRoom:
		h.queue.Remove(peerID)
	}

	paired, ok := h.queue.EnqueueQuickMatch(peerID)
	if !ok {
		h.registry.SetAssociation(peerID, registry.Association{State: registry.StateWaitingQuick})
		obslog.L().Info("quick_match_waiting", zap.String("conn_id", peerID))
		return
	}
	// FIFO: the earlier waiter takes White.
	if err := h.startSession(ctx, paired, peerID); errors.Is(err, errPeerGone) {
		// The paired waiter vanished between dequeue and start; keep the
		// survivor waiting instead of dropping them.
		for _, id := range []string{paired, peerID} {
			if _, ok := h.registry.Lookup(id); ok {
				if _, again := h.queue.EnqueueQuickMatch(id); !again {
					h.registry.SetAssociation(id, registry.Association{State: registry.StateWaitingQuick})
				}
			}
		}
	}
}

func (h *Hub) handleCreateRoom(ctx context.Context, peerID string, payload json.RawMessage) {
	assoc, ok := h.registry.Lookup(peerID)
	if !ok {
		return
	}
	switch assoc.State {
	case registry.StateInGame:
		h.sendError(ctx, peerID, wire.CodeAlreadyInGame, "finish or resign your current game first")
		return
	case registry.StateWaitingRoom:
		// Same wait requested again: re-announce the open code.
		h.sendTo(ctx, peerID, wire.TypeRoomCreated, &wire.RoomPayload{RoomID: assoc.RoomCode})
		return
	case registry.StateWaitingQuick:
		h.queue.Remove(peerID)
	}

	var req wire.RoomPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			obslog.L().Warn("frame_malformed", zap.String("conn_id", peerID), zap.Error(err))
			return
		}
	}
	code, err := h.queue.CreateRoom(peerID, req.RoomID)
	if err != nil {
		h.sendError(ctx, peerID, wire.CodeBadRequest, "could not create room")
		return
	}
	h.registry.SetAssociation(peerID, registry.Association{State: registry.StateWaitingRoom, RoomCode: code})
	h.sendTo(ctx, peerID, wire.TypeRoomCreated, &wire.RoomPayload{RoomID: code})
	obslog.L().Info("room_created", zap.String("conn_id", peerID), zap.String("code", code))
}

func (h *Hub) handleJoinRoom(ctx context.Context, peerID string, payload json.RawMessage) {
	assoc, ok := h.registry.Lookup(peerID)
	if !ok {
		return
	}
	if assoc.State == registry.StateInGame {
		h.sendError(ctx, peerID, wire.CodeAlreadyInGame, "finish or resign your current game first")
		return
	}
	if assoc.State == registry.StateWaitingQuick || assoc.State == registry.StateWaitingRoom {
		// Different wait requested: drop the previous one (this also closes a
		// hosted room, so joining your own room yields room_not_found).
		h.queue.Remove(peerID)
		h.registry.SetAssociation(peerID, registry.Idle())
	}

	var req wire.RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		obslog.L().Warn("frame_malformed", zap.String("conn_id", peerID), zap.Error(err))
		return
	}
	room, err := h.queue.JoinRoom(peerID, req.RoomID)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrRoomNotFound):
			h.sendError(ctx, peerID, wire.CodeRoomNotFound, "no open room with that code")
		case errors.Is(err, match.ErrRoomFull):
			h.sendError(ctx, peerID, wire.CodeRoomFull, "room already has a guest")
		default:
			h.sendError(ctx, peerID, wire.CodeBadRequest, "could not join room")
		}
		return
	}

	// Host plays White, guest Black. The room leaves the open set exactly
	// once the guest has successfully joined.
	err = h.startSession(ctx, room.HostID, peerID)
	h.queue.RemoveRoom(room.Code)
	if errors.Is(err, errPeerGone) {
		h.sendError(ctx, peerID, wire.CodeRoomNotFound, "room host is gone")
		return
	}
	if err == nil {
		obslog.L().Info("room_joined", zap.String("code", room.Code), zap.String("guest", peerID))
	}
}

func (h *Hub) handleMove(ctx context.Context, peerID string, payload json.RawMessage) {
	g := h.sessionFor(ctx, peerID)
	if g == nil {
		return
	}
	var req wire.MovePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		obslog.L().Warn("frame_malformed", zap.String("conn_id", peerID), zap.Error(err))
		return
	}
	out, err := g.SubmitMove(ctx, peerID, req.Move)
	if err != nil {
		h.reportError(ctx, peerID, err)
		return
	}
	if out.Finished {
		h.teardown(g)
	}
}

func (h *Hub) handleResign(ctx context.Context, peerID string) {
	g := h.sessionFor(ctx, peerID)
	if g == nil {
		return
	}
	out, err := g.Resign(ctx, peerID)
	if err != nil {
		h.reportError(ctx, peerID, err)
		return
	}
	if out.Finished {
		h.teardown(g)
	}
}

func (h *Hub) handleLegalMoves(ctx context.Context, peerID string, payload json.RawMessage) {
	g := h.sessionFor(ctx, peerID)
	if g == nil {
		return
	}
	var req wire.LegalMovesRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		obslog.L().Warn("frame_malformed", zap.String("conn_id", peerID), zap.Error(err))
		return
	}
	dests, err := g.LegalDestinations(peerID, req.From)
	if err != nil {
		h.reportError(ctx, peerID, err)
		return
	}
	resp := &wire.LegalMovesResponse{From: req.From, Moves: make([]wire.Destination, 0, len(dests))}
	for _, d := range dests {
		resp.Moves = append(resp.Moves, wire.Destination{To: d.To, Promotion: d.Promotion})
	}
	h.sendTo(ctx, peerID, wire.TypeLegalMoves, resp)
}

// sessionFor resolves the session a connection is playing in, answering
// no_active_session when there is none.
func (h *Hub) sessionFor(ctx context.Context, peerID string) *session.Game {
	assoc, ok := h.registry.Lookup(peerID)
	if !ok || assoc.State != registry.StateInGame {
		h.sendError(ctx, peerID, wire.CodeNoActiveSession, "no active game for this connection")
		return nil
	}
	g := h.lookupSession(assoc.SessionID)
	if g == nil {
		h.sendError(ctx, peerID, wire.CodeNoActiveSession, "no active game for this connection")
	}
	return g
}

var (
	errPeerGone = errors.New("peer gone")
	errCapacity = errors.New("session capacity reached")
)

// startSession pairs two registered connections into a new game, White
// first. Callers decide what to do with a survivor on errPeerGone.
func (h *Hub) startSession(ctx context.Context, whiteID, blackID string) error {
	h.mu.RLock()
	white := h.peers[whiteID]
	black := h.peers[blackID]
	full := len(h.sessions) >= h.maxSessions
	h.mu.RUnlock()

	if white == nil || black == nil {
		return errPeerGone
	}
	if full {
		h.sendError(ctx, whiteID, wire.CodeBadRequest, "server at capacity, try again later")
		h.sendError(ctx, blackID, wire.CodeBadRequest, "server at capacity, try again later")
		h.registry.SetAssociation(whiteID, registry.Idle())
		h.registry.SetAssociation(blackID, registry.Idle())
		return errCapacity
	}

	g := session.New(uuid.NewString(), white, black, h.adapter)
	g.SetSendTimeout(h.sendTimeout)
	if h.store != nil {
		g.AttachStore(h.store)
	}
	if h.archive != nil {
		g.AttachArchive(h.archive)
	}

	h.mu.Lock()
	h.sessions[g.ID()] = g
	h.mu.Unlock()

	okW := h.registry.SetAssociation(whiteID, registry.Association{State: registry.StateInGame, SessionID: g.ID(), Color: rules.White})
	okB := h.registry.SetAssociation(blackID, registry.Association{State: registry.StateInGame, SessionID: g.ID(), Color: rules.Black})
	if !okW || !okB {
		// One side closed between the peer snapshot and the association
		// write; its close handler found nothing to notify, so the session
		// must not outlive this call. Undo and let the caller keep the
		// survivor.
		if okW {
			h.registry.SetAssociation(whiteID, registry.Idle())
		}
		if okB {
			h.registry.SetAssociation(blackID, registry.Idle())
		}
		h.mu.Lock()
		delete(h.sessions, g.ID())
		h.mu.Unlock()
		return errPeerGone
	}

	h.sendTo(ctx, whiteID, wire.TypeInitGame, &wire.InitGamePayload{Color: string(rules.White)})
	h.sendTo(ctx, blackID, wire.TypeInitGame, &wire.InitGamePayload{Color: string(rules.Black)})

	if h.store != nil {
		if err := h.store.Save(ctx, g.Snapshot()); err != nil {
			obslog.L().Warn("session_snapshot_error", zap.String("session_id", g.ID()), zap.Error(err))
		}
	}
	obslog.L().Info("session_start",
		zap.String("session_id", g.ID()),
		zap.String("white", whiteID),
		zap.String("black", blackID),
	)
	return nil
}

// teardown removes a terminal session and returns both connections to idle.
// Both sides have already been notified by the session itself.
func (h *Hub) teardown(g *session.Game) {
	h.mu.Lock()
	delete(h.sessions, g.ID())
	h.mu.Unlock()

	for _, id := range []string{g.WhiteID(), g.BlackID()} {
		if assoc, ok := h.registry.Lookup(id); ok && assoc.SessionID == g.ID() {
			h.registry.SetAssociation(id, registry.Idle())
		}
	}
	obslog.L().Info("session_teardown", zap.String("session_id", g.ID()), zap.String("status", string(g.Status())))
}

func (h *Hub) lookupSession(id string) *session.Game {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

func (h *Hub) reportError(ctx context.Context, peerID string, err error) {
	var perr *wire.ProtocolError
	if errors.As(err, &perr) {
		h.sendErrorPayload(ctx, peerID, perr)
		return
	}
	obslog.L().Error("dispatch_error", zap.String("conn_id", peerID), zap.Error(err))
	h.sendError(ctx, peerID, wire.CodeBadRequest, "request failed")
}

func (h *Hub) sendError(ctx context.Context, peerID, code, message string) {
	h.sendErrorPayload(ctx, peerID, wire.Errf(code, message))
}

func (h *Hub) sendErrorPayload(ctx context.Context, peerID string, perr *wire.ProtocolError) {
	h.sendTo(ctx, peerID, wire.TypeError, perr)
}

func (h *Hub) sendTo(ctx context.Context, peerID, typ string, payload any) {
	h.mu.RLock()
	p := h.peers[peerID]
	h.mu.RUnlock()
	if p == nil {
		return
	}
	env, err := wire.NewEnvelope(typ, payload)
	if err != nil {
		obslog.L().Error("frame_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	if err := p.Send(sctx, env); err != nil {
		obslog.L().Warn("frame_send_error", zap.String("conn_id", peerID), zap.String("type", typ), zap.Error(err))
	}
}
