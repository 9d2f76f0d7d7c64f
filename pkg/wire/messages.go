package wire

import "encoding/json"

// Frame types exchanged as JSON text frames.
const (
	TypeInitGame    = "init_game"
	TypeCreateRoom  = "create_room"
	TypeRoomCreated = "room_created"
	TypeJoinRoom    = "join_room"
	TypeMove        = "move"
	TypeLegalMoves  = "legal_moves"
	TypeResign      = "resign"
	TypeGameOver    = "game_over"
	TypeError       = "error"
)

// Envelope wraps every frame on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. A nil payload is allowed.
func NewEnvelope(typ string, payload any) (*Envelope, error) {
	env := &Envelope{Type: typ}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Payload = raw
	return env, nil
}

// MoveRequest is the client's candidate move. Promotion is a lowercase piece
// letter (q, r, b, n) and must be present exactly when the move promotes.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// InitGamePayload is sent to both players when a game starts.
type InitGamePayload struct {
	Color string `json:"color"`
}

// RoomPayload carries a room code for create_room / room_created / join_room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// MovePayload is the client→server move frame.
type MovePayload struct {
	Move MoveRequest `json:"move"`
}

// MoveBroadcast is the server→client applied-move frame. It is the canonical
// result both clients must adopt, overriding any speculative local state.
type MoveBroadcast struct {
	Move  MoveRequest `json:"move"`
	SAN   string      `json:"san,omitempty"`
	Check bool        `json:"check"`
}

// LegalMovesRequest asks for the legal destinations from a square.
type LegalMovesRequest struct {
	From string `json:"from"`
}

// Destination is one legal target square; Promotion marks that moving there
// requires a promotion piece.
type Destination struct {
	To        string `json:"to"`
	Promotion bool   `json:"promotion"`
}

// LegalMovesResponse answers a LegalMovesRequest.
type LegalMovesResponse struct {
	From  string        `json:"from"`
	Moves []Destination `json:"moves"`
}

// GameOverPayload names the winner ("White", "Black" or "Draw") and why.
type GameOverPayload struct {
	Winner string `json:"winner"`
	Reason string `json:"reason,omitempty"`
}
