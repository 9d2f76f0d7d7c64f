package rules

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Title renders the color for wire payloads ("White"/"Black").
func (c Color) Title() string {
	if c == White {
		return "White"
	}
	return "Black"
}

// State is an immutable game position. The UCI move list from the standard
// start position is the source of truth; FEN is derived for presentation.
// Apply never mutates a State, it returns a fresh one, so callers can discard
// a rejected move atomically.
type State struct {
	MovesUCI []string
	MovesSAN []string
	FEN      string
}

// Turn derives the side to move from move-list parity.
func (s *State) Turn() Color {
	if len(s.MovesUCI)%2 == 0 {
		return White
	}
	return Black
}

// Result reports what a successfully applied move did to the game.
type Result struct {
	UCI       string
	SAN       string
	Check     bool
	Checkmate bool
	Stalemate bool
	Draw      bool
	NextTurn  Color
	FEN       string
}

// Terminal reports whether the move ended the game.
func (r *Result) Terminal() bool {
	return r.Checkmate || r.Stalemate || r.Draw
}

// Destination is a legal target square from some origin square. Promotion
// marks that the move requires a promotion piece kind.
type Destination struct {
	To        string
	Promotion bool
}
