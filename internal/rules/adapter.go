package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ErrIllegalMove is returned for any move the engine rejects, including a
// promotion attempt without a piece kind or with one on a non-promotion move.
var ErrIllegalMove = errf("illegal move")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Adapter is a thin call-through to the chess engine. It is stateless and
// safe for concurrent use; all game state lives in the caller's State values.
type Adapter struct{}

func NewAdapter() Adapter { return Adapter{} }

// NewState returns the standard start position.
func (Adapter) NewState() *State {
	game := nchess.NewGame()
	return &State{FEN: game.FEN()}
}

// Apply validates the candidate move against s and returns the resulting
// state. On rejection it returns ErrIllegalMove and leaves s untouched.
func (Adapter) Apply(s *State, from, to, promotion string) (*State, *Result, error) {
	uci, err := buildUCI(from, to, promotion)
	if err != nil {
		return nil, nil, err
	}
	game := reconstruct(s.MovesUCI)
	if game == nil {
		return nil, nil, errf("corrupted move log")
	}
	pos := game.Position()
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return nil, nil, ErrIllegalMove
	}
	mv := lastMove(game)
	if mv == nil {
		return nil, nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)

	res := &Result{
		UCI:      uci,
		SAN:      san,
		Check:    strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#"),
		NextTurn: colorFrom(game.Position().Turn()),
		FEN:      game.FEN(),
	}
	if game.Outcome() != nchess.NoOutcome {
		switch game.Method() {
		case nchess.Checkmate:
			res.Checkmate = true
		case nchess.Stalemate:
			res.Stalemate = true
		default:
			// Automatic draws: insufficient material, repetition, move rules.
			res.Draw = true
		}
	}

	next := &State{
		MovesUCI: append(append([]string(nil), s.MovesUCI...), uci),
		MovesSAN: append(append([]string(nil), s.MovesSAN...), san),
		FEN:      res.FEN,
	}
	return next, res, nil
}

// LegalDestinations enumerates the target squares reachable from the origin
// square, collapsing the four promotion variants into one flagged entry.
func (Adapter) LegalDestinations(s *State, from string) ([]Destination, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	if len(from) != 2 {
		return nil, ErrIllegalMove
	}
	game := reconstruct(s.MovesUCI)
	if game == nil {
		return nil, errf("corrupted move log")
	}
	seen := make(map[string]int)
	var out []Destination
	for _, mv := range game.ValidMoves() {
		if mv.S1().String() != from {
			continue
		}
		to := mv.S2().String()
		promo := mv.Promo() != nchess.NoPieceType
		if i, ok := seen[to]; ok {
			if promo {
				out[i].Promotion = true
			}
			continue
		}
		seen[to] = len(out)
		out = append(out, Destination{To: to, Promotion: promo})
	}
	return out, nil
}

func buildUCI(from, to, promotion string) (string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))
	if len(from) != 2 || len(to) != 2 {
		return "", ErrIllegalMove
	}
	switch promotion {
	case "":
	case "q", "r", "b", "n":
	default:
		return "", ErrIllegalMove
	}
	return from + to + promotion, nil
}

// reconstruct rebuilds the engine game by replaying the stored UCI moves from
// the start position. Replaying from FEN can double-apply moves.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
