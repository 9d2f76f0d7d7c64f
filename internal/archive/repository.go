package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-arena-server/internal/session"
)

// Repository upserts finished games into postgres. It is attached to
// sessions as an optional collaborator; the server runs fine without it.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one terminal game. method is the termination reason
// (checkmate, stalemate, draw, resignation, forfeit).
func (r *Repository) SaveResult(ctx context.Context, snap *session.Snapshot, method string) error {
	if r == nil || r.db == nil || snap == nil {
		return nil
	}
	if !snap.Status.Terminal() {
		return nil
	}

	pgnResult := mapWinnerToPGN(snap.Winner)
	pgn := buildPGN(snap, pgnResult, method)
	movesUCIRaw, _ := json.Marshal(snap.MovesUCI)
	movesSANRaw, _ := json.Marshal(snap.MovesSAN)
	duration := snap.UpdatedAt.Sub(snap.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
        game_id, white_conn, black_conn,
        winner, result_method, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
      ) ON CONFLICT (game_id) DO UPDATE SET
        white_conn=EXCLUDED.white_conn,
        black_conn=EXCLUDED.black_conn,
        winner=EXCLUDED.winner,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		snap.ID,
		snap.WhiteConn, snap.BlackConn,
		snap.Winner, strings.TrimSpace(method),
		string(movesUCIRaw), string(movesSANRaw), pgn,
		snap.CreatedAt, snap.UpdatedAt, duration,
	)
	return err
}

func mapWinnerToPGN(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(snap *session.Snapshot, pgnResult, method string) string {
	var b strings.Builder
	date := snap.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(snap.WhiteConn)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(snap.BlackConn)))
	if strings.TrimSpace(method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(snap.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(snap.MovesSAN[i])))
		if i+1 < len(snap.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(snap.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
