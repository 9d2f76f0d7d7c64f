package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-arena-server/internal/rules"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	t.Cleanup(mr.Close)
	s, err := NewStore("redis://" + mr.Addr() + "/0")
	if err != nil { t.Fatalf("NewStore: %v", err) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	snap := &Snapshot{
		ID: "g1", WhiteConn: "w", BlackConn: "b",
		FEN:      "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		MovesUCI: []string{"e2e4"}, MovesSAN: []string{"e4"},
		Turn: rules.Black, Status: StatusInProgress,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Save(ctx, snap); err != nil { t.Fatalf("Save: %v", err) }

	got, err := s.Load(ctx, "g1")
	if err != nil { t.Fatalf("Load: %v", err) }
	if got == nil { t.Fatalf("snapshot missing") }
	if got.ID != "g1" || got.Turn != rules.Black || got.Status != StatusInProgress { t.Fatalf("loaded: %+v", got) }
	if len(got.MovesUCI) != 1 || got.MovesUCI[0] != "e2e4" { t.Fatalf("moves: %v", got.MovesUCI) }
}

func TestStoreLoadMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load(context.Background(), "nope")
	if err != nil { t.Fatalf("Load: %v", err) }
	if got != nil { t.Fatalf("expected nil for missing snapshot, got %+v", got) }
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	snap := &Snapshot{ID: "g1", Status: StatusInProgress, Turn: rules.White}
	if err := s.Save(ctx, snap); err != nil { t.Fatalf("Save: %v", err) }
	if err := s.Delete(ctx, "g1"); err != nil { t.Fatalf("Delete: %v", err) }
	got, err := s.Load(ctx, "g1")
	if err != nil { t.Fatalf("Load: %v", err) }
	if got != nil { t.Fatalf("snapshot survived delete") }
}
