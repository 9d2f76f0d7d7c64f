package rules

import "testing"

func TestApplyOpeningMove(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	next, res, err := a.Apply(s, "e2", "e4", "")
	if err != nil { t.Fatalf("Apply: %v", err) }
	if res.UCI != "e2e4" || res.SAN != "e4" { t.Fatalf("unexpected notation: uci=%q san=%q", res.UCI, res.SAN) }
	if res.NextTurn != Black { t.Fatalf("expected black to move, got %s", res.NextTurn) }
	if res.Terminal() { t.Fatalf("opening move should not be terminal") }
	if len(next.MovesUCI) != 1 || len(next.MovesSAN) != 1 { t.Fatalf("move log not appended") }
	if len(s.MovesUCI) != 0 { t.Fatalf("input state mutated") }
}

func TestApplyIllegalMove(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	if _, _, err := a.Apply(s, "e2", "e5", ""); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, _, err := a.Apply(s, "e2", "e4", "k"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for bad promotion letter, got %v", err)
	}
	if _, _, err := a.Apply(s, "e2", "e4", "q"); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for promotion piece on a plain move, got %v", err)
	}
	if _, _, err := a.Apply(s, "e2", "", ""); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for malformed square, got %v", err)
	}
}

func TestApplyFoolsMate(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	moves := [][3]string{
		{"f2", "f3", ""}, {"e7", "e5", ""},
		{"g2", "g4", ""}, {"d8", "h4", ""},
	}
	var res *Result
	var err error
	for _, mv := range moves {
		s, res, err = a.Apply(s, mv[0], mv[1], mv[2])
		if err != nil { t.Fatalf("Apply %s%s: %v", mv[0], mv[1], err) }
	}
	if !res.Checkmate { t.Fatalf("expected checkmate, got %+v", res) }
	if !res.Check { t.Fatalf("mating move should report check") }
	if res.SAN != "Qh4#" { t.Fatalf("unexpected SAN: %q", res.SAN) }
}

func TestApplyPromotion(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	moves := [][3]string{
		{"a2", "a4", ""}, {"b7", "b5", ""},
		{"a4", "b5", ""}, {"a7", "a6", ""},
		{"b5", "a6", ""}, {"c7", "c6", ""},
		{"a6", "a7", ""}, {"h7", "h6", ""},
	}
	var err error
	for _, mv := range moves {
		s, _, err = a.Apply(s, mv[0], mv[1], mv[2])
		if err != nil { t.Fatalf("Apply %s%s: %v", mv[0], mv[1], err) }
	}
	// The pawn on a7 must name a promotion piece to reach the back rank.
	if _, _, err := a.Apply(s, "a7", "b8", ""); err != ErrIllegalMove {
		t.Fatalf("promotion without piece should be illegal, got %v", err)
	}
	next, res, err := a.Apply(s, "a7", "b8", "q")
	if err != nil { t.Fatalf("promotion: %v", err) }
	if res.UCI != "a7b8q" { t.Fatalf("unexpected uci: %q", res.UCI) }
	if got := next.MovesUCI[len(next.MovesUCI)-1]; got != "a7b8q" { t.Fatalf("log: %q", got) }
}

func TestLegalDestinations(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	dests, err := a.LegalDestinations(s, "e2")
	if err != nil { t.Fatalf("LegalDestinations: %v", err) }
	if len(dests) != 2 { t.Fatalf("expected e3 and e4, got %v", dests) }
	for _, d := range dests {
		if d.Promotion { t.Fatalf("pawn push from e2 is not a promotion") }
		if d.To != "e3" && d.To != "e4" { t.Fatalf("unexpected destination %q", d.To) }
	}

	empty, err := a.LegalDestinations(s, "e5")
	if err != nil { t.Fatalf("LegalDestinations empty square: %v", err) }
	if len(empty) != 0 { t.Fatalf("expected no moves from empty square, got %v", empty) }

	if _, err := a.LegalDestinations(s, "e22"); err == nil {
		t.Fatalf("expected error for malformed square")
	}
}

func TestLegalDestinationsCollapsesPromotions(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	moves := [][3]string{
		{"a2", "a4", ""}, {"b7", "b5", ""},
		{"a4", "b5", ""}, {"a7", "a6", ""},
		{"b5", "a6", ""}, {"c7", "c6", ""},
		{"a6", "a7", ""}, {"h7", "h6", ""},
	}
	var err error
	for _, mv := range moves {
		s, _, err = a.Apply(s, mv[0], mv[1], mv[2])
		if err != nil { t.Fatalf("Apply %s%s: %v", mv[0], mv[1], err) }
	}
	dests, err := a.LegalDestinations(s, "a7")
	if err != nil { t.Fatalf("LegalDestinations: %v", err) }
	if len(dests) != 1 { t.Fatalf("expected one collapsed destination, got %v", dests) }
	if dests[0].To != "b8" || !dests[0].Promotion { t.Fatalf("expected b8 promotion, got %+v", dests[0]) }
}

func TestStateTurnParity(t *testing.T) {
	a := NewAdapter()
	s := a.NewState()
	if s.Turn() != White { t.Fatalf("start position is white to move") }
	s, _, err := a.Apply(s, "e2", "e4", "")
	if err != nil { t.Fatalf("Apply: %v", err) }
	if s.Turn() != Black { t.Fatalf("after one move it is black to move") }
}
