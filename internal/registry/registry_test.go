package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/park285/chess-arena-server/internal/rules"
)

func TestRegisterLookup(t *testing.T) {
	r := New()
	r.Register("c1")
	a, ok := r.Lookup("c1")
	if !ok { t.Fatalf("registered handle not found") }
	if a.State != StateIdle { t.Fatalf("fresh handle should be idle, got %s", a.State) }
	if r.Count() != 1 { t.Fatalf("count: %d", r.Count()) }
}

func TestSetAssociation(t *testing.T) {
	r := New()
	r.Register("c1")
	if !r.SetAssociation("c1", Association{State: StateInGame, SessionID: "s1", Color: rules.White}) {
		t.Fatalf("SetAssociation on known handle failed")
	}
	a, _ := r.Lookup("c1")
	if a.State != StateInGame || a.SessionID != "s1" || a.Color != rules.White { t.Fatalf("association: %+v", a) }

	if r.SetAssociation("ghost", Idle()) { t.Fatalf("SetAssociation on unknown handle must be a no-op") }
}

func TestUnregister(t *testing.T) {
	r := New()
	r.Register("c1")
	r.SetAssociation("c1", Association{State: StateWaitingRoom, RoomCode: "R-ABC123"})

	a, ok := r.Unregister("c1")
	if !ok { t.Fatalf("Unregister should report the handle") }
	if a.State != StateWaitingRoom || a.RoomCode != "R-ABC123" { t.Fatalf("last association: %+v", a) }
	if r.Count() != 0 { t.Fatalf("handle not removed") }

	if _, ok := r.Unregister("c1"); ok { t.Fatalf("second Unregister must report unknown") }
}

func TestConcurrentRegistration(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			r.Register(id)
			r.SetAssociation(id, Association{State: StateWaitingQuick})
			if n%2 == 0 {
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()
	if r.Count() != 32 { t.Fatalf("count after churn: %d", r.Count()) }
}

func TestRegisterResetsExisting(t *testing.T) {
	r := New()
	r.Register("c1")
	r.SetAssociation("c1", Association{State: StateWaitingQuick})
	r.Register("c1")
	a, _ := r.Lookup("c1")
	if a.State != StateIdle { t.Fatalf("re-register should reset to idle, got %s", a.State) }
}
