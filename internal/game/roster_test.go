package game

import (
	"fmt"
	"testing"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// TestRosterAddRemove verifies membership bookkeeping
func TestRosterAddRemove(t *testing.T) {
	r := rosterOf(t, DefaultRoster())

	if r.Len() != 6 {
		t.Fatalf("Expected 6 agents, got %d", r.Len())
	}
	if err := r.Add(NewAgent("red-1", team.Red, vec.New(-4, 0, 0), 1.5)); err == nil {
		t.Error("Expected duplicate name to be rejected")
	}
	if err := r.Add(NewAgent("", team.Red, vec.New(-4, 0, 0), 1.5)); err == nil {
		t.Error("Expected empty name to be rejected")
	}

	a, ok := r.Remove("blue-2")
	if !ok || a.Name != "blue-2" {
		t.Fatalf("Remove returned %v, %v", a, ok)
	}
	if r.Contains(a) || r.Find("blue-2") != nil {
		t.Error("Removed agent still reachable")
	}
	if _, ok := r.Remove("blue-2"); ok {
		t.Error("Expected second removal to fail")
	}
	if n := len(r.TeamMembers(team.Blue)); n != 2 {
		t.Errorf("Expected 2 Blue agents, got %d", n)
	}
}

// TestRosterFull verifies the size cap
func TestRosterFull(t *testing.T) {
	r := NewRoster()
	for i := 0; i < MaxRosterSize; i++ {
		if err := r.Add(NewAgent(fmt.Sprintf("a%d", i), team.Red, vec.New(-3, 0, 0), 1.5)); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	if err := r.Add(NewAgent("extra", team.Red, vec.New(-3, 0, 0), 1.5)); err == nil {
		t.Error("Expected a full roster to reject agents")
	}
}

// TestRosterQueries verifies candidates, average catch height and nearest lookup
func TestRosterQueries(t *testing.T) {
	r := NewRoster()
	if h := r.AverageCatchHeight(1.5); h != 1.5 {
		t.Errorf("Expected fallback 1.5 for an empty roster, got %v", h)
	}

	r = rosterOf(t, DefaultRoster())
	op := DefaultOperatorConfig()
	r.SetOperator(NewOperator(op))

	source := r.Find("red-1")
	cands := r.Candidates(source)
	if len(cands) != 6 {
		t.Fatalf("Expected 5 agents plus the operator, got %d", len(cands))
	}
	for _, c := range cands {
		if c.Agent == source {
			t.Error("Candidates include the source")
		}
	}
	if h := r.AverageCatchHeight(0); h != 1.5 {
		t.Errorf("Expected average catch height 1.5, got %v", h)
	}
}
