package warning

import (
	"testing"

	"configbot/internal/store"
)

func levels() []store.WarningLevel {
	return []store.WarningLevel{
		{Roles: []store.ID{"1"}},
		{Roles: []store.ID{"1", "2"}},
		{Roles: []store.ID{"3"}},
	}
}

func TestLevelForIgnoresOrder(t *testing.T) {
	if got := LevelFor(levels(), []string{"2", "1"}); got != 2 {
		t.Fatalf("expected level 2, got %d", got)
	}
	if got := LevelFor(levels(), []string{"9", "1"}); got != 1 {
		t.Fatalf("expected level 1, got %d", got)
	}
	if got := LevelFor(levels(), nil); got != 0 {
		t.Fatalf("expected no level, got %d", got)
	}
	if got := LevelFor(levels(), []string{"3"}); got != 3 {
		t.Fatalf("expected level 3, got %d", got)
	}
}

func TestRolesFor(t *testing.T) {
	if got := RolesFor(levels(), 2); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected roles %v", got)
	}
	if RolesFor(levels(), 0) != nil || RolesFor(levels(), 4) != nil {
		t.Fatalf("expected nil out of range")
	}
}

func TestNext(t *testing.T) {
	tr, ok := Next(levels(), []string{"1"})
	if !ok || tr.From != 1 || tr.To != 2 {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if len(tr.Add) != 1 || tr.Add[0] != "2" || len(tr.Remove) != 0 {
		t.Fatalf("unexpected role changes %+v", tr)
	}

	tr, ok = Next(levels(), []string{"1", "2"})
	if !ok || len(tr.Add) != 1 || tr.Add[0] != "3" || len(tr.Remove) != 2 {
		t.Fatalf("unexpected transition to 3 %+v", tr)
	}

	if _, ok := Next(levels(), []string{"3"}); ok {
		t.Fatalf("expected no level above the top")
	}
}

func TestPrevious(t *testing.T) {
	tr, ok := Previous(levels(), []string{"2", "1"})
	if !ok || tr.To != 1 || len(tr.Remove) != 1 || tr.Remove[0] != "2" || len(tr.Add) != 0 {
		t.Fatalf("unexpected transition %+v", tr)
	}
	tr, ok = Previous(levels(), []string{"1"})
	if !ok || tr.To != 0 || len(tr.Remove) != 1 || tr.Remove[0] != "1" {
		t.Fatalf("unexpected transition to 0 %+v", tr)
	}
	if _, ok := Previous(levels(), nil); ok {
		t.Fatalf("expected nothing below level 0")
	}
}
