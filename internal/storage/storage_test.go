package storage

import (
	"context"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := newStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestActionLogs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	logs := []ActionLog{
		{GuildID: "g1", UserID: "u1", Level: "INFO", Action: "jail", Effect: "user", Op: "ban", Target: "u2", Status: "applied", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Level: "WARN", Action: "jail", Effect: "user", Op: "kick", Target: "u2", Status: "rejected", Details: "missing permissions", CreatedAt: now},
		{GuildID: "g2", Level: "INFO", Status: "applied", CreatedAt: now},
		{GuildID: "g1", Level: "INFO", Status: "applied", CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, log := range logs {
		if err := store.AddActionLog(ctx, log); err != nil {
			t.Fatalf("add log: %v", err)
		}
	}

	got, err := store.ListActionLogs(ctx, "g1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(got))
	}
	if got[0].Op != "kick" || got[0].Details != "missing permissions" {
		t.Fatalf("expected newest first, got %+v", got[0])
	}

	removed, err := store.CleanupActionLogs(ctx, 1)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestWarnings(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	empty, err := store.GetWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get warnings: %v", err)
	}
	if empty.Count != 0 {
		t.Fatalf("expected no warnings, got %d", empty.Count)
	}

	if _, err := store.AddWarning(ctx, "g1", "u1", "spam"); err != nil {
		t.Fatalf("add warning: %v", err)
	}
	count, err := store.AddWarning(ctx, "g1", "u1", "insults")
	if err != nil {
		t.Fatalf("add warning: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 warnings, got %d", count)
	}

	count, err = store.RemoveWarning(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("remove warning: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 warning, got %d", count)
	}

	got, err := store.GetWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get warnings: %v", err)
	}
	if got.Count != 1 || got.LastReason != "insults" {
		t.Fatalf("unexpected warnings %+v", got)
	}

	for i := 0; i < 3; i++ {
		if count, err = store.RemoveWarning(ctx, "g1", "u1"); err != nil {
			t.Fatalf("remove warning: %v", err)
		}
	}
	if count != 0 {
		t.Fatalf("expected count floored at 0, got %d", count)
	}
}
