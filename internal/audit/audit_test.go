package audit

import (
	"context"
	"testing"
	"time"

	"configbot/internal/result"
	"configbot/internal/storage"

	"go.uber.org/zap"
)

func TestRecordJournalsWithLevels(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := NewLogger(store, zap.NewNop())

	ctx := context.Background()
	logger.Record(ctx, Entry{GuildID: "g1", UserID: "u1", Action: "jail", Effect: "user", Op: "ban", Target: "u2", Status: result.StatusApplied})
	logger.Record(ctx, Entry{GuildID: "g1", Action: "jail", Effect: "user", Op: "kick", Status: result.StatusRejected, Details: "forbidden"})

	logs, err := store.ListActionLogs(ctx, "g1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	levels := map[string]string{}
	for _, log := range logs {
		levels[log.Op] = log.Level
	}
	if levels["ban"] != LevelInfo || levels["kick"] != LevelCrit {
		t.Fatalf("unexpected levels %v", levels)
	}
}

func TestRecordWithoutStore(t *testing.T) {
	logger := NewLogger(nil, zap.NewNop())
	logger.Record(context.Background(), Entry{GuildID: "g1", Status: result.StatusNotConfigured})
	if got := LevelFor(result.StatusNotConfigured); got != LevelWarn {
		t.Fatalf("expected WARN, got %s", got)
	}
}
