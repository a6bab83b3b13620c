// Package audit journals effect outcomes to storage and the log.
package audit

import (
	"context"
	"time"

	"configbot/internal/result"
	"configbot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Entry describes one outcome.
type Entry struct {
	GuildID string
	UserID  string
	Action  string
	Effect  string
	Op      string
	Target  string
	Status  result.Status
	Details string
}

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

// LevelFor maps an outcome status to a journal level. A rejected effect
// means the platform refused something the configuration asked for.
func LevelFor(status result.Status) string {
	switch status {
	case result.StatusApplied:
		return LevelInfo
	case result.StatusRejected:
		return LevelCrit
	default:
		return LevelWarn
	}
}

func (l *Logger) Record(ctx context.Context, e Entry) {
	entry := storage.ActionLog{
		GuildID:   e.GuildID,
		UserID:    e.UserID,
		Level:     LevelFor(e.Status),
		Action:    e.Action,
		Effect:    e.Effect,
		Op:        e.Op,
		Target:    e.Target,
		Status:    string(e.Status),
		Details:   e.Details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddActionLog(ctx, entry); err != nil {
			l.logger.Warn("journal write failed", zap.Error(err))
		}
	}
	l.logger.Info("audit",
		zap.String("level", entry.Level),
		zap.String("guild_id", e.GuildID),
		zap.String("user_id", e.UserID),
		zap.String("action", e.Action),
		zap.String("effect", e.Effect),
		zap.String("op", e.Op),
		zap.String("target", e.Target),
		zap.String("status", entry.Status),
		zap.String("details", e.Details),
	)
}
