package storage

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
)

// UserWarnings is the warning history of one member.
type UserWarnings struct {
	GuildID    string
	UserID     string
	Count      int
	LastAt     time.Time
	LastReason string
}

func (s *Store) GetWarnings(ctx context.Context, guildID, userID string) (UserWarnings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, count_total, last_at, last_reason
		FROM user_warnings
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var w UserWarnings
	var lastAt int64
	err := row.Scan(&w.GuildID, &w.UserID, &w.Count, &lastAt, &w.LastReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserWarnings{GuildID: guildID, UserID: userID}, nil
		}
		return UserWarnings{}, err
	}
	w.LastAt = time.Unix(lastAt, 0)
	return w, nil
}

// AddWarning increments the member's warning count and returns the new total.
func (s *Store) AddWarning(ctx context.Context, guildID, userID, reason string) (int, error) {
	return s.adjustWarnings(ctx, guildID, userID, reason, 1)
}

// RemoveWarning decrements the member's warning count, never below zero.
func (s *Store) RemoveWarning(ctx context.Context, guildID, userID string) (int, error) {
	return s.adjustWarnings(ctx, guildID, userID, "", -1)
}

func (s *Store) adjustWarnings(ctx context.Context, guildID, userID, reason string, delta int) (count int, err error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lastReason string
	row := tx.QueryRowContext(ctx, `
		SELECT count_total, last_reason
		FROM user_warnings
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	if scanErr := row.Scan(&count, &lastReason); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return 0, scanErr
	}

	count = max(count+delta, 0)
	if reason != "" {
		lastReason = reason
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_warnings (guild_id, user_id, count_total, last_at, last_reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			last_reason = excluded.last_reason
	`, guildID, userID, count, now.Unix(), lastReason)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
