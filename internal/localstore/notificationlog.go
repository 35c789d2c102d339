package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// MarkNotified records a notification key in the dedup log. It returns
// true if the key was newly inserted, false if an entry for the same
// key already existed. The key's natural uniqueness (kind+subject+day)
// is the sole dedup signal; entries are never deleted by this
// subsystem.
func (db *DB) MarkNotified(ctx context.Context, key, kind string, at time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO notification_log (key, kind, logged_at) VALUES (?, ?, ?)`,
		key, kind, at.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to record notification %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record notification %s: %w", key, err)
	}
	return n > 0, nil
}

// WasNotified reports whether a notification with the given key has
// already been logged.
func (db *DB) WasNotified(ctx context.Context, key string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_log WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification %s: %w", key, err)
	}
	return count > 0, nil
}

// NotificationKey builds the deterministic dedup key for a notification
// kind and subject on a calendar day.
func NotificationKey(kind, subject string, day time.Time) string {
	return kind + ":" + subject + ":" + day.Format(schema.DateOnly)
}
