// Package outbox implements the pending-mutation queue between the
// local store and the remote store.
//
// The outbox is an append-only, FIFO log of remote mutations that have
// not been acknowledged yet. Ordering is global across tables by
// enqueue time: an insert of a row is always drained before a later
// update or delete addressing the same id, which is the only causal
// ordering the sync engine relies on.
//
// Entries are the sole source of truth for work owed to the remote
// store. An entry is removed only after its remote operation succeeds;
// on failure it stays in place and is retried on the next push cycle.
// Entries that fail permanently (authorization, constraint violations)
// or exhaust their attempt budget are quarantined with a failed flag
// instead of retrying forever, and surfaced for manual resolution.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the remote operation an entry describes.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entry is one queued mutation against a remote table.
type Entry struct {
	ID         int64
	Table      string
	Action     Action
	Payload    json.RawMessage
	EnqueuedAt time.Time
	Attempts   int
	LastError  string
	Failed     bool
}

// Deletion is the payload of an ActionDelete entry.
type Deletion struct {
	ID string `json:"id"`
}

// Contribution is the payload of a goal ActionUpdate entry. The client
// only ever sends additive deltas for current_amount, never absolute
// values, so contributions synced in any order still sum correctly.
type Contribution struct {
	GoalID string          `json:"goal_id"`
	Delta  decimal.Decimal `json:"delta"`
}

// Queue is the outbox over a SQLite handle. It shares the local store's
// database file so an optimistic entity write and its queue entry can
// commit in one transaction.
type Queue struct {
	conn *sql.DB
}

// New wraps an existing database connection (localstore.RawDB).
func New(conn *sql.DB) *Queue {
	return &Queue{conn: conn}
}

// InitSchema creates the outbox table if it doesn't exist. Idempotent.
func (q *Queue) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tbl TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_order ON outbox(enqueued_at, id);
	CREATE INDEX IF NOT EXISTS idx_outbox_failed ON outbox(failed);
	`
	if _, err := q.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize outbox schema: %w", err)
	}
	return nil
}

// execer lets an enqueue run on the pool or inside a caller-owned
// transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Enqueue appends a mutation to the queue and returns its entry id.
// The payload is serialized to JSON.
func (q *Queue) Enqueue(ctx context.Context, table string, action Action, payload any) (int64, error) {
	return enqueue(ctx, q.conn, table, action, payload)
}

// EnqueueTx appends a mutation inside an existing SQL transaction, so
// the optimistic local-store write and its queue entry commit together.
func (q *Queue) EnqueueTx(ctx context.Context, sqlTx *sql.Tx, table string, action Action, payload any) (int64, error) {
	return enqueue(ctx, sqlTx, table, action, payload)
}

func enqueue(ctx context.Context, e execer, table string, action Action, payload any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	res, err := e.ExecContext(ctx,
		`INSERT INTO outbox (tbl, action, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		table, string(action), string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s: %w", action, table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	return id, nil
}

// PeekAll returns a snapshot of all unfailed entries in FIFO order.
// The queue is not mutated; entries stay until Remove.
func (q *Queue) PeekAll(ctx context.Context) ([]*Entry, error) {
	return q.list(ctx, false)
}

// Failed returns the quarantined entries in FIFO order.
func (q *Queue) Failed(ctx context.Context) ([]*Entry, error) {
	return q.list(ctx, true)
}

func (q *Queue) list(ctx context.Context, failed bool) ([]*Entry, error) {
	query := `
	SELECT id, tbl, action, payload, enqueued_at, attempts, last_error, failed
	FROM outbox WHERE failed = ? ORDER BY enqueued_at, id
	`
	rows, err := q.conn.QueryContext(ctx, query, boolInt(failed))
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e          Entry
			payload    string
			enqueuedAt string
			failedInt  int
		)
		if err := rows.Scan(&e.ID, &e.Table, (*string)(&e.Action), &payload,
			&enqueuedAt, &e.Attempts, &e.LastError, &failedInt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		e.Failed = failedInt != 0
		if e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueuedAt); err != nil {
			return nil, fmt.Errorf("bad enqueued_at on entry %d: %w", e.ID, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Remove deletes an entry after its remote operation was acknowledged.
// Idempotent.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove outbox entry %d: %w", id, err)
	}
	return nil
}

// RecordFailure bumps the attempt count and stores the error. The entry
// is quarantined when the error is permanent or the attempt budget
// (maxAttempts, 0 = unlimited) is exhausted.
func (q *Queue) RecordFailure(ctx context.Context, id int64, cause error, permanent bool, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	query := `
	UPDATE outbox SET
		attempts = attempts + 1,
		last_error = ?,
		failed = CASE WHEN ? OR (? > 0 AND attempts + 1 >= ?) THEN 1 ELSE failed END
	WHERE id = ?
	`
	_, err := q.conn.ExecContext(ctx, query, msg, boolInt(permanent), maxAttempts, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("failed to record failure on entry %d: %w", id, err)
	}
	return nil
}

// Retry re-arms a quarantined entry for the next push cycle.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	res, err := q.conn.ExecContext(ctx,
		`UPDATE outbox SET failed = 0, attempts = 0, last_error = '' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to retry outbox entry %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox entry %d not found", id)
	}
	return nil
}

// Len reports the number of unfailed entries still owed to the remote
// store.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var count int
	if err := q.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE failed = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return count, nil
}

// HasPendingFor reports whether any unfailed entry addresses the given
// table. Pull uses this to refuse a wholesale category replace while a
// category edit is still owed to the remote store.
func (q *Queue) HasPendingFor(ctx context.Context, table string) (bool, error) {
	var count int
	err := q.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE failed = 0 AND tbl = ?`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect outbox: %w", err)
	}
	return count > 0, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
