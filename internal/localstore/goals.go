package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// UpsertGoal inserts or updates a goal by id.
func (db *DB) UpsertGoal(ctx context.Context, g *schema.Goal) error {
	return upsertGoal(ctx, db.conn, g)
}

// UpsertGoalIn runs the upsert inside an existing SQL transaction.
func (db *DB) UpsertGoalIn(ctx context.Context, sqlTx *sql.Tx, g *schema.Goal) error {
	return upsertGoal(ctx, sqlTx, g)
}

func upsertGoal(ctx context.Context, e execer, g *schema.Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}

	query := `
	INSERT INTO goals (
		id, user_id, name, target_amount, current_amount, deadline, color, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		name = excluded.name,
		target_amount = excluded.target_amount,
		current_amount = excluded.current_amount,
		deadline = excluded.deadline,
		color = excluded.color,
		sync_status = excluded.sync_status
	`

	_, err := e.ExecContext(ctx, query,
		g.ID,
		g.UserID,
		g.Name,
		g.TargetAmount.String(),
		g.CurrentAmount.String(),
		nullDate(g.Deadline),
		g.Color,
		string(g.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", g.ID, err)
	}
	return nil
}

// GetGoal returns the goal with the given id, or ErrNotFound.
func (db *DB) GetGoal(ctx context.Context, id string) (*schema.Goal, error) {
	return getGoal(ctx, db.conn, id)
}

// querier lets the same lookup run on the pool or inside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getGoal(ctx context.Context, q querier, id string) (*schema.Goal, error) {
	query := `
	SELECT id, user_id, name, target_amount, current_amount, deadline, color, sync_status
	FROM goals WHERE id = ?
	`
	g, err := scanGoal(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get goal %s: %w", id, err)
	}
	return g, nil
}

// ListGoals returns all goals for the user ordered by name.
func (db *DB) ListGoals(ctx context.Context, userID string) ([]*schema.Goal, error) {
	query := `
	SELECT id, user_id, name, target_amount, current_amount, deadline, color, sync_status
	FROM goals WHERE user_id = ? ORDER BY name
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var out []*schema.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddGoalProgress applies a contribution delta to the cached
// current_amount. The mutation is additive, mirroring the remote
// update, so contributions applied locally before remote confirmation
// still sum correctly.
func (db *DB) AddGoalProgress(ctx context.Context, id string, delta decimal.Decimal) error {
	return addGoalProgress(ctx, db.conn, id, delta)
}

// AddGoalProgressIn runs the additive update inside an existing SQL
// transaction, so a contribution and its outbox entry commit together.
func (db *DB) AddGoalProgressIn(ctx context.Context, sqlTx *sql.Tx, id string, delta decimal.Decimal) error {
	return addGoalProgress(ctx, sqlTx, id, delta)
}

// queryExecer combines querier and execer for read-modify-write
// helpers.
type queryExecer interface {
	querier
	execer
}

func addGoalProgress(ctx context.Context, c queryExecer, id string, delta decimal.Decimal) error {
	g, err := getGoal(ctx, c, id)
	if err != nil {
		return err
	}
	res, err := c.ExecContext(ctx,
		`UPDATE goals SET current_amount = ? WHERE id = ?`,
		g.CurrentAmount.Add(delta).String(), id)
	if err != nil {
		return fmt.Errorf("failed to add goal progress %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGoalStatus flips the sync_status of a single goal.
func (db *DB) SetGoalStatus(ctx context.Context, id string, status schema.SyncStatus) error {
	return setGoalStatus(ctx, db.conn, id, status)
}

// SetGoalStatusIn runs the status flip inside an existing SQL
// transaction.
func (db *DB) SetGoalStatusIn(ctx context.Context, sqlTx *sql.Tx, id string, status schema.SyncStatus) error {
	return setGoalStatus(ctx, sqlTx, id, status)
}

func setGoalStatus(ctx context.Context, e execer, id string, status schema.SyncStatus) error {
	res, err := e.ExecContext(ctx,
		`UPDATE goals SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update goal status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGoal removes a goal row. Idempotent.
func (db *DB) DeleteGoal(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete goal %s: %w", id, err)
	}
	return nil
}

func scanGoal(r rowScanner) (*schema.Goal, error) {
	var (
		g        schema.Goal
		target   string
		current  string
		deadline sql.NullString
		status   string
	)
	if err := r.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &deadline, &g.Color, &status); err != nil {
		return nil, err
	}

	var err error
	if g.TargetAmount, err = scanDecimal(target); err != nil {
		return nil, fmt.Errorf("bad target_amount: %w", err)
	}
	if g.CurrentAmount, err = scanDecimal(current); err != nil {
		return nil, fmt.Errorf("bad current_amount: %w", err)
	}
	if deadline.Valid {
		d, err := time.Parse(schema.DateOnly, deadline.String)
		if err != nil {
			return nil, fmt.Errorf("bad deadline: %w", err)
		}
		g.Deadline = &d
	}
	g.SyncStatus = schema.SyncStatus(status)
	return &g, nil
}
