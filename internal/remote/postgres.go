package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// Postgres implements Store against the backend database via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool for the given DSN and verifies it.
// The caller MUST call Close() when done.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping remote store: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping implements Store.Ping.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Categories implements Store.Categories.
func (p *Postgres) Categories(ctx context.Context) ([]*schema.Category, error) {
	query := `SELECT id, name, type, COALESCE(color, ''), COALESCE(icon, '') FROM categories ORDER BY name`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	defer rows.Close()

	var out []*schema.Category
	for rows.Next() {
		var c schema.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Type = schema.TxType(typ)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// RecentTransactions implements Store.RecentTransactions.
func (p *Postgres) RecentTransactions(ctx context.Context, userID string, limit int) ([]*schema.Transaction, error) {
	query := `
		SELECT id, user_id, category_id, amount, COALESCE(description, ''),
		       date, type, receipt_url
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2`
	rows, err := p.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer rows.Close()

	var out []*schema.Transaction
	for rows.Next() {
		var (
			tx         schema.Transaction
			categoryID sql.NullString
			receiptURL sql.NullString
			typ        string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &categoryID, &tx.Amount,
			&tx.Description, &tx.Date, &typ, &receiptURL); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.CategoryID = categoryID.String
		tx.ReceiptURL = receiptURL.String
		tx.Type = schema.TxType(typ)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

// UpsertTransaction implements Store.UpsertTransaction. The insert is
// keyed on the client-generated id, so a retried push of the same entry
// updates the existing row instead of raising a duplicate-key error.
func (p *Postgres) UpsertTransaction(ctx context.Context, tx *schema.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, category_id, amount, description, date, type, receipt_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			date = EXCLUDED.date,
			type = EXCLUDED.type,
			receipt_url = EXCLUDED.receipt_url
		WHERE transactions.user_id = EXCLUDED.user_id`
	_, err := p.pool.Exec(ctx, query,
		tx.ID, tx.UserID, pgNull(tx.CategoryID), tx.Amount, tx.Description,
		tx.Date.Format(schema.DateOnly), string(tx.Type), pgNull(tx.ReceiptURL))
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// DeleteTransaction implements Store.DeleteTransaction.
func (p *Postgres) DeleteTransaction(ctx context.Context, userID, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// Goals implements Store.Goals.
func (p *Postgres) Goals(ctx context.Context, userID string) ([]*schema.Goal, error) {
	query := `
		SELECT id, user_id, name, target_amount, current_amount, deadline, COALESCE(color, '')
		FROM savings_goals
		WHERE user_id = $1
		ORDER BY name`
	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goals: %w", err)
	}
	defer rows.Close()

	var out []*schema.Goal
	for rows.Next() {
		var g schema.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount,
			&g.CurrentAmount, &g.Deadline, &g.Color); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// UpsertGoal implements Store.UpsertGoal. current_amount is only set on
// first insert; later changes flow through AddGoalProgress.
func (p *Postgres) UpsertGoal(ctx context.Context, g *schema.Goal) error {
	query := `
		INSERT INTO savings_goals (id, user_id, name, target_amount, current_amount, deadline, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			target_amount = EXCLUDED.target_amount,
			deadline = EXCLUDED.deadline,
			color = EXCLUDED.color
		WHERE savings_goals.user_id = EXCLUDED.user_id`
	var deadline any
	if g.Deadline != nil {
		deadline = g.Deadline.Format(schema.DateOnly)
	}
	_, err := p.pool.Exec(ctx, query,
		g.ID, g.UserID, g.Name, g.TargetAmount, g.CurrentAmount, deadline, g.Color)
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", g.ID, err)
	}
	return nil
}

// AddGoalProgress implements Store.AddGoalProgress with a server-side
// additive update.
func (p *Postgres) AddGoalProgress(ctx context.Context, goalID string, delta decimal.Decimal) error {
	query := `
		UPDATE savings_goals
		SET current_amount = current_amount + $1
		WHERE id = $2
		RETURNING current_amount`
	var current decimal.Decimal
	err := p.pool.QueryRow(ctx, query, delta, goalID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("goal %s: %w", goalID, ErrPermanent)
		}
		return fmt.Errorf("failed to add progress to goal %s: %w", goalID, err)
	}
	return nil
}

// DeleteGoal implements Store.DeleteGoal.
func (p *Postgres) DeleteGoal(ctx context.Context, userID, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM savings_goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal %s: %w", id, err)
	}
	return nil
}

// DueSchedules implements Store.DueSchedules.
func (p *Postgres) DueSchedules(ctx context.Context, userID string, today time.Time) ([]*schema.Schedule, error) {
	query := `
		SELECT id, user_id, category_id, amount, COALESCE(description, ''),
		       type, frequency, start_date, next_execution_date, last_executed_at, is_active
		FROM recurring_transactions
		WHERE user_id = $1 AND is_active AND next_execution_date <= $2
		ORDER BY next_execution_date`
	rows, err := p.pool.Query(ctx, query, userID, today.Format(schema.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due schedules: %w", err)
	}
	defer rows.Close()

	var out []*schema.Schedule
	for rows.Next() {
		var (
			s          schema.Schedule
			categoryID sql.NullString
			typ        string
			freq       string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &categoryID, &s.Amount, &s.Description,
			&typ, &freq, &s.StartDate, &s.NextExecutionDate, &s.LastExecutedAt, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		s.CategoryID = categoryID.String
		s.Type = schema.TxType(typ)
		s.Frequency = schema.Frequency(freq)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// InsertSchedule implements Store.InsertSchedule.
func (p *Postgres) InsertSchedule(ctx context.Context, s *schema.Schedule) error {
	query := `
		INSERT INTO recurring_transactions
			(id, user_id, category_id, amount, description, type, frequency,
			 start_date, next_execution_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	_, err := p.pool.Exec(ctx, query,
		s.ID, s.UserID, pgNull(s.CategoryID), s.Amount, s.Description,
		string(s.Type), string(s.Frequency),
		s.StartDate.Format(schema.DateOnly),
		s.NextExecutionDate.Format(schema.DateOnly),
		s.IsActive)
	if err != nil {
		return fmt.Errorf("failed to insert schedule %s: %w", s.ID, err)
	}
	return nil
}

// AdvanceSchedule implements Store.AdvanceSchedule. The cursor never
// regresses: the guard keeps an out-of-order update from rewinding
// next_execution_date.
func (p *Postgres) AdvanceSchedule(ctx context.Context, scheduleID string, next, executedAt time.Time) error {
	query := `
		UPDATE recurring_transactions
		SET next_execution_date = $1, last_executed_at = $2
		WHERE id = $3 AND next_execution_date <= $1`
	_, err := p.pool.Exec(ctx, query,
		next.Format(schema.DateOnly), executedAt, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to advance schedule %s: %w", scheduleID, err)
	}
	return nil
}

// Budgets implements Store.Budgets.
func (p *Postgres) Budgets(ctx context.Context, userID string) ([]*schema.Budget, error) {
	query := `
		SELECT id, user_id, category_id, limit_amount, period
		FROM budgets
		WHERE user_id = $1`
	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch budgets: %w", err)
	}
	defer rows.Close()

	var out []*schema.Budget
	for rows.Next() {
		var b schema.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.LimitAmount, &b.Period); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// SetBudget implements Store.SetBudget with the original backend's
// upsert key (user, category, period).
func (p *Postgres) SetBudget(ctx context.Context, b *schema.Budget) error {
	query := `
		INSERT INTO budgets (id, user_id, category_id, limit_amount, period)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, category_id, period) DO UPDATE SET
			limit_amount = EXCLUDED.limit_amount`
	_, err := p.pool.Exec(ctx, query, b.ID, b.UserID, b.CategoryID, b.LimitAmount, b.Period)
	if err != nil {
		return fmt.Errorf("failed to set budget for category %s: %w", b.CategoryID, err)
	}
	return nil
}

func pgNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
