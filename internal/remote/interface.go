// Package remote defines the boundary to the remote relational store
// and provides its Postgres and in-memory implementations.
//
// Every operation is scoped to a single user's rows; the Postgres
// implementation enforces the user_id filter in SQL exactly as the
// original backend's row-level security did. All mutating operations
// are idempotent: inserts are upserts keyed on the client-generated
// UUID, deletes of absent rows succeed, and goal progress is an
// additive delta. Idempotency is what makes overlapping push cycles
// safe without a lock around them.
package remote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// Store is the remote CRUD boundary consumed by the sync engine, the
// recurring materializer and the budget checker.
type Store interface {
	// Ping verifies the remote store is reachable. The connectivity
	// monitor uses it as its probe.
	Ping(ctx context.Context) error

	// Categories returns the full category set. Categories are shared
	// reference data and are not scoped by user.
	Categories(ctx context.Context) ([]*schema.Category, error)

	// RecentTransactions returns the user's most recent transactions
	// ordered by date descending, capped at limit.
	RecentTransactions(ctx context.Context, userID string, limit int) ([]*schema.Transaction, error)

	// UpsertTransaction inserts the transaction or, if a row with the
	// same id already exists, updates it. Issuing the same insert twice
	// must not error or duplicate.
	UpsertTransaction(ctx context.Context, tx *schema.Transaction) error

	// DeleteTransaction removes the user's transaction. Deleting an
	// absent row is not an error.
	DeleteTransaction(ctx context.Context, userID, id string) error

	// Goals returns all of the user's savings goals.
	Goals(ctx context.Context, userID string) ([]*schema.Goal, error)

	// UpsertGoal inserts or updates a goal by id.
	UpsertGoal(ctx context.Context, g *schema.Goal) error

	// AddGoalProgress applies an additive contribution to the goal's
	// current_amount. The server computes current_amount + delta; the
	// client never sends an absolute value.
	AddGoalProgress(ctx context.Context, goalID string, delta decimal.Decimal) error

	// DeleteGoal removes the user's goal. Idempotent.
	DeleteGoal(ctx context.Context, userID, id string) error

	// DueSchedules returns the user's active recurring schedules whose
	// next_execution_date is on or before today.
	DueSchedules(ctx context.Context, userID string, today time.Time) ([]*schema.Schedule, error)

	// InsertSchedule creates a recurring schedule with
	// next_execution_date = start_date.
	InsertSchedule(ctx context.Context, s *schema.Schedule) error

	// AdvanceSchedule persists the schedule's new cursor after
	// materialization. next never regresses.
	AdvanceSchedule(ctx context.Context, scheduleID string, next, executedAt time.Time) error

	// Budgets returns the user's budget limits.
	Budgets(ctx context.Context, userID string) ([]*schema.Budget, error)

	// SetBudget upserts a budget on its (user, category, period) key.
	SetBudget(ctx context.Context, b *schema.Budget) error
}
