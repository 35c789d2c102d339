// Package client exposes the mutation and lifecycle API the UI layer
// calls.
//
// The UI renders from the local store and never talks to the remote
// store directly. Every mutation here follows the same pattern: validate,
// then in one SQLite transaction write optimistically to the local store
// and enqueue the remote intent in the outbox (the store and the queue
// never disagree), then opportunistically push if connected. All methods
// return errors; nothing panics across this boundary.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/localstore"
	"github.com/pocketledger/pocketledger/internal/netmon"
	"github.com/pocketledger/pocketledger/internal/notify"
	"github.com/pocketledger/pocketledger/internal/outbox"
	"github.com/pocketledger/pocketledger/internal/recurring"
	"github.com/pocketledger/pocketledger/internal/remote"
	"github.com/pocketledger/pocketledger/internal/schema"
	syncengine "github.com/pocketledger/pocketledger/internal/sync"
)

// ErrOffline is returned by operations that require connectivity
// (recurring schedules and budgets are remote-resident).
var ErrOffline = errors.New("client: offline")

// Client wires the local store, outbox, sync engine, materializer and
// alerter behind the API the UI consumes.
type Client struct {
	local        *localstore.DB
	queue        *outbox.Queue
	store        remote.Store
	syncer       syncengine.Syncer
	materializer *recurring.Materializer
	alerter      *notify.Alerter
	monitor      netmon.Monitor
	userID       string
	logger       *log.Logger
	now          func() time.Time
}

// Options configures a Client.
type Options struct {
	Local        *localstore.DB
	Queue        *outbox.Queue
	Store        remote.Store
	Syncer       syncengine.Syncer
	Materializer *recurring.Materializer
	Alerter      *notify.Alerter
	Monitor      netmon.Monitor
	UserID       string
	Logger       *log.Logger
}

// New creates a Client from explicitly constructed collaborators; the
// caller owns their lifetimes.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[client] ", log.LstdFlags)
	}
	return &Client{
		local:        opts.Local,
		queue:        opts.Queue,
		store:        opts.Store,
		syncer:       opts.Syncer,
		materializer: opts.Materializer,
		alerter:      opts.Alerter,
		monitor:      opts.Monitor,
		userID:       opts.UserID,
		logger:       opts.Logger,
		now:          time.Now,
	}
}

// SetClock overrides the client's notion of now, for tests.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) connected() bool {
	return c.monitor == nil || c.monitor.Connected()
}

// pushIfConnected drains the outbox opportunistically after a local
// mutation. Push failures are background noise by design: the entry
// stays queued and the caller's mutation already succeeded locally.
func (c *Client) pushIfConnected(ctx context.Context) {
	if !c.connected() {
		return
	}
	if err := c.syncer.Push(ctx); err != nil && !errors.Is(err, syncengine.ErrOffline) {
		c.logger.Printf("WARNING: background push failed: %v", err)
	}
}

// TransactionInput is the UI's mutation intent for a new transaction.
type TransactionInput struct {
	CategoryID  string
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Type        schema.TxType
	ReceiptURL  string
}

// AddTransaction records a transaction optimistically and queues its
// remote insert. Works fully offline.
func (c *Client) AddTransaction(ctx context.Context, in TransactionInput) (*schema.Transaction, error) {
	date := in.Date
	if date.IsZero() {
		date = schema.Day(c.now())
	}
	tx := &schema.Transaction{
		ID:          schema.NewID(),
		UserID:      c.userID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        schema.Day(date),
		Type:        in.Type,
		ReceiptURL:  in.ReceiptURL,
		SyncStatus:  schema.StatusPending,
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	sqlTx, err := c.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := c.local.UpsertTransactionIn(ctx, sqlTx, tx); err != nil {
		return nil, err
	}
	if _, err := c.queue.EnqueueTx(ctx, sqlTx, schema.TableTransactions, outbox.ActionInsert, tx); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.pushIfConnected(ctx)
	return tx, nil
}

// DeleteTransaction soft-deletes locally and queues the remote delete.
// The row disappears from the local store once the delete is acked.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	sqlTx, err := c.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := c.local.SetTransactionStatusIn(ctx, sqlTx, id, schema.StatusDeleted); err != nil {
		return err
	}
	if _, err := c.queue.EnqueueTx(ctx, sqlTx, schema.TableTransactions, outbox.ActionDelete, outbox.Deletion{ID: id}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	c.pushIfConnected(ctx)
	return nil
}

// GoalInput is the UI's mutation intent for a new savings goal.
type GoalInput struct {
	Name         string
	TargetAmount decimal.Decimal
	Deadline     *time.Time
	Color        string
}

// AddGoal records a goal optimistically and queues its remote insert.
func (c *Client) AddGoal(ctx context.Context, in GoalInput) (*schema.Goal, error) {
	g := &schema.Goal{
		ID:            schema.NewID(),
		UserID:        c.userID,
		Name:          in.Name,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      in.Deadline,
		Color:         in.Color,
		SyncStatus:    schema.StatusPending,
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid goal: %w", err)
	}

	sqlTx, err := c.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := c.local.UpsertGoalIn(ctx, sqlTx, g); err != nil {
		return nil, err
	}
	if _, err := c.queue.EnqueueTx(ctx, sqlTx, schema.TableGoals, outbox.ActionInsert, g); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit goal: %w", err)
	}

	c.pushIfConnected(ctx)
	return g, nil
}

// ContributeToGoal applies an additive contribution locally and queues
// the delta. The remote side computes current_amount + delta, so two
// offline contributions sum in either sync order instead of the later
// one overwriting the earlier.
func (c *Client) ContributeToGoal(ctx context.Context, goalID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("contribution must be positive (got %s)", amount)
	}

	sqlTx, err := c.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := c.local.AddGoalProgressIn(ctx, sqlTx, goalID, amount); err != nil {
		return err
	}
	if err := c.local.SetGoalStatusIn(ctx, sqlTx, goalID, schema.StatusPending); err != nil {
		return err
	}
	if _, err := c.queue.EnqueueTx(ctx, sqlTx, schema.TableGoals, outbox.ActionUpdate,
		outbox.Contribution{GoalID: goalID, Delta: amount}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit contribution: %w", err)
	}

	c.pushIfConnected(ctx)
	return nil
}

// DeleteGoal soft-deletes locally and queues the remote delete.
func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	sqlTx, err := c.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := c.local.SetGoalStatusIn(ctx, sqlTx, id, schema.StatusDeleted); err != nil {
		return err
	}
	if _, err := c.queue.EnqueueTx(ctx, sqlTx, schema.TableGoals, outbox.ActionDelete, outbox.Deletion{ID: id}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	c.pushIfConnected(ctx)
	return nil
}

// ScheduleInput is the intent for a new recurring schedule.
type ScheduleInput struct {
	CategoryID  string
	Amount      decimal.Decimal
	Description string
	Type        schema.TxType
	Frequency   schema.Frequency
	StartDate   time.Time
}

// AddRecurring creates a recurring schedule. Schedules live only in the
// remote store, so this requires connectivity; the first occurrence
// materializes on the next run.
func (c *Client) AddRecurring(ctx context.Context, in ScheduleInput) (*schema.Schedule, error) {
	if !c.connected() {
		return nil, ErrOffline
	}
	start := schema.Day(in.StartDate)
	s := &schema.Schedule{
		ID:                schema.NewID(),
		UserID:            c.userID,
		CategoryID:        in.CategoryID,
		Amount:            in.Amount,
		Description:       in.Description,
		Type:              in.Type,
		Frequency:         in.Frequency,
		StartDate:         start,
		NextExecutionDate: start,
		IsActive:          true,
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if err := c.store.InsertSchedule(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetBudget upserts a monthly spending limit for a category. Budgets
// are remote-resident; requires connectivity.
func (c *Client) SetBudget(ctx context.Context, categoryID string, limit decimal.Decimal) error {
	if !c.connected() {
		return ErrOffline
	}
	if !limit.IsPositive() {
		return fmt.Errorf("budget limit must be positive (got %s)", limit)
	}
	return c.store.SetBudget(ctx, &schema.Budget{
		ID:          schema.NewID(),
		UserID:      c.userID,
		CategoryID:  categoryID,
		LimitAmount: limit,
		Period:      "monthly",
	})
}

// CheckBudgets compares this month's local expense totals against the
// remote budget limits and fires a deduplicated alert per exceeded
// category. Returns the number of alerts scheduled.
func (c *Client) CheckBudgets(ctx context.Context) (int, error) {
	if !c.connected() {
		return 0, ErrOffline
	}
	budgets, err := c.store.Budgets(ctx, c.userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch budgets: %w", err)
	}
	if len(budgets) == 0 {
		return 0, nil
	}

	totals, err := c.local.MonthExpenseByCategory(ctx, c.userID, c.now())
	if err != nil {
		return 0, err
	}

	var fired int
	for _, b := range budgets {
		spent, ok := totals[b.CategoryID]
		if !ok || spent.LessThanOrEqual(b.LimitAmount) {
			continue
		}
		name := b.CategoryID
		if cat, err := c.local.GetCategory(ctx, b.CategoryID); err == nil {
			name = cat.Name
		}
		sent, err := c.alerter.BudgetAlert(ctx, name, spent, b.LimitAmount)
		if err != nil {
			c.logger.Printf("WARNING: budget alert for %s: %v", name, err)
			continue
		}
		if sent {
			fired++
		}
	}
	return fired, nil
}

// CheckUpcomingBills fires a reminder for every active schedule whose
// next occurrence lands tomorrow. Schedules already due are left to
// materialization instead. Returns the number of reminders scheduled.
func (c *Client) CheckUpcomingBills(ctx context.Context) (int, error) {
	if !c.connected() {
		return 0, ErrOffline
	}
	tomorrow := schema.Day(c.now()).AddDate(0, 0, 1)
	schedules, err := c.store.DueSchedules(ctx, c.userID, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch schedules: %w", err)
	}

	var fired int
	for _, s := range schedules {
		if !schema.Day(s.NextExecutionDate).Equal(tomorrow) {
			continue
		}
		sent, err := c.alerter.RecurringReminder(ctx, s.Description, s.Amount)
		if err != nil {
			c.logger.Printf("WARNING: reminder for %s: %v", s.Description, err)
			continue
		}
		if sent {
			fired++
		}
	}
	return fired, nil
}

// RefreshAppData performs one pull-then-push cycle.
func (c *Client) RefreshAppData(ctx context.Context) error {
	return c.syncer.Refresh(ctx)
}

// TriggerSync is the manual "sync now" action: a full refresh cycle
// followed by recurring materialization and a final push to drain what
// materialization enqueued.
func (c *Client) TriggerSync(ctx context.Context) error {
	if err := c.syncer.Refresh(ctx); err != nil {
		return err
	}
	if _, err := c.materializer.Run(ctx); err != nil {
		return err
	}
	return c.syncer.Push(ctx)
}

// Snapshot is what the UI renders from.
type Snapshot struct {
	Categories   []*schema.Category
	Transactions []*schema.Transaction
	Goals        []*schema.Goal
}

// Load reads the current local state. Soft-deleted transactions are
// filtered out of the view.
func (c *Client) Load(ctx context.Context) (*Snapshot, error) {
	categories, err := c.local.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	all, err := c.local.ListTransactions(ctx, localstore.TransactionFilter{UserID: c.userID})
	if err != nil {
		return nil, err
	}
	transactions := all[:0]
	for _, tx := range all {
		if tx.SyncStatus != schema.StatusDeleted {
			transactions = append(transactions, tx)
		}
	}
	goals, err := c.local.ListGoals(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Categories: categories, Transactions: transactions, Goals: goals}, nil
}

// Startup runs the app-start sequence: serve the local cache
// immediately, then, if connected, pull, push, materialize due
// schedules, drain again, and return the refreshed state. Offline it
// returns the cached snapshot unchanged.
func (c *Client) Startup(ctx context.Context) (*Snapshot, error) {
	snap, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !c.connected() {
		return snap, nil
	}

	if err := c.syncer.Refresh(ctx); err != nil {
		c.logger.Printf("WARNING: startup refresh failed: %v", err)
		return snap, nil
	}
	if _, err := c.materializer.Run(ctx); err != nil {
		c.logger.Printf("WARNING: startup materialization failed: %v", err)
	}
	if err := c.syncer.Push(ctx); err != nil && !errors.Is(err, syncengine.ErrOffline) {
		c.logger.Printf("WARNING: startup push failed: %v", err)
	}
	return c.Load(ctx)
}

// PendingCount reports the rows still awaiting remote confirmation and
// the quarantined outbox entries. The UI surfaces both so a permanent
// failure is not indefinitely invisible.
func (c *Client) PendingCount(ctx context.Context) (pending, failed int, err error) {
	pending, err = c.queue.Len(ctx)
	if err != nil {
		return 0, 0, err
	}
	failedEntries, err := c.queue.Failed(ctx)
	if err != nil {
		return 0, 0, err
	}
	return pending, len(failedEntries), nil
}
