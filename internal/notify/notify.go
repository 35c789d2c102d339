// Package notify builds and deduplicates the client's local alerts.
//
// Delivery is an external capability (the mobile shell's notification
// scheduler) consumed through the Scheduler interface. This package
// owns what precedes delivery: composing the two alert kinds and
// guaranteeing at-most-one notification per (kind, subject, calendar
// day) via the local store's natural-key dedup log.
package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/localstore"
)

// Notification kinds recorded in the dedup log.
const (
	KindBudget    = "budget"
	KindRecurring = "recurring"
)

// Notification is a single alert to be scheduled.
type Notification struct {
	// ID is the stable scheduler identifier. It equals the dedup key,
	// so double-scheduling collapses on the platform side too.
	ID     string
	Title  string
	Body   string
	FireAt time.Time
}

// Scheduler delivers notifications at a point in time. Implementations
// wrap whatever the host platform provides.
type Scheduler interface {
	Schedule(ctx context.Context, n Notification) error
}

// LogScheduler is a Scheduler that only logs. The CLI uses it; the
// mobile shell substitutes its own.
type LogScheduler struct {
	Logger *log.Logger
}

// Schedule implements Scheduler.
func (l *LogScheduler) Schedule(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	logger.Printf("%s: %s (fire at %s)", n.Title, n.Body, n.FireAt.Format(time.RFC3339))
	return nil
}

// Alerter composes alerts and applies the dedup log before scheduling.
type Alerter struct {
	local     *localstore.DB
	scheduler Scheduler
	logger    *log.Logger
	now       func() time.Time
}

// NewAlerter creates an Alerter. If logger is nil, a default writing to
// stderr is used.
func NewAlerter(local *localstore.DB, scheduler Scheduler, logger *log.Logger) *Alerter {
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &Alerter{
		local:     local,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the alerter's notion of now, for tests.
func (a *Alerter) SetClock(now func() time.Time) {
	a.now = now
}

// BudgetAlert schedules a budget-exceeded notification for the
// category, at most once per calendar day. It reports whether a
// notification was actually scheduled.
func (a *Alerter) BudgetAlert(ctx context.Context, category string, spent, limit decimal.Decimal) (bool, error) {
	title := "Budget Exceeded! ⚠️"
	body := fmt.Sprintf("You've spent $%s in %s, which is over your $%s limit.",
		spent.StringFixed(2), category, limit.StringFixed(2))
	return a.emit(ctx, KindBudget, category, title, body)
}

// RecurringReminder schedules an upcoming-bill reminder, at most once
// per calendar day per bill.
func (a *Alerter) RecurringReminder(ctx context.Context, description string, amount decimal.Decimal) (bool, error) {
	title := "Upcoming Bill 🗓️"
	body := fmt.Sprintf("Your %s ($%s) is due tomorrow.", description, amount.StringFixed(2))
	return a.emit(ctx, KindRecurring, description, title, body)
}

// emit records the dedup key first; only a fresh key schedules. The
// existence of a log entry is the sole dedup signal for the day, and
// entries are never deleted here.
func (a *Alerter) emit(ctx context.Context, kind, subject, title, body string) (bool, error) {
	now := a.now()
	key := localstore.NotificationKey(kind, subject, now)

	fresh, err := a.local.MarkNotified(ctx, key, kind, now)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	n := Notification{
		ID:     key,
		Title:  title,
		Body:   body,
		FireAt: now.Add(time.Second),
	}
	if err := a.scheduler.Schedule(ctx, n); err != nil {
		return false, fmt.Errorf("failed to schedule %s notification: %w", kind, err)
	}
	return true, nil
}
