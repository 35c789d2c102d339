package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/localstore"
)

// recordingScheduler captures scheduled notifications.
type recordingScheduler struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingScheduler) Schedule(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func setupAlerter(t *testing.T) (*Alerter, *recordingScheduler) {
	t.Helper()
	ctx := context.Background()

	local, err := localstore.Open(filepath.Join(t.TempDir(), "pledger.db"))
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	if err := local.InitSchema(ctx); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	sched := &recordingScheduler{}
	a := NewAlerter(local, sched, log.New(io.Discard, "", 0))
	return a, sched
}

func TestBudgetAlertContent(t *testing.T) {
	a, sched := setupAlerter(t)

	sent, err := a.BudgetAlert(context.Background(), "Groceries",
		decimal.NewFromFloat(350.50), decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("BudgetAlert failed: %v", err)
	}
	if !sent {
		t.Fatal("first alert was not scheduled")
	}

	if len(sched.sent) != 1 {
		t.Fatalf("scheduled %d notifications, want 1", len(sched.sent))
	}
	n := sched.sent[0]
	if n.Title != "Budget Exceeded! ⚠️" {
		t.Errorf("title = %q", n.Title)
	}
	want := "You've spent $350.50 in Groceries, which is over your $300.00 limit."
	if n.Body != want {
		t.Errorf("body = %q, want %q", n.Body, want)
	}
	if n.ID == "" {
		t.Error("notification has no stable id")
	}
}

func TestBudgetAlertDedupsSameDay(t *testing.T) {
	a, sched := setupAlerter(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	a.SetClock(func() time.Time { return day })

	spent, limit := decimal.NewFromInt(400), decimal.NewFromInt(300)

	sent, err := a.BudgetAlert(ctx, "Groceries", spent, limit)
	if err != nil || !sent {
		t.Fatalf("first alert: sent=%v err=%v", sent, err)
	}

	// Same category later the same day: suppressed.
	a.SetClock(func() time.Time { return day.Add(6 * time.Hour) })
	sent, err = a.BudgetAlert(ctx, "Groceries", spent, limit)
	if err != nil {
		t.Fatalf("second alert failed: %v", err)
	}
	if sent {
		t.Error("same-day duplicate was scheduled")
	}

	// A different category is its own key.
	sent, err = a.BudgetAlert(ctx, "Dining", spent, limit)
	if err != nil || !sent {
		t.Fatalf("different-category alert: sent=%v err=%v", sent, err)
	}

	// Next day the alert can fire again.
	a.SetClock(func() time.Time { return day.AddDate(0, 0, 1) })
	sent, err = a.BudgetAlert(ctx, "Groceries", spent, limit)
	if err != nil || !sent {
		t.Fatalf("next-day alert: sent=%v err=%v", sent, err)
	}

	if len(sched.sent) != 3 {
		t.Errorf("scheduled %d notifications, want 3", len(sched.sent))
	}
}

func TestRecurringReminderContent(t *testing.T) {
	a, sched := setupAlerter(t)

	sent, err := a.RecurringReminder(context.Background(), "Netflix", decimal.NewFromFloat(15.99))
	if err != nil || !sent {
		t.Fatalf("reminder: sent=%v err=%v", sent, err)
	}

	n := sched.sent[0]
	if n.Title != "Upcoming Bill 🗓️" {
		t.Errorf("title = %q", n.Title)
	}
	if want := "Your Netflix ($15.99) is due tomorrow."; n.Body != want {
		t.Errorf("body = %q, want %q", n.Body, want)
	}
}

func TestSchedulerFailureDoesNotBurnKey(t *testing.T) {
	a, sched := setupAlerter(t)
	ctx := context.Background()

	sched.err = errors.New("platform refused")
	if _, err := a.BudgetAlert(ctx, "Groceries", decimal.NewFromInt(400), decimal.NewFromInt(300)); err == nil {
		t.Fatal("expected scheduling error")
	}

	// The key was marked before scheduling, so the retry within the
	// same day stays suppressed. That is the accepted trade: at most
	// one per day, even if the one delivery failed.
	sched.err = nil
	sent, err := a.BudgetAlert(ctx, "Groceries", decimal.NewFromInt(400), decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if sent {
		t.Error("retry after failed delivery re-scheduled within the same day")
	}
}
