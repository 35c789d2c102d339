package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// setupTestDB opens a store in a temp directory with the schema
// initialized.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "pledger.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return db
}

func testTransaction(id, userID string, amount float64) *schema.Transaction {
	return &schema.Transaction{
		ID:          id,
		UserID:      userID,
		CategoryID:  "cat-groceries",
		Amount:      decimal.NewFromFloat(amount),
		Description: "Weekly shop",
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Type:        schema.TypeExpense,
		SyncStatus:  schema.StatusPending,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	want := testTransaction("tx-1", "user-1", 50.25)
	if err := db.UpsertTransaction(ctx, want); err != nil {
		t.Fatalf("Failed to upsert transaction: %v", err)
	}

	got, err := db.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if got.ID != want.ID || got.UserID != want.UserID || got.CategoryID != want.CategoryID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.Amount.Equal(want.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, want.Amount)
	}
	if !got.Date.Equal(want.Date) {
		t.Errorf("date = %v, want %v", got.Date, want.Date)
	}
	if got.SyncStatus != schema.StatusPending {
		t.Errorf("sync status = %s, want pending", got.SyncStatus)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTransaction(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertTransactionOverwrites(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tx := testTransaction("tx-1", "user-1", 10)
	if err := db.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	tx.Amount = decimal.NewFromInt(25)
	tx.Description = "Corrected"
	if err := db.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Failed to re-upsert: %v", err)
	}

	got, err := db.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(25)) || got.Description != "Corrected" {
		t.Errorf("upsert did not overwrite: %+v", got)
	}

	all, err := db.ListTransactions(ctx, TransactionFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 row after double upsert, got %d", len(all))
	}
}

func TestListTransactionsFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := testTransaction("tx-a", "user-1", 10)
	b := testTransaction("tx-b", "user-1", 20)
	b.Type = schema.TypeIncome
	b.CategoryID = "cat-salary"
	b.Date = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	c := testTransaction("tx-c", "user-2", 30)
	for _, tx := range []*schema.Transaction{a, b, c} {
		if err := db.UpsertTransaction(ctx, tx); err != nil {
			t.Fatalf("Failed to upsert %s: %v", tx.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"by user", TransactionFilter{UserID: "user-1"}, []string{"tx-b", "tx-a"}},
		{"by type", TransactionFilter{UserID: "user-1", Type: schema.TypeIncome}, []string{"tx-b"}},
		{"by category", TransactionFilter{UserID: "user-1", CategoryID: "cat-groceries"}, []string{"tx-a"}},
		{"by date range", TransactionFilter{
			UserID: "user-1",
			From:   time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		}, []string{"tx-b"}},
		{"with limit", TransactionFilter{UserID: "user-1", Limit: 1}, []string{"tx-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("row %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSetTransactionStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertTransaction(ctx, testTransaction("tx-1", "user-1", 5)); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := db.SetTransactionStatus(ctx, "tx-1", schema.StatusSynced); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	got, err := db.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.SyncStatus != schema.StatusSynced {
		t.Errorf("status = %s, want synced", got.SyncStatus)
	}

	if err := db.SetTransactionStatus(ctx, "missing", schema.StatusSynced); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestDeleteTransactionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertTransaction(ctx, testTransaction("tx-1", "user-1", 5)); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := db.DeleteTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := db.GetTransaction(ctx, "tx-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("row still present after delete: %v", err)
	}
	// Deleting again is not an error.
	if err := db.DeleteTransaction(ctx, "tx-1"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

func TestCountTransactionsByStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	synced := testTransaction("tx-s", "user-1", 1)
	synced.SyncStatus = schema.StatusSynced
	for _, tx := range []*schema.Transaction{
		testTransaction("tx-1", "user-1", 1),
		testTransaction("tx-2", "user-1", 2),
		synced,
	} {
		if err := db.UpsertTransaction(ctx, tx); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	n, err := db.CountTransactionsByStatus(ctx, schema.StatusPending)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 2 {
		t.Errorf("pending count = %d, want 2", n)
	}
}

func TestMonthExpenseByCategory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	august := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	groceriesA := testTransaction("tx-1", "user-1", 40)
	groceriesB := testTransaction("tx-2", "user-1", 60)
	income := testTransaction("tx-3", "user-1", 500)
	income.Type = schema.TypeIncome
	lastMonth := testTransaction("tx-4", "user-1", 99)
	lastMonth.Date = time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	deleted := testTransaction("tx-5", "user-1", 30)
	deleted.SyncStatus = schema.StatusDeleted
	otherUser := testTransaction("tx-6", "user-2", 77)

	for _, tx := range []*schema.Transaction{groceriesA, groceriesB, income, lastMonth, deleted, otherUser} {
		if err := db.UpsertTransaction(ctx, tx); err != nil {
			t.Fatalf("Failed to upsert %s: %v", tx.ID, err)
		}
	}

	totals, err := db.MonthExpenseByCategory(ctx, "user-1", august)
	if err != nil {
		t.Fatalf("Failed to total expenses: %v", err)
	}
	got, ok := totals["cat-groceries"]
	if !ok {
		t.Fatal("no total for cat-groceries")
	}
	// Only the two August expenses count: income, last month's row,
	// the soft-deleted row and the other user are all excluded.
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("groceries total = %s, want 100", got)
	}
}

func TestReplaceCategories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := []*schema.Category{
		{ID: "cat-1", Name: "Groceries", Icon: "🛒", Color: "#00ff00", Type: schema.TypeExpense},
		{ID: "cat-2", Name: "Rent", Icon: "🏠", Color: "#ff0000", Type: schema.TypeExpense},
	}
	if err := db.ReplaceCategories(ctx, first); err != nil {
		t.Fatalf("Failed to replace categories: %v", err)
	}

	second := []*schema.Category{
		{ID: "cat-2", Name: "Housing", Icon: "🏠", Color: "#ff0000", Type: schema.TypeExpense},
		{ID: "cat-3", Name: "Salary", Icon: "💰", Color: "#0000ff", Type: schema.TypeIncome},
	}
	if err := db.ReplaceCategories(ctx, second); err != nil {
		t.Fatalf("Failed to replace categories again: %v", err)
	}

	got, err := db.ListCategories(ctx)
	if err != nil {
		t.Fatalf("Failed to list categories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2 (replace must be wholesale)", len(got))
	}
	if _, err := db.GetCategory(ctx, "cat-1"); !errors.Is(err, ErrNotFound) {
		t.Error("cat-1 survived a wholesale replace")
	}
	renamed, err := db.GetCategory(ctx, "cat-2")
	if err != nil {
		t.Fatalf("Failed to get cat-2: %v", err)
	}
	if renamed.Name != "Housing" {
		t.Errorf("cat-2 name = %s, want Housing", renamed.Name)
	}
}

func TestGetCategorySurfacesStorageErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetCategory(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing category = %v, want ErrNotFound", err)
	}

	// A real storage error must not masquerade as a missing row.
	if _, err := db.conn.ExecContext(ctx, `DROP TABLE categories`); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}
	_, err := db.GetCategory(ctx, "missing")
	if err == nil {
		t.Fatal("query against a dropped table succeeded")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("storage error reported as ErrNotFound: %v", err)
	}
}

func TestGoalProgress(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	g := &schema.Goal{
		ID:            "g-1",
		UserID:        "user-1",
		Name:          "Vacation",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(10),
		SyncStatus:    schema.StatusSynced,
	}
	if err := db.UpsertGoal(ctx, g); err != nil {
		t.Fatalf("Failed to upsert goal: %v", err)
	}

	if err := db.AddGoalProgress(ctx, "g-1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Failed to add progress: %v", err)
	}

	got, err := db.GetGoal(ctx, "g-1")
	if err != nil {
		t.Fatalf("Failed to get goal: %v", err)
	}
	if !got.CurrentAmount.Equal(decimal.NewFromInt(110)) {
		t.Errorf("current amount = %s, want 110", got.CurrentAmount)
	}

	if err := db.AddGoalProgress(ctx, "missing", decimal.NewFromInt(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing goal, got %v", err)
	}
}

func TestGoalDeadlineRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	deadline := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	g := &schema.Goal{
		ID:           "g-1",
		UserID:       "user-1",
		Name:         "House",
		TargetAmount: decimal.NewFromInt(50000),
		Deadline:     &deadline,
		Color:        "#123456",
		SyncStatus:   schema.StatusPending,
	}
	if err := db.UpsertGoal(ctx, g); err != nil {
		t.Fatalf("Failed to upsert goal: %v", err)
	}

	got, err := db.GetGoal(ctx, "g-1")
	if err != nil {
		t.Fatalf("Failed to get goal: %v", err)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got.Deadline, deadline)
	}

	// And a nil deadline stays nil.
	g2 := &schema.Goal{
		ID: "g-2", UserID: "user-1", Name: "Car",
		TargetAmount: decimal.NewFromInt(9000), SyncStatus: schema.StatusPending,
	}
	if err := db.UpsertGoal(ctx, g2); err != nil {
		t.Fatalf("Failed to upsert goal: %v", err)
	}
	got2, err := db.GetGoal(ctx, "g-2")
	if err != nil {
		t.Fatalf("Failed to get goal: %v", err)
	}
	if got2.Deadline != nil {
		t.Errorf("expected nil deadline, got %v", got2.Deadline)
	}
}

func TestNotificationDedup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	key := NotificationKey("budget", "Groceries", day)

	fresh, err := db.MarkNotified(ctx, key, "budget", day)
	if err != nil {
		t.Fatalf("Failed to mark notified: %v", err)
	}
	if !fresh {
		t.Error("first mark should be fresh")
	}

	again, err := db.MarkNotified(ctx, key, "budget", day.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Failed to re-mark: %v", err)
	}
	if again {
		t.Error("second mark on the same day should not be fresh")
	}

	was, err := db.WasNotified(ctx, key)
	if err != nil {
		t.Fatalf("Failed to check: %v", err)
	}
	if !was {
		t.Error("WasNotified = false after marking")
	}

	// A new calendar day is a new key, so the alert can fire again.
	nextDay := day.AddDate(0, 0, 1)
	fresh, err = db.MarkNotified(ctx, NotificationKey("budget", "Groceries", nextDay), "budget", nextDay)
	if err != nil {
		t.Fatalf("Failed to mark next day: %v", err)
	}
	if !fresh {
		t.Error("next day's key should be fresh")
	}
}
