package schema

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOccurrenceIDDeterministic(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	a := OccurrenceID("sched-1", date)
	b := OccurrenceID("sched-1", date)
	if a != b {
		t.Errorf("same schedule and date produced different ids: %s vs %s", a, b)
	}

	// Time-of-day must not leak into the id; two runs on the same
	// calendar day regenerate the same occurrence.
	noon := time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)
	if got := OccurrenceID("sched-1", noon); got != a {
		t.Errorf("time of day changed occurrence id: %s vs %s", got, a)
	}

	if OccurrenceID("sched-2", date) == a {
		t.Error("different schedules produced the same occurrence id")
	}
	if OccurrenceID("sched-1", date.AddDate(0, 0, 1)) == a {
		t.Error("different dates produced the same occurrence id")
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2026, 7, 4, 23, 59, 59, 123, time.UTC)
	got := Day(in)
	want := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day(%v) = %v, want %v", in, got, want)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:         "tx-1",
		UserID:     "user-1",
		Amount:     decimal.NewFromFloat(50.25),
		Date:       time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Type:       TypeExpense,
		SyncStatus: StatusPending,
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{"valid", func(tx *Transaction) {}, false},
		{"missing id", func(tx *Transaction) { tx.ID = "" }, true},
		{"missing user", func(tx *Transaction) { tx.UserID = "" }, true},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, true},
		{"zero amount ok", func(tx *Transaction) { tx.Amount = decimal.Zero }, false},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, true},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoalValidate(t *testing.T) {
	valid := Goal{
		ID:           "g-1",
		UserID:       "user-1",
		Name:         "Vacation",
		TargetAmount: decimal.NewFromInt(1000),
		SyncStatus:   StatusPending,
	}

	tests := []struct {
		name    string
		mutate  func(*Goal)
		wantErr bool
	}{
		{"valid", func(g *Goal) {}, false},
		{"missing name", func(g *Goal) { g.Name = "" }, true},
		{"zero target", func(g *Goal) { g.TargetAmount = decimal.Zero }, true},
		{"negative target", func(g *Goal) { g.TargetAmount = decimal.NewFromInt(-5) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			err := g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	s := Schedule{
		ID:                "s-1",
		UserID:            "user-1",
		Amount:            decimal.NewFromInt(1200),
		Description:       "Rent",
		Type:              TypeExpense,
		Frequency:         FreqMonthly,
		StartDate:         time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		NextExecutionDate: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	if err := s.Validate(); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}

	bad := s
	bad.Frequency = "fortnightly"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
