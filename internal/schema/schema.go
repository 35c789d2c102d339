// Package schema defines the entity types shared by the local cache,
// the outbox and the remote store.
//
// All entities carry client-generated UUID primary keys. Ids are chosen
// on the device before the row ever reaches the remote store, which is
// what makes retried inserts idempotent: the second attempt targets the
// same primary key and upserts instead of duplicating.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateOnly is the layout used for calendar-date columns. Transactions,
// schedules and deadlines are dated by calendar day, not by instant.
const DateOnly = "2006-01-02"

// TxType classifies a transaction or category as money in or money out.
type TxType string

const (
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// SyncStatus tracks whether a locally cached row has been confirmed by
// the remote store.
type SyncStatus string

const (
	// StatusSynced marks a row acknowledged by the remote store.
	StatusSynced SyncStatus = "synced"
	// StatusPending marks a locally originated row whose outbox entry
	// has not drained yet.
	StatusPending SyncStatus = "pending"
	// StatusDeleted marks a soft-deleted row awaiting remote delete.
	StatusDeleted SyncStatus = "deleted"
)

// Frequency is the recurrence interval of a schedule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// Remote table names addressed by outbox entries.
const (
	TableCategories   = "categories"
	TableTransactions = "transactions"
	TableGoals        = "savings_goals"
)

// Category is pull-only reference data: refreshed wholesale from the
// remote store, never edited offline.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  TxType `json:"type"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Transaction is a single income or expense row.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Type        TxType          `json:"type"`
	ReceiptURL  string          `json:"receipt_url,omitempty"`
	SyncStatus  SyncStatus      `json:"sync_status"`
}

// Validate checks the Transaction before it is written to the local
// store or enqueued. Invalid rows never enter the outbox.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative (got %s)", t.Amount)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("type must be income or expense (got %q)", t.Type)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// Goal is a savings goal. CurrentAmount is only ever mutated by
// additive contributions; the client never writes it absolutely.
type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	Color         string          `json:"color,omitempty"`
	SyncStatus    SyncStatus      `json:"sync_status"`
}

// Validate checks the Goal before local write and enqueue.
func (g *Goal) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("id is required")
	}
	if g.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if g.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !g.TargetAmount.IsPositive() {
		return fmt.Errorf("target_amount must be positive (got %s)", g.TargetAmount)
	}
	if g.CurrentAmount.IsNegative() {
		return fmt.Errorf("current_amount must not be negative (got %s)", g.CurrentAmount)
	}
	return nil
}

// Schedule is a recurring transaction definition. Schedules are
// remote-resident: they are not cached locally, and materializing them
// requires connectivity.
type Schedule struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	CategoryID        string          `json:"category_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
	Type              TxType          `json:"type"`
	Frequency         Frequency       `json:"frequency"`
	StartDate         time.Time       `json:"start_date"`
	NextExecutionDate time.Time       `json:"next_execution_date"`
	LastExecutedAt    *time.Time      `json:"last_executed_at,omitempty"`
	IsActive          bool            `json:"is_active"`
}

// Validate checks the Schedule before it is created remotely.
func (s *Schedule) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if s.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative (got %s)", s.Amount)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("type must be income or expense (got %q)", s.Type)
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("frequency must be daily, weekly, monthly or yearly (got %q)", s.Frequency)
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	return nil
}

// Budget is a monthly spending limit for one expense category.
// Budgets are remote-resident like schedules.
type Budget struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CategoryID  string          `json:"category_id"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Period      string          `json:"period"` // currently always "monthly"
}

// NewID returns a fresh random UUID for a client-created entity.
func NewID() string {
	return uuid.NewString()
}

// OccurrenceID derives a deterministic UUID for the transaction
// materialized from a schedule on a given calendar date. Re-running
// materialization after a mid-loop disconnect regenerates the same id,
// so the retry upserts instead of duplicating the occurrence.
func OccurrenceID(scheduleID string, date time.Time) string {
	name := scheduleID + ":" + date.Format(DateOnly)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("recurring:"+name)).String()
}

// Day truncates t to its calendar date in t's location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
