package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// Memory is an in-memory Store used by tests and offline development.
// It mirrors the Postgres implementation's semantics: upserts keyed on
// id, additive goal progress, idempotent deletes, user scoping.
//
// Err, when set, is returned by every operation; tests use it to
// simulate outages (a transient error) or rejections (ErrPermanent).
type Memory struct {
	mu sync.Mutex

	categories   map[string]*schema.Category
	transactions map[string]*schema.Transaction
	goals        map[string]*schema.Goal
	schedules    map[string]*schema.Schedule
	budgets      map[string]*schema.Budget

	// Err fails every call while non-nil.
	Err error
	// Calls counts remote operations, Ping excluded.
	Calls int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		categories:   make(map[string]*schema.Category),
		transactions: make(map[string]*schema.Transaction),
		goals:        make(map[string]*schema.Goal),
		schedules:    make(map[string]*schema.Schedule),
		budgets:      make(map[string]*schema.Budget),
	}
}

// SetErr makes every subsequent operation fail with err (nil clears).
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

func (m *Memory) begin() error {
	m.Calls++
	return m.Err
}

// Ping implements Store.Ping.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return ErrUnavailable
	}
	return nil
}

// SeedCategory inserts reference data directly (no user scoping).
func (m *Memory) SeedCategory(c *schema.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.categories[c.ID] = &cp
}

// SeedSchedule inserts a schedule directly.
func (m *Memory) SeedSchedule(s *schema.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.schedules[s.ID] = &cp
}

// Categories implements Store.Categories.
func (m *Memory) Categories(ctx context.Context) ([]*schema.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	out := make([]*schema.Category, 0, len(m.categories))
	for _, c := range m.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RecentTransactions implements Store.RecentTransactions.
func (m *Memory) RecentTransactions(ctx context.Context, userID string, limit int) ([]*schema.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	var out []*schema.Transaction
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertTransaction implements Store.UpsertTransaction.
func (m *Memory) UpsertTransaction(ctx context.Context, tx *schema.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	cp := *tx
	cp.SyncStatus = "" // the remote store has no sync_status column
	m.transactions[tx.ID] = &cp
	return nil
}

// DeleteTransaction implements Store.DeleteTransaction.
func (m *Memory) DeleteTransaction(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	if tx, ok := m.transactions[id]; ok && tx.UserID == userID {
		delete(m.transactions, id)
	}
	return nil
}

// Goals implements Store.Goals.
func (m *Memory) Goals(ctx context.Context, userID string) ([]*schema.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	var out []*schema.Goal
	for _, g := range m.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpsertGoal implements Store.UpsertGoal. As in Postgres,
// current_amount is kept from the existing row on conflict.
func (m *Memory) UpsertGoal(ctx context.Context, g *schema.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	cp := *g
	cp.SyncStatus = ""
	if existing, ok := m.goals[g.ID]; ok {
		cp.CurrentAmount = existing.CurrentAmount
	}
	m.goals[g.ID] = &cp
	return nil
}

// AddGoalProgress implements Store.AddGoalProgress.
func (m *Memory) AddGoalProgress(ctx context.Context, goalID string, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	g, ok := m.goals[goalID]
	if !ok {
		return ErrPermanent
	}
	g.CurrentAmount = g.CurrentAmount.Add(delta)
	return nil
}

// DeleteGoal implements Store.DeleteGoal.
func (m *Memory) DeleteGoal(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	if g, ok := m.goals[id]; ok && g.UserID == userID {
		delete(m.goals, id)
	}
	return nil
}

// DueSchedules implements Store.DueSchedules.
func (m *Memory) DueSchedules(ctx context.Context, userID string, today time.Time) ([]*schema.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	day := schema.Day(today)
	var out []*schema.Schedule
	for _, s := range m.schedules {
		if s.UserID == userID && s.IsActive && !schema.Day(s.NextExecutionDate).After(day) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextExecutionDate.Before(out[j].NextExecutionDate)
	})
	return out, nil
}

// InsertSchedule implements Store.InsertSchedule.
func (m *Memory) InsertSchedule(ctx context.Context, s *schema.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	if _, ok := m.schedules[s.ID]; !ok {
		cp := *s
		m.schedules[s.ID] = &cp
	}
	return nil
}

// AdvanceSchedule implements Store.AdvanceSchedule.
func (m *Memory) AdvanceSchedule(ctx context.Context, scheduleID string, next, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	s, ok := m.schedules[scheduleID]
	if !ok {
		return ErrPermanent
	}
	if s.NextExecutionDate.After(next) {
		return nil // never regress the cursor
	}
	s.NextExecutionDate = next
	t := executedAt
	s.LastExecutedAt = &t
	return nil
}

// Budgets implements Store.Budgets.
func (m *Memory) Budgets(ctx context.Context, userID string) ([]*schema.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	var out []*schema.Budget
	for _, b := range m.budgets {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

// SetBudget implements Store.SetBudget.
func (m *Memory) SetBudget(ctx context.Context, b *schema.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	key := b.UserID + "/" + b.CategoryID + "/" + b.Period
	if existing, ok := m.budgets[key]; ok {
		existing.LimitAmount = b.LimitAmount
		return nil
	}
	cp := *b
	m.budgets[key] = &cp
	return nil
}

// Transaction returns a stored transaction by id, for test assertions.
func (m *Memory) Transaction(id string) (*schema.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, false
	}
	cp := *tx
	return &cp, true
}

// Goal returns a stored goal by id, for test assertions.
func (m *Memory) Goal(id string) (*schema.Goal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, false
	}
	cp := *g
	return &cp, true
}

// Schedule returns a stored schedule by id, for test assertions.
func (m *Memory) Schedule(id string) (*schema.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// TransactionCount reports how many transactions the store holds.
func (m *Memory) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}
