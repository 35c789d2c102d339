// Package recurring materializes due recurring schedules into concrete
// transactions.
//
// Schedules are remote-resident, so materialization requires
// connectivity to fetch them and to advance their cursor. The
// transactions it synthesizes, however, go through exactly the same
// path as user-created ones: optimistic local write plus outbox entry,
// drained by the next push.
//
// A schedule's cursor (next_execution_date) always points at the
// earliest not-yet-materialized occurrence and never regresses. If the
// device drops offline mid-loop, the cursor stays put and the next run
// regenerates the same occurrences - harmlessly, because occurrence ids
// are derived deterministically from (schedule id, date) and every
// insert is an upsert.
package recurring

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pocketledger/pocketledger/internal/localstore"
	"github.com/pocketledger/pocketledger/internal/outbox"
	"github.com/pocketledger/pocketledger/internal/remote"
	"github.com/pocketledger/pocketledger/internal/schema"
)

// descriptionSuffix marks transactions that originate from a schedule.
const descriptionSuffix = " (Recurring)"

// Materializer drives schedule materialization.
type Materializer struct {
	local  *localstore.DB
	queue  *outbox.Queue
	store  remote.Store
	userID string
	logger *log.Logger
	now    func() time.Time
}

// New creates a Materializer. If logger is nil, a default writing to
// stderr is used.
func New(local *localstore.DB, queue *outbox.Queue, store remote.Store, userID string, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = log.New(os.Stderr, "[recurring] ", log.LstdFlags)
	}
	return &Materializer{
		local:  local,
		queue:  queue,
		store:  store,
		userID: userID,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the materializer's notion of now. Tests use it to
// pin "today".
func (m *Materializer) SetClock(now func() time.Time) {
	m.now = now
}

// Run fetches the user's due schedules and materializes each of them up
// to today. It returns the number of transactions created. Individual
// schedule failures are logged and don't stop the run.
func (m *Materializer) Run(ctx context.Context) (int, error) {
	today := schema.Day(m.now())

	schedules, err := m.store.DueSchedules(ctx, m.userID, today)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due schedules: %w", err)
	}
	if len(schedules) == 0 {
		return 0, nil
	}

	m.logger.Printf("Materializing %d due schedules", len(schedules))

	var created int
	for _, s := range schedules {
		n, err := m.materialize(ctx, s, today)
		created += n
		if err != nil {
			m.logger.Printf("WARNING: schedule %s: %v", s.ID, err)
		}
	}
	return created, nil
}

// materialize emits every occurrence of one schedule up to today, then
// persists the advanced cursor remotely in a single update.
func (m *Materializer) materialize(ctx context.Context, s *schema.Schedule, today time.Time) (int, error) {
	anchor := s.StartDate.Day()
	cursor := schema.Day(s.NextExecutionDate)

	var created int
	for !cursor.After(today) {
		tx := &schema.Transaction{
			ID:          schema.OccurrenceID(s.ID, cursor),
			UserID:      s.UserID,
			CategoryID:  s.CategoryID,
			Amount:      s.Amount,
			Description: s.Description + descriptionSuffix,
			Date:        cursor,
			Type:        s.Type,
			SyncStatus:  schema.StatusPending,
		}
		if err := m.emit(ctx, tx); err != nil {
			return created, err
		}
		created++
		cursor = Advance(cursor, s.Frequency, anchor)
	}

	if err := m.store.AdvanceSchedule(ctx, s.ID, cursor, m.now()); err != nil {
		return created, fmt.Errorf("failed to advance cursor: %w", err)
	}
	m.logger.Printf("Schedule %s: created %d occurrences, cursor now %s",
		s.ID, created, cursor.Format(schema.DateOnly))
	return created, nil
}

// emit writes the occurrence locally and enqueues it, atomically, the
// same way a user-created transaction is recorded.
func (m *Materializer) emit(ctx context.Context, tx *schema.Transaction) error {
	sqlTx, err := m.local.RawDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin local transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := m.local.UpsertTransactionIn(ctx, sqlTx, tx); err != nil {
		return err
	}
	if _, err := m.queue.EnqueueTx(ctx, sqlTx, schema.TableTransactions, outbox.ActionInsert, tx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Advance returns the occurrence after cursor for the given frequency.
//
// Monthly and yearly advances are calendar-aware and anchored to the
// schedule's start day-of-month: the month (or year) moves forward and
// the day clamps to the target month's length. A monthly schedule
// started Jan 31 fires Jan 31, Feb 29/28, Mar 31, Apr 30 - the clamp
// never shortens later months because the anchor comes from start_date,
// not from the previous occurrence.
func Advance(cursor time.Time, f schema.Frequency, anchorDay int) time.Time {
	switch f {
	case schema.FreqDaily:
		return cursor.AddDate(0, 0, 1)
	case schema.FreqWeekly:
		return cursor.AddDate(0, 0, 7)
	case schema.FreqMonthly:
		year, month := cursor.Year(), cursor.Month()+1
		return clampedDate(year, month, anchorDay, cursor.Location())
	case schema.FreqYearly:
		return clampedDate(cursor.Year()+1, cursor.Month(), anchorDay, cursor.Location())
	default:
		// Unknown frequencies advance daily so the loop terminates.
		return cursor.AddDate(0, 0, 1)
	}
}

// clampedDate builds year/month/day with day clamped to the month's
// length. month may be January+12n; time.Date normalizes it.
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
