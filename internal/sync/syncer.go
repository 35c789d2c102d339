package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/pocketledger/pocketledger/internal/localstore"
	"github.com/pocketledger/pocketledger/internal/netmon"
	"github.com/pocketledger/pocketledger/internal/outbox"
	"github.com/pocketledger/pocketledger/internal/remote"
	"github.com/pocketledger/pocketledger/internal/schema"
)

// ErrOffline is returned when a sync procedure is invoked while the
// connectivity monitor reports disconnected.
var ErrOffline = errors.New("sync: offline")

// DefaultPullLimit caps how many recent transactions Pull fetches for
// the offline view.
const DefaultPullLimit = 100

// DefaultMaxAttempts is the per-entry retry budget before quarantine.
const DefaultMaxAttempts = 8

// Options configures a Syncer.
type Options struct {
	// UserID scopes every remote fetch and delete.
	UserID string

	// PullLimit caps the recent-transaction fetch (default 100).
	PullLimit int

	// MaxAttempts quarantines an entry after this many failed pushes
	// (default 8; 0 keeps the default, negative disables the budget).
	MaxAttempts int

	// Monitor gates Push/Pull on connectivity. Nil means always
	// connected (one-shot CLI invocations probe beforehand).
	Monitor netmon.Monitor

	// Logger for sync activity. Nil defaults to stderr.
	Logger *log.Logger
}

// syncer implements the Syncer interface.
type syncer struct {
	local   *localstore.DB
	queue   *outbox.Queue
	store   remote.Store
	monitor netmon.Monitor

	userID      string
	pullLimit   int
	maxAttempts int
	logger      *log.Logger
}

// New creates a Syncer over an opened local store, its outbox queue and
// a remote store.
func New(local *localstore.DB, queue *outbox.Queue, store remote.Store, opts Options) Syncer {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if opts.PullLimit <= 0 {
		opts.PullLimit = DefaultPullLimit
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0 // unlimited
	}
	return &syncer{
		local:       local,
		queue:       queue,
		store:       store,
		monitor:     opts.Monitor,
		userID:      opts.UserID,
		pullLimit:   opts.PullLimit,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
	}
}

func (s *syncer) connected() bool {
	return s.monitor == nil || s.monitor.Connected()
}

// Push implements Syncer.Push.
func (s *syncer) Push(ctx context.Context) error {
	if !s.connected() {
		return ErrOffline
	}

	entries, err := s.queue.PeekAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot outbox: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	s.logger.Printf("Pushing %d outbox entries", len(entries))

	// Rows whose earlier entry failed this cycle; later entries for
	// the same row are held back to preserve causal order.
	blocked := make(map[string]bool)

	// Remaining entries per row: a row's sync_status flips to synced
	// only when its last queued entry drains, so a goal with two
	// queued contributions stays pending until both are acked.
	remaining := make(map[string]int)
	for _, entry := range entries {
		if key, err := entryKey(entry); err == nil {
			remaining[key]++
		}
	}

	var pushed, failed int
	for _, entry := range entries {
		key, err := entryKey(entry)
		if err != nil {
			// Undecodable payload will never apply; quarantine it.
			s.logger.Printf("WARNING: entry %d has bad payload: %v", entry.ID, err)
			_ = s.queue.RecordFailure(ctx, entry.ID, err, true, s.maxAttempts)
			failed++
			continue
		}
		if blocked[key] {
			continue
		}

		if err := s.apply(ctx, entry); err != nil {
			blocked[key] = true
			failed++
			s.logger.Printf("WARNING: failed to push entry %d (%s %s): %v",
				entry.ID, entry.Action, entry.Table, err)
			if rerr := s.queue.RecordFailure(ctx, entry.ID, err, remote.IsPermanent(err), s.maxAttempts); rerr != nil {
				s.logger.Printf("WARNING: failed to record failure on entry %d: %v", entry.ID, rerr)
			}
			continue
		}

		remaining[key]--
		if err := s.settle(ctx, entry, remaining[key] == 0); err != nil {
			// The remote operation succeeded; a local bookkeeping
			// failure must not resurrect the entry.
			s.logger.Printf("WARNING: failed to settle entry %d locally: %v", entry.ID, err)
		}
		if err := s.queue.Remove(ctx, entry.ID); err != nil {
			s.logger.Printf("WARNING: failed to remove entry %d: %v", entry.ID, err)
		}
		pushed++
	}

	s.logger.Printf("Push complete: pushed=%d failed=%d", pushed, failed)
	return nil
}

// apply performs the remote operation an entry describes.
func (s *syncer) apply(ctx context.Context, entry *outbox.Entry) error {
	switch entry.Table {
	case schema.TableTransactions:
		switch entry.Action {
		case outbox.ActionInsert, outbox.ActionUpdate:
			var tx schema.Transaction
			if err := json.Unmarshal(entry.Payload, &tx); err != nil {
				return fmt.Errorf("bad transaction payload: %w", err)
			}
			return s.store.UpsertTransaction(ctx, &tx)
		case outbox.ActionDelete:
			var del outbox.Deletion
			if err := json.Unmarshal(entry.Payload, &del); err != nil {
				return fmt.Errorf("bad deletion payload: %w", err)
			}
			return s.store.DeleteTransaction(ctx, s.userID, del.ID)
		}

	case schema.TableGoals:
		switch entry.Action {
		case outbox.ActionInsert:
			var g schema.Goal
			if err := json.Unmarshal(entry.Payload, &g); err != nil {
				return fmt.Errorf("bad goal payload: %w", err)
			}
			return s.store.UpsertGoal(ctx, &g)
		case outbox.ActionUpdate:
			var c outbox.Contribution
			if err := json.Unmarshal(entry.Payload, &c); err != nil {
				return fmt.Errorf("bad contribution payload: %w", err)
			}
			return s.store.AddGoalProgress(ctx, c.GoalID, c.Delta)
		case outbox.ActionDelete:
			var del outbox.Deletion
			if err := json.Unmarshal(entry.Payload, &del); err != nil {
				return fmt.Errorf("bad deletion payload: %w", err)
			}
			return s.store.DeleteGoal(ctx, s.userID, del.ID)
		}
	}
	return fmt.Errorf("unknown outbox target %s/%s", entry.Table, entry.Action)
}

// settle updates local state after a remote ack: status flips for
// inserts/updates (only once the row's last queued entry drained),
// hard removal for confirmed deletes.
func (s *syncer) settle(ctx context.Context, entry *outbox.Entry, last bool) error {
	key, err := entryKey(entry)
	if err != nil {
		return err
	}
	id := key[len(entry.Table)+1:]

	switch entry.Table {
	case schema.TableTransactions:
		if entry.Action == outbox.ActionDelete {
			return s.local.DeleteTransaction(ctx, id)
		}
		if !last {
			return nil
		}
		if err := s.local.SetTransactionStatus(ctx, id, schema.StatusSynced); err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
	case schema.TableGoals:
		if entry.Action == outbox.ActionDelete {
			return s.local.DeleteGoal(ctx, id)
		}
		if !last {
			return nil
		}
		if err := s.local.SetGoalStatus(ctx, id, schema.StatusSynced); err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
	}
	return nil
}

// entryKey identifies the row an entry addresses, as table/id.
func entryKey(entry *outbox.Entry) (string, error) {
	var id string
	switch entry.Action {
	case outbox.ActionDelete:
		var del outbox.Deletion
		if err := json.Unmarshal(entry.Payload, &del); err != nil {
			return "", fmt.Errorf("bad deletion payload: %w", err)
		}
		id = del.ID
	case outbox.ActionUpdate:
		if entry.Table == schema.TableGoals {
			var c outbox.Contribution
			if err := json.Unmarshal(entry.Payload, &c); err != nil {
				return "", fmt.Errorf("bad contribution payload: %w", err)
			}
			id = c.GoalID
			break
		}
		fallthrough
	case outbox.ActionInsert:
		var row struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(entry.Payload, &row); err != nil {
			return "", fmt.Errorf("bad payload: %w", err)
		}
		id = row.ID
	}
	if id == "" {
		return "", fmt.Errorf("payload has no id")
	}
	return entry.Table + "/" + id, nil
}

// Pull implements Syncer.Pull.
func (s *syncer) Pull(ctx context.Context) error {
	if !s.connected() {
		return ErrOffline
	}

	if err := s.pullCategories(ctx); err != nil {
		return err
	}
	if err := s.pullTransactions(ctx); err != nil {
		return err
	}
	if err := s.pullGoals(ctx); err != nil {
		return err
	}
	return nil
}

// pullCategories replaces the reference table wholesale. The replace is
// refused while a category outbox entry is unflushed so an uncommitted
// edit cannot be lost.
func (s *syncer) pullCategories(ctx context.Context) error {
	pending, err := s.queue.HasPendingFor(ctx, schema.TableCategories)
	if err != nil {
		return err
	}
	if pending {
		s.logger.Printf("Skipping category refresh: outbox entries pending for categories")
		return nil
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}
	if err := s.local.ReplaceCategories(ctx, categories); err != nil {
		return fmt.Errorf("failed to replace categories: %w", err)
	}
	s.logger.Printf("Refreshed %d categories", len(categories))
	return nil
}

func (s *syncer) pullTransactions(ctx context.Context) error {
	fetched, err := s.store.RecentTransactions(ctx, s.userID, s.pullLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	var refreshed int
	for _, tx := range fetched {
		existing, err := s.local.GetTransaction(ctx, tx.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		// A pending or soft-deleted row has an unflushed local edit;
		// refreshing it would clobber the edit or resurrect the row.
		if existing != nil && existing.SyncStatus != schema.StatusSynced {
			continue
		}
		tx.SyncStatus = schema.StatusSynced
		if err := s.local.UpsertTransaction(ctx, tx); err != nil {
			return err
		}
		refreshed++
	}
	s.logger.Printf("Refreshed %d of %d fetched transactions", refreshed, len(fetched))
	return nil
}

func (s *syncer) pullGoals(ctx context.Context) error {
	fetched, err := s.store.Goals(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("failed to fetch goals: %w", err)
	}

	var refreshed int
	for _, g := range fetched {
		existing, err := s.local.GetGoal(ctx, g.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if existing != nil && existing.SyncStatus != schema.StatusSynced {
			continue
		}
		g.SyncStatus = schema.StatusSynced
		if err := s.local.UpsertGoal(ctx, g); err != nil {
			return err
		}
		refreshed++
	}
	s.logger.Printf("Refreshed %d of %d fetched goals", refreshed, len(fetched))
	return nil
}

// Refresh implements Syncer.Refresh.
func (s *syncer) Refresh(ctx context.Context) error {
	if err := s.Pull(ctx); err != nil {
		return err
	}
	return s.Push(ctx)
}
