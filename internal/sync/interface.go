package sync

import "context"

// Syncer reconciles the local cache with the remote store.
//
// Push and Pull are independent directional procedures; both may be
// invoked repeatedly and concurrently. There is no lock around them -
// safety comes from idempotent remote operations (upserts keyed on
// client UUIDs, additive goal deltas) rather than from serialization.
type Syncer interface {
	// Push drains the outbox to the remote store in FIFO order.
	//
	// Each entry is applied independently: on success it is removed
	// and the corresponding local row's sync_status flips to synced;
	// on failure it stays queued, the error is logged, and the drain
	// continues with the next entry. Entries addressing the same row
	// as a failed entry are skipped for the rest of the cycle so a
	// later update can never land before its insert.
	//
	// Entries hitting a permanent error, or exhausting the attempt
	// budget, are quarantined instead of retrying forever.
	//
	// Returns ErrOffline without touching the queue when the
	// connectivity monitor reports disconnected.
	Push(ctx context.Context) error

	// Pull refreshes the local cache from the remote store.
	//
	// Categories are replaced wholesale (safe only because they are
	// never edited offline; the replace is skipped while a category
	// outbox entry is unflushed). Transactions and goals are fetched
	// capped and upserted per row tagged synced; rows whose local
	// sync_status is pending or deleted are left untouched, so an
	// offline edit is never clobbered and an offline-created row
	// absent from the fetch is never deleted.
	Pull(ctx context.Context) error

	// Refresh performs one full cycle: Pull, then Push.
	Refresh(ctx context.Context) error
}
