// Package sync implements the reconciliation engine between the local
// cache and the remote store.
//
// # Architecture
//
// Mutations made while offline land in two places atomically: the
// entity row in the local store (optimistic, tagged pending) and an
// outbox entry describing the remote operation still owed.
//
//	UI / materializer
//	      |
//	      v
//	LocalStore (optimistic write)  +  Outbox (pending intent)
//	                                     |
//	                              Syncer.Push  ->  remote store
//	                                     |
//	                     remove entry, flip row to synced
//
// Pull runs the other direction: wholesale replace for pull-only
// reference data (categories), capped per-row upsert refresh for
// mutable data (transactions, goals).
//
// # Ordering and idempotency
//
// The outbox is FIFO by enqueue time across all tables; that alone
// guarantees an insert drains before any later update or delete of the
// same row. Remote inserts are upserts keyed on client-generated UUIDs,
// so a retried or concurrently repeated push of the same entry cannot
// duplicate a row. Goal contributions travel as additive deltas and
// commute with each other.
//
// # Failure handling
//
// A failed entry stays queued and is retried on every later push; the
// cycle continues with other rows (partial progress is expected).
// Permanent errors - authorization, constraint violations, undecodable
// payloads - quarantine the entry instead of retrying forever; the
// outbox surfaces quarantined entries for manual resolution.
package sync
