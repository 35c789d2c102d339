package remote

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable marks a transient failure: the remote store could not
// be reached or refused service temporarily. Entries hitting it stay in
// the outbox and are retried on the next push cycle.
var ErrUnavailable = errors.New("remote: unavailable")

// ErrPermanent marks a failure that will not succeed on retry
// (authorization, constraint violation, malformed request). The sync
// engine quarantines outbox entries that hit it.
var ErrPermanent = errors.New("remote: permanent failure")

// IsUnavailable reports whether err is a transient reachability
// failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57": // connection, resources, operator intervention
			return true
		}
	}
	return false
}

// IsPermanent reports whether err will fail on every retry.
//
// SQLSTATE classes treated as permanent: 22 (data exception),
// 23 (integrity constraint), 28 (invalid authorization),
// 42 (syntax error or access rule violation, including 42501
// insufficient privilege). Everything else, including plain network
// failures, is considered retryable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23", "28", "42":
			return true
		}
	}
	return false
}
