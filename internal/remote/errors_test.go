package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrUnavailable, true},
		{"wrapped sentinel", fmt.Errorf("push: %w", ErrUnavailable), true},
		{"deadline", context.DeadlineExceeded, true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"pg insufficient resources", &pgconn.PgError{Code: "53300"}, true},
		{"pg operator intervention", &pgconn.PgError{Code: "57P01"}, true},
		{"pg constraint violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrPermanent, true},
		{"wrapped sentinel", fmt.Errorf("apply: %w", ErrPermanent), true},
		{"pg data exception", &pgconn.PgError{Code: "22003"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pg auth failure", &pgconn.PgError{Code: "28P01"}, true},
		{"pg syntax error", &pgconn.PgError{Code: "42601"}, true},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
