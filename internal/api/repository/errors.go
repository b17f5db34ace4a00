package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
	// ErrUnavailable is returned when the store cannot answer in time or at all.
	// Callers may retry.
	ErrUnavailable = errors.New("store unavailable")
)

// classify maps a driver error onto the repository sentinels and attaches
// the operation name as an oops code.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	b := oops.Code(op)
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, ErrNotFound):
		return b.Wrap(ErrNotFound)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return b.With("cause", err.Error()).Wrap(ErrConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return b.With("cause", err.Error()).Wrap(ErrUnavailable)
	default:
		return b.With("cause", err.Error()).Wrap(errors.Join(ErrUnavailable, err))
	}
}
