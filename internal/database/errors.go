package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a row addressed by key does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("already exists")

// notFound wraps sql.ErrNoRows so callers can test either sentinel.
func notFound(what string, err error) error {
	return fmt.Errorf("%s %w: %w", what, ErrNotFound, err)
}

// classify maps driver errors onto package sentinels.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrConflict, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// IsNotFound reports whether err means the addressed row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
