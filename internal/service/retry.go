package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const defaultMaxRetries = 3

// Constraints whose violation means a concurrent request won the race.
const (
	constraintOpenOrderPerTable = "orders_one_open_per_table"
	constraintBillPerOrder      = "bills_order_id_key"
)

// isConflict reports whether err is a lost race that a fresh attempt can resolve:
// our own ErrConcurrencyConflict, a unique violation on one of the guard
// constraints, a serialization failure or a deadlock.
func isConflict(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		case "23505":
			return pgErr.ConstraintName == constraintOpenOrderPerTable ||
				pgErr.ConstraintName == constraintBillPerOrder
		}
	}
	return false
}

// withRetry runs fn up to attempts times while it fails with a conflict.
func withRetry[T any](attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isConflict(err) {
			return zero, err
		}
		lastErr = err
	}
	if errors.Is(lastErr, ErrConcurrencyConflict) {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w: %w", ErrConcurrencyConflict, lastErr)
}
