package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

const pgUniqueViolation = "23505"

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}
