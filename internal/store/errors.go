package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
	// ErrOverlap is returned when a write violates a reservation exclusion constraint.
	ErrOverlap = errors.New("overlapping reservation")
	// ErrSerialization is returned when a serializable transaction lost a race.
	ErrSerialization = errors.New("serialization failure")
)

const (
	pqUniqueViolation      = "23505"
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqCheckViolation       = "23514"
	pqForeignKeyViolation  = "23503"
)

// translateError maps driver errors onto the package sentinels so callers can
// use errors.Is without knowing about Postgres error codes.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case pqExclusionViolation:
		return fmt.Errorf("%w: %s", ErrOverlap, pqErr.Constraint)
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrSerialization, pqErr.Message)
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	case pqCheckViolation:
		return fmt.Errorf("check %s failed: %w", pqErr.Constraint, err)
	}
	return err
}
