package services

import (
	"context"
	"errors"
	"fmt"
)

// Reason identifies which booking rule rejected a reservation request.
type Reason string

const (
	ReasonInvalidInput Reason = "invalid_input"
	ReasonWeekend      Reason = "weekend"
	ReasonPast         Reason = "past"
	ReasonLeadTime     Reason = "lead_time"
	ReasonOrdering     Reason = "ordering"
	ReasonPendingHold  Reason = "pending_hold"
	ReasonOverlap      Reason = "overlap"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the parent of errors caused by the current state of a
	// record rather than by the request itself.
	ErrConflict = errors.New("conflict")

	ErrRoomNameTaken    = fmt.Errorf("%w: room name already exists", ErrConflict)
	ErrEmailTaken       = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrAlreadyConfirmed = fmt.Errorf("%w: reservation already confirmed", ErrConflict)

	// ErrInvalidOrExpiredCode is returned when a confirmation code is unknown
	// or its reservation is past validity.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrCodeSpaceExhausted is returned when no unused confirmation code was
	// found within the attempt budget.
	ErrCodeSpaceExhausted = errors.New("confirmation code space exhausted")

	// ErrInvalidCredentials is returned by Authenticate for an unknown email
	// or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError is a user-correctable rejection of a request.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func reject(reason Reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// StorageError wraps a failure of the backing store. Its detail is meant for
// logs, not for clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageError wraps err as a StorageError. Context cancellation and
// deadlines are not store failures and keep their identity.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
