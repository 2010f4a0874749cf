package services

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP statuses by the controllers.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

const (
	ConflictLocked  = "locked"
	ConflictOverlap = "overlap"
	ConflictStale   = "stale"
)

// Interval is an existing reservation that collides with a request.
type Interval struct {
	BookingID uint   `json:"bookingId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ConflictError explains why a slot or table could not be taken.
type ConflictError struct {
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	LockedBy uint      `json:"lockedBy,omitempty"`
	Existing *Interval `json:"existing,omitempty"`
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
