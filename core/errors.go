package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInjectionDetected is returned when a statement matches an attack signature
	ErrInjectionDetected = errors.New("injection detected")
	// ErrUnauthorizedTable is returned when a statement references a table outside the whitelist
	ErrUnauthorizedTable = errors.New("unauthorized table")
	// ErrRequestRejected is the only guard error ever shown to end users
	ErrRequestRejected = errors.New("request rejected")

	// ErrAggregationFailure marks a metrics collection that fell back to a zeroed snapshot
	ErrAggregationFailure = errors.New("aggregation failure")
	// ErrArchivalFailure marks a stream that was left unmodified for the cycle
	ErrArchivalFailure = errors.New("archival failure")
	// ErrNotificationFailure marks a notification that could not be delivered
	ErrNotificationFailure = errors.New("notification failure")
	// ErrValidationCheckFailure marks a self-test check that could not complete
	ErrValidationCheckFailure = errors.New("validation check failure")
)

// InjectionError reports the attack category that rejected a statement
type InjectionError struct {
	Category string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInjectionDetected, e.Category)
}

// Unwrap allows errors.Is(err, ErrInjectionDetected)
func (e *InjectionError) Unwrap() error {
	return ErrInjectionDetected
}

// UnauthorizedTableError reports the first identifier missing from the whitelist
type UnauthorizedTableError struct {
	Table string
}

func (e *UnauthorizedTableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnauthorizedTable, e.Table)
}

// Unwrap allows errors.Is(err, ErrUnauthorizedTable)
func (e *UnauthorizedTableError) Unwrap() error {
	return ErrUnauthorizedTable
}

// IsGuardRejection reports whether err is a query guard rejection
func IsGuardRejection(err error) bool {
	return errors.Is(err, ErrInjectionDetected) || errors.Is(err, ErrUnauthorizedTable)
}

// PublicError maps guard rejections to ErrRequestRejected so the detection
// category or table name never reaches the caller. Other errors pass through.
func PublicError(err error) error {
	if err == nil {
		return nil
	}
	if IsGuardRejection(err) {
		return ErrRequestRejected
	}
	return err
}
