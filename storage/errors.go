package storage

import "errors"

// Storage error constants
var (
	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidStream is returned for an unknown event category
	ErrInvalidStream = errors.New("invalid event stream")

	// ErrConcurrentModification is returned when a stream kept changing during a rewrite
	ErrConcurrentModification = errors.New("stream modified concurrently")

	// ErrCorruptEntry is returned when a stored entry cannot be decoded
	ErrCorruptEntry = errors.New("corrupt stored entry")
)
