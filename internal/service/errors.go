package service

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrBatchInFlight: a bulk operation for the business is already running.
	// The caller gets refused, not queued.
	ErrBatchInFlight = errors.New("bulk operation already in flight")

	// ErrCalendarOwned: the busy block belongs to the calendar sync engine
	// and cannot be changed or deleted here.
	ErrCalendarOwned = errors.New("busy block is calendar-owned")

	ErrValidation = errors.New("validation failed")
)
