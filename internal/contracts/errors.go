package contracts

import "errors"

// Storage errors shared by every repository
var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a unique key already exists
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for invalid repository input
	ErrInvalidInput = errors.New("invalid input")
)

// ErrDailyCapReached is returned when today's execution count already meets the cap
var ErrDailyCapReached = errors.New("daily trade cap reached")
