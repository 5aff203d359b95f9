package domain

import "errors"

var (
	// ErrInvalidOutcome is returned for malformed outcome payloads.
	ErrInvalidOutcome = errors.New("invalid bet outcome")
	// ErrInvalidSlot is returned when a slot id does not fit in a byte.
	ErrInvalidSlot = errors.New("invalid slot id")
)
