package model

import "errors"

// Domain error kinds. Callers match with errors.Is; wrapped variants carry
// detail about the offending field or slot.
var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrMissingField      = errors.New("missing required field")
	ErrSlotConflict      = errors.New("slot already booked")
	ErrNotFound          = errors.New("appointment not found")
	ErrLeadTimeViolation = errors.New("too close to appointment start")
)
