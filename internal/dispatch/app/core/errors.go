package core

import "errors"

var (
	// ErrNotEligible means the order no longer needs a driver.
	ErrNotEligible = errors.New("order is not waiting for a driver")
	// ErrDriverTaken means the candidate stopped being online before the assignment.
	ErrDriverTaken = errors.New("driver is no longer available")
	ErrBadPayload  = errors.New("undecodable row change")
)
