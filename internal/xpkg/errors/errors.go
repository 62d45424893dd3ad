package errors

import "errors"

var (
	ErrParseCmd       = errors.New("cannot parse arguments")
	ErrHelp           = errors.New("")
	ErrWorkerStopped  = errors.New("worker stopped")
	ErrModeFlag       = errors.New("mode flag is required")
	ErrUnknownService = errors.New("unknown service, write --help command to see valid services")

	ErrDBConn = errors.New("db connection failure")

	ErrMBConn = errors.New("message broker connection failure")
	ErrMBCh   = errors.New("message broker channel failure")

	ErrFieldIsEmpty         = errors.New("field is empty")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("authentication required")
	ErrForbidden            = errors.New("not allowed for this role")
	ErrConflict             = errors.New("conflicts with current state")
	ErrInvalidTransition    = errors.New("status transition is not allowed")
	ErrLocked               = errors.New("resource is busy, try again later")
	ErrMaxConcurentExceeded = errors.New("too many requests, try again later")
)
