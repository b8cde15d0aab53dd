package domain

import "errors"

// Sentinel errors used throughout the application.
// Services wrap them with fmt.Errorf("%w: ...") and handlers translate them
// to HTTP status codes via a single mapError function.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidID          = errors.New("invalid id")
	ErrNotFound           = errors.New("not found")
	ErrGateway            = errors.New("messaging gateway send failed")
	ErrStore              = errors.New("store operation failed")
	ErrCommitFailed       = errors.New("commit of sent state failed; batch may be re-sent on retry")
	ErrDispatchInProgress = errors.New("a dispatch run is already in progress")
	ErrUnauthorized       = errors.New("unauthorized")
)
