package session

import "errors"

var (
	// ErrCapacityExceeded is returned by Spawn when the session limit is reached.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrBusy is returned by Send while a process is already running for the session.
	ErrBusy = errors.New("session busy")
	// ErrUnsupported is returned by interactive operations the CLI mode cannot honour.
	ErrUnsupported = errors.New("operation not supported in print mode")
	// ErrInvalidMode is returned for an unknown permission mode.
	ErrInvalidMode = errors.New("invalid permission mode")
	// ErrInvalidPath is returned when a working directory does not exist.
	ErrInvalidPath = errors.New("invalid working directory")
)
