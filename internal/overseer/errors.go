package overseer

import "errors"

var (
	// ErrBusy is returned when a loop is already running or the overseer is not idle.
	ErrBusy = errors.New("overseer busy")
	// ErrAlreadySleeping is returned when a sleep is installed while another is pending.
	ErrAlreadySleeping = errors.New("overseer already sleeping")
	// ErrNoModel is returned when no chat model could be resolved.
	ErrNoModel = errors.New("no overseer model available")
)
