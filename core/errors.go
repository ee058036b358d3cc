package orchestration

import "errors"

var (
	// ErrTurnCancelled marks a turn that was abandoned mid-flight,
	// typically because the user started speaking again.
	ErrTurnCancelled = errors.New("turn cancelled")
	// ErrSessionClosed is returned when delivering to or operating on a
	// session that has already been closed.
	ErrSessionClosed = errors.New("session closed")
)
