package events

const (
	// KindTurnCancelled identifies the expected outcome of barge-in or
	// teardown. It is not a failure.
	KindTurnCancelled Kind = "turn_control.cancelled"
	// KindTurnFailed identifies a turn ended by an upstream or synthesis
	// error.
	KindTurnFailed Kind = "turn_control.failed"
	// KindSynthesisFailed identifies a turn whose text completed but whose
	// speech could not be synthesized. The turn itself is not failed.
	KindSynthesisFailed Kind = "turn_control.synthesis_failed"
	// KindSessionStateChanged identifies session state machine transitions.
	KindSessionStateChanged Kind = "turn_control.session_state_changed"
)

// TurnCancelled marks a turn abandoned by barge-in or session teardown.
type TurnCancelled struct{ Base }

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled() TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled)}
}

// TurnFailed marks a turn ended by an error. Reason distinguishes failure
// classes for the client; Err carries the underlying error for logs.
type TurnFailed struct {
	Base
	Reason string
	Err    error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(reason string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), Reason: reason, Err: err}
}

// SynthesisFailed notifies the client that a completed response has no audio.
// Delivered text is never retracted.
type SynthesisFailed struct {
	Base
	Err error
}

// NewSynthesisFailed creates a synthesis failed event.
func NewSynthesisFailed(err error) SynthesisFailed {
	return SynthesisFailed{Base: NewBase(KindSynthesisFailed), Err: err}
}

// SessionStateChanged reports a session state machine transition.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

// NewSessionStateChanged creates a session state transition event.
func NewSessionStateChanged(from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to}
}
