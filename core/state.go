package orchestration

import "slices"

// SessionState is the per-session lifecycle state. Idle is both the initial
// state and the resting state between turns; the state machine loops back to
// Idle after every completed, cancelled, or failed turn.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateConnecting   SessionState = "connecting"
	StateRecording    SessionState = "recording"
	StateFinalizing   SessionState = "finalizing"
	StateDispatching  SessionState = "dispatching"
	StateResponding   SessionState = "responding"
	StateSynthesizing SessionState = "synthesizing"
	StatePlaying      SessionState = "playing"
	StateError        SessionState = "error"
)

// allowedTransitions encodes the forward path of a turn plus the barge-in
// re-entries into Recording and the Error escape from every non-resting
// state. Teardown resets use [Session.forceIdle] and bypass this table.
var allowedTransitions = map[SessionState][]SessionState{
	StateIdle:         {StateConnecting, StateRecording},
	StateConnecting:   {StateRecording, StateError},
	StateRecording:    {StateFinalizing, StateError},
	StateFinalizing:   {StateDispatching, StateError},
	StateDispatching:  {StateResponding, StateRecording, StateError},
	StateResponding:   {StateSynthesizing, StateRecording, StateError},
	StateSynthesizing: {StatePlaying, StateRecording, StateError},
	StatePlaying:      {StateIdle, StateRecording, StateError},
	StateError:        {StateIdle},
}

func canTransition(from, to SessionState) bool {
	return slices.Contains(allowedTransitions[from], to)
}
