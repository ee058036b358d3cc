package orchestration

import "testing"

func TestCanTransitionFollowsTurnLifecycle(t *testing.T) {
	path := []SessionState{
		StateIdle, StateConnecting, StateRecording, StateFinalizing,
		StateDispatching, StateResponding, StateSynthesizing, StatePlaying,
		StateIdle,
	}

	for i := 0; i < len(path)-1; i++ {
		if !canTransition(path[i], path[i+1]) {
			t.Fatalf("expected transition %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransitionAllowsBargeInFromTurnStates(t *testing.T) {
	for _, from := range []SessionState{StateDispatching, StateResponding, StateSynthesizing, StatePlaying} {
		if !canTransition(from, StateRecording) {
			t.Fatalf("expected barge-in transition %s -> %s to be allowed", from, StateRecording)
		}
	}
}

func TestCanTransitionAllowsErrorEscapeAndRecovery(t *testing.T) {
	for _, from := range []SessionState{
		StateConnecting, StateRecording, StateFinalizing,
		StateDispatching, StateResponding, StateSynthesizing, StatePlaying,
	} {
		if !canTransition(from, StateError) {
			t.Fatalf("expected transition %s -> %s to be allowed", from, StateError)
		}
	}

	if !canTransition(StateError, StateIdle) {
		t.Fatalf("expected transition %s -> %s to be allowed", StateError, StateIdle)
	}
}

func TestCanTransitionRejectsSkippedStates(t *testing.T) {
	rejected := []struct {
		from SessionState
		to   SessionState
	}{
		{StateIdle, StateResponding},
		{StateRecording, StateDispatching},
		{StateConnecting, StatePlaying},
		{StateError, StateRecording},
		{StateResponding, StateIdle},
	}

	for _, transition := range rejected {
		if canTransition(transition.from, transition.to) {
			t.Fatalf("expected transition %s -> %s to be rejected", transition.from, transition.to)
		}
	}
}
