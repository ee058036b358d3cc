package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "channel established", event: NewChannelEstablished(), expected: KindChannelEstablished},
		{name: "recording started", event: NewRecordingStarted(), expected: KindRecordingStarted},
		{name: "transcript delta", event: NewTranscriptDelta(1, "hel"), expected: KindTranscriptDelta},
		{name: "transcript final", event: NewTranscriptFinal(2, "lo"), expected: KindTranscriptFinal},
		{name: "transcript updated", event: NewTranscriptUpdated("text"), expected: KindTranscriptUpdated},
		{name: "transcript dropped", event: NewTranscriptDropped(2), expected: KindTranscriptDropped},
		{name: "assistant response segment", event: NewAssistantResponseSegment(1, "seg"), expected: KindAssistantResponseSegment},
		{name: "assistant response final", event: NewAssistantResponseFinal("text"), expected: KindAssistantResponseFinal},
		{name: "assistant speech frame", event: NewAssistantSpeechFrame([]byte{1}), expected: KindAssistantSpeechFrame},
		{name: "assistant speech artifact", event: NewAssistantSpeechArtifact("/tmp/a.ogg"), expected: KindAssistantSpeechArtifact},
		{name: "assistant playback ended", event: NewAssistantPlaybackEnded("text"), expected: KindAssistantPlaybackEnded},
		{name: "turn cancelled", event: NewTurnCancelled(), expected: KindTurnCancelled},
		{name: "turn failed", event: NewTurnFailed("upstream", errors.New("boom")), expected: KindTurnFailed},
		{name: "synthesis failed", event: NewSynthesisFailed(errors.New("no audio")), expected: KindSynthesisFailed},
		{name: "session state changed", event: NewSessionStateChanged("idle", "connecting"), expected: KindSessionStateChanged},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestKindsAreUnique(t *testing.T) {
	kinds := []Kind{
		KindChannelEstablished,
		KindRecordingStarted,
		KindTranscriptDelta,
		KindTranscriptFinal,
		KindTranscriptUpdated,
		KindTranscriptDropped,
		KindAssistantResponseSegment,
		KindAssistantResponseFinal,
		KindAssistantSpeechFrame,
		KindAssistantSpeechArtifact,
		KindAssistantPlaybackEnded,
		KindTurnCancelled,
		KindTurnFailed,
		KindSynthesisFailed,
		KindSessionStateChanged,
	}

	seen := map[Kind]struct{}{}
	for _, kind := range kinds {
		if _, ok := seen[kind]; ok {
			t.Fatalf("duplicate event kind %q", kind)
		}
		seen[kind] = struct{}{}
	}
}
