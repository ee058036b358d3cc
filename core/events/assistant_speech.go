package events

const (
	// KindAssistantSpeechFrame identifies one synthesized audio chunk.
	KindAssistantSpeechFrame Kind = "assistant_speech.frame"
	// KindAssistantSpeechArtifact identifies a buffered, playable artifact.
	KindAssistantSpeechArtifact Kind = "assistant_speech.artifact"
	// KindAssistantPlaybackEnded identifies completed playback of a turn.
	KindAssistantPlaybackEnded Kind = "assistant_speech.playback_ended"
)

// AssistantSpeechFrame carries one chunk of synthesized audio in playback
// order.
type AssistantSpeechFrame struct {
	Base
	Audio []byte
}

// NewAssistantSpeechFrame creates a synthesized audio chunk event.
func NewAssistantSpeechFrame(audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), Audio: audio}
}

// AssistantSpeechArtifact carries the path of a buffered playable artifact.
// The file is ephemeral: the consumer owns its deletion.
type AssistantSpeechArtifact struct {
	Base
	Path string
}

// NewAssistantSpeechArtifact creates a buffered artifact event.
func NewAssistantSpeechArtifact(path string) AssistantSpeechArtifact {
	return AssistantSpeechArtifact{Base: NewBase(KindAssistantSpeechArtifact), Path: path}
}

// AssistantPlaybackEnded marks the end of audio delivery for a turn and
// carries the transcript of what was actually delivered.
type AssistantPlaybackEnded struct {
	Base
	Transcript string
}

// NewAssistantPlaybackEnded creates a playback ended event.
func NewAssistantPlaybackEnded(transcript string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Transcript: transcript}
}
