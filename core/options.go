package orchestration

import (
	"time"

	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/audio/transcode"
	"github.com/voceto/voicebridge-core/core/credentials"
	"github.com/voceto/voicebridge-core/core/llms"
)

type OrchestratorOption func(*Orchestrator)

// WithCredentialBroker sets the broker that mints the per-session signaling
// credential. A broker is required: sessions never start without one.
func WithCredentialBroker(broker credentials.Broker) OrchestratorOption {
	return func(o *Orchestrator) { o.broker = broker }
}

// WithStreamingLLM sets the streaming text-generation backend.
func WithStreamingLLM(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.set(client) }
}

// WithSystemPrompt sets the system instruction sent with every dispatch.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.systemPrompt = prompt }
}

// WithTools sets the tools exposed to the model. Repeating this option
// overwrites the previous tool list.
func WithTools(tools ...llms.Tool) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.setTools(tools...) }
}

// WithSessionTools exposes session controls (muting, ending the call) to the
// model as tools.
func WithSessionTools() OrchestratorOption {
	return func(o *Orchestrator) { o.useSessionTools = true }
}

// WithTextToSpeechClient sets the synthesis backend. Sessions without one
// produce text-only turns.
func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

// AudioOutput is a local playback sink for synthesized speech.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

// WithAudioOutput sets a local playback sink. Synthesized speech is still
// emitted through session events regardless of the sink.
func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = client }
}

// WithSpeechArtifacts additionally buffers each turn's synthesized speech
// into an ephemeral playable artifact, announced through an artifact event.
// The consumer owns deletion of the artifact file.
func WithSpeechArtifacts(transcoder *transcode.Transcoder, codec audio.CodecParams) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcoder = transcoder
		o.artifactCodec = codec
	}
}

// WithIdleTimeout overrides how long a session may sit without events before
// it is torn down and its credential released.
func WithIdleTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.idleTimeout = timeout
		}
	}
}

// SessionOptions carries the per-session callbacks the client surface is
// wired through.
type SessionOptions struct {
	onPartialTranscript func(transcript string)
	onTranscriptDropped func(sequence uint64)
	onTranscript        func(transcript string)
	onResponse          func(token string)
	onResponseEnd       func(response string)
	onAudio             func(audio []byte)
	onAudioEnded        func(transcript string)
	onArtifact          func(path string)
	onCancellation      func()
	onSynthesisFailed   func()
	onTurnFailed        func(reason string)
	onStateChanged      func(from, to string)
}

type SessionOption func(*SessionOptions)

// WithPartialTranscriptCallback registers a callback for the running partial
// transcript of the utterance being recorded.
func WithPartialTranscriptCallback(callback func(transcript string)) SessionOption {
	return func(o *SessionOptions) { o.onPartialTranscript = callback }
}

// WithTranscriptDroppedCallback registers a callback for transcript events
// rejected by the ordering check. The rejected payload is already gone.
func WithTranscriptDroppedCallback(callback func(sequence uint64)) SessionOption {
	return func(o *SessionOptions) { o.onTranscriptDropped = callback }
}

// WithTranscriptCallback registers a callback for finalized utterances.
func WithTranscriptCallback(callback func(transcript string)) SessionOption {
	return func(o *SessionOptions) { o.onTranscript = callback }
}

// WithResponseCallback registers a callback for streamed response tokens.
func WithResponseCallback(callback func(token string)) SessionOption {
	return func(o *SessionOptions) { o.onResponse = callback }
}

// WithResponseEndCallback registers a callback for the completed response
// text.
func WithResponseEndCallback(callback func(response string)) SessionOption {
	return func(o *SessionOptions) { o.onResponseEnd = callback }
}

// WithAudioCallback registers a callback for synthesized audio chunks.
func WithAudioCallback(callback func(audio []byte)) SessionOption {
	return func(o *SessionOptions) { o.onAudio = callback }
}

// WithAudioEndedCallback registers a callback for the end of a turn's audio
// delivery.
func WithAudioEndedCallback(callback func(transcript string)) SessionOption {
	return func(o *SessionOptions) { o.onAudioEnded = callback }
}

// WithArtifactCallback registers a callback for buffered speech artifacts.
// The receiver owns deletion of the artifact file.
func WithArtifactCallback(callback func(path string)) SessionOption {
	return func(o *SessionOptions) { o.onArtifact = callback }
}

// WithCancellationCallback registers a callback for abandoned turns.
func WithCancellationCallback(callback func()) SessionOption {
	return func(o *SessionOptions) { o.onCancellation = callback }
}

// WithSynthesisFailedCallback registers a callback for turns whose text
// completed without audio.
func WithSynthesisFailedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) { o.onSynthesisFailed = callback }
}

// WithTurnFailedCallback registers a callback for turns ended by an error.
func WithTurnFailedCallback(callback func(reason string)) SessionOption {
	return func(o *SessionOptions) { o.onTurnFailed = callback }
}

// WithStateChangedCallback registers a callback for session state machine
// transitions.
func WithStateChangedCallback(callback func(from, to string)) SessionOption {
	return func(o *SessionOptions) { o.onStateChanged = callback }
}
