package orchestration

import "github.com/voceto/voicebridge-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts SessionOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.TranscriptUpdated:
			if opts.onPartialTranscript != nil {
				opts.onPartialTranscript(typedEvent.Transcript)
			}
		case events.TranscriptDropped:
			if opts.onTranscriptDropped != nil {
				opts.onTranscriptDropped(typedEvent.Sequence)
			}
		case events.TranscriptFinal:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Text)
			}
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Transcript)
			}
		case events.AssistantSpeechFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		case events.AssistantPlaybackEnded:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded(typedEvent.Transcript)
			}
		case events.AssistantSpeechArtifact:
			if opts.onArtifact != nil {
				opts.onArtifact(typedEvent.Path)
			}
		case events.TurnCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		case events.SynthesisFailed:
			if opts.onSynthesisFailed != nil {
				opts.onSynthesisFailed()
			}
		case events.TurnFailed:
			if opts.onTurnFailed != nil {
				opts.onTurnFailed(typedEvent.Reason)
			}
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(typedEvent.From, typedEvent.To)
			}
		}
	}
}
