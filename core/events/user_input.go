package events

const (
	// KindChannelEstablished identifies the signaling channel coming up.
	KindChannelEstablished Kind = "user_input.channel_established"
	// KindRecordingStarted identifies the start of a new user utterance.
	// Received while a turn is in flight it triggers barge-in.
	KindRecordingStarted Kind = "user_input.recording_started"
	// KindTranscriptDelta identifies an incremental transcription fragment.
	KindTranscriptDelta Kind = "user_input.transcript_delta"
	// KindTranscriptFinal identifies the terminal transcription fragment of
	// an utterance. Its payload is the last increment, not a replacement.
	KindTranscriptFinal Kind = "user_input.transcript_final"
	// KindTranscriptUpdated identifies the accumulated partial transcript of
	// the utterance being recorded, echoed back to the client.
	KindTranscriptUpdated Kind = "user_input.transcript_updated"
	// KindTranscriptDropped identifies a transcription fragment rejected by
	// the accumulator's ordering check.
	KindTranscriptDropped Kind = "user_input.transcript_dropped"
)

// ChannelEstablished marks the signaling channel as negotiated and ready.
type ChannelEstablished struct{ Base }

// NewChannelEstablished creates a channel established event.
func NewChannelEstablished() ChannelEstablished {
	return ChannelEstablished{Base: NewBase(KindChannelEstablished)}
}

// RecordingStarted marks the beginning of a new user utterance.
type RecordingStarted struct{ Base }

// NewRecordingStarted creates a recording started event.
func NewRecordingStarted() RecordingStarted {
	return RecordingStarted{Base: NewBase(KindRecordingStarted)}
}

// TranscriptDelta carries one transcription fragment. Sequence numbers are
// strictly increasing within an utterance; out-of-order deltas are dropped
// by the accumulator.
type TranscriptDelta struct {
	Base
	Sequence uint64
	Text     string
}

// NewTranscriptDelta creates a transcript delta event.
func NewTranscriptDelta(sequence uint64, text string) TranscriptDelta {
	return TranscriptDelta{Base: NewBase(KindTranscriptDelta), Sequence: sequence, Text: text}
}

// TranscriptFinal closes the current utterance. Text is the final increment
// appended after all accepted deltas.
type TranscriptFinal struct {
	Base
	Sequence uint64
	Text     string
}

// NewTranscriptFinal creates a transcript final event.
func NewTranscriptFinal(sequence uint64, text string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Sequence: sequence, Text: text}
}

// TranscriptUpdated carries the running partial transcript of the current
// utterance.
type TranscriptUpdated struct {
	Base
	Transcript string
}

// NewTranscriptUpdated creates a partial transcript update event.
func NewTranscriptUpdated(transcript string) TranscriptUpdated {
	return TranscriptUpdated{Base: NewBase(KindTranscriptUpdated), Transcript: transcript}
}

// TranscriptDropped reports a duplicate or reordered transcription fragment
// that the accumulator refused. The fragment itself is discarded.
type TranscriptDropped struct {
	Base
	Sequence uint64
}

// NewTranscriptDropped creates a transcript dropped event.
func NewTranscriptDropped(sequence uint64) TranscriptDropped {
	return TranscriptDropped{Base: NewBase(KindTranscriptDropped), Sequence: sequence}
}
