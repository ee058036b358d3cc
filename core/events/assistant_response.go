package events

const (
	// KindAssistantResponseSegment identifies one streamed response token.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseFinal identifies the completed response text.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseSegment carries one response token in production order.
// Concatenating segments by sequence reconstructs the full response text.
type AssistantResponseSegment struct {
	Base
	Sequence uint64
	Segment  string
}

// NewAssistantResponseSegment creates a streamed response token event.
func NewAssistantResponseSegment(sequence uint64, segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), Sequence: sequence, Segment: segment}
}

// AssistantResponseFinal marks response streaming as complete and carries
// the full response text.
type AssistantResponseFinal struct {
	Base
	Transcript string
}

// NewAssistantResponseFinal creates a response complete event.
func NewAssistantResponseFinal(transcript string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Transcript: transcript}
}
