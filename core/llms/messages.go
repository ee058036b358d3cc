package llms

// Turn is a single turn taken in the conversation.
type Turn struct {
	Role TurnRole

	// Content is the content of the turn. In the user's turn it is the
	// transcribed utterance, in the assistant's turn it is the response.
	Content   string
	ToolCalls []ToolCall

	// Cancelled is true if the turn was cut short before the assistant
	// finished responding.
	Cancelled bool
}

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ToolCall is a single tool invocation requested by the model, together with
// the response produced by executing it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}
