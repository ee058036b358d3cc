package llms

// StreamingPromptOptions is a struct that contains all the options for a
// streaming prompt.
type StreamingPromptOptions struct {
	Instructions string
	Turns        []Turn
	Tools        []Tool
}

type StructuredPromptOptions struct {
	Instructions string
	Turns        []Turn
}

// PromptOption is a function that can be used to modify the prompt options.
type PromptOption func(*StreamingPromptOptions)

type StreamingPromptOption interface {
	ApplyToStreaming(*StreamingPromptOptions)
}

type StructuredPromptOption interface {
	ApplyToStructured(*StructuredPromptOptions)
}

func (f PromptOption) ApplyToStreaming(o *StreamingPromptOptions) {
	f(o)
}

func (f PromptOption) ApplyToStructured(o *StructuredPromptOptions) {
	opts := StreamingPromptOptions{
		Instructions: o.Instructions,
		Turns:        o.Turns,
	}
	f(&opts)
	o.Instructions = opts.Instructions
	o.Turns = opts.Turns
}

// WithSystemPrompt is a PromptOption that sets the system prompt for the
// prompt. Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) PromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Instructions = prompt
	}
}

// WithTurns is a PromptOption that adds turns information to the prompt.
// Repeating this option will sequentially add more turns.
func WithTurns(turns ...Turn) PromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Turns = append(opts.Turns, turns...)
	}
}

// WithTools is a PromptOption that adds tools to the prompt.
//
// This option does nothing for structured prompts.
func WithTools(tools ...Tool) PromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
	}
}
