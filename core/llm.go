package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/voceto/voicebridge-core/core/llms"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LLM is the streaming text-generation backend a session dispatches
// finalized utterances to.
type LLM interface {
	PromptWithStream(ctx context.Context, prompt *string, systemPrompt string, baseTools []llms.Tool, opts ...llms.StreamingPromptOption) llms.Stream
}

type llm struct {
	// client is the configured streaming LLM implementation.
	client LLM
	// systemPrompt is prepended to every dispatch.
	systemPrompt string
	// tools stores the effective tool list exposed to model calls.
	tools []llms.Tool
}

func (runtime *llm) set(client LLM) {
	if runtime == nil {
		return
	}

	runtime.client = client
}

func (runtime *llm) setTools(tools ...llms.Tool) {
	if runtime == nil {
		return
	}

	runtime.tools = append([]llms.Tool(nil), tools...)
}

func (runtime *llm) appendTools(tools ...llms.Tool) {
	if runtime == nil || len(tools) == 0 {
		return
	}

	runtime.tools = append(runtime.tools, tools...)
}

func (runtime *llm) snapshot() llm {
	if runtime == nil {
		return llm{}
	}

	snapshot := llm{client: runtime.client, systemPrompt: runtime.systemPrompt}
	if len(runtime.tools) > 0 {
		snapshot.tools = make([]llms.Tool, len(runtime.tools))
		copy(snapshot.tools, runtime.tools)
	}

	return snapshot
}

// generate dispatches the utterance and re-streams the response through
// onToken. Tool calls requested by the model are executed and fed back until
// the model produces a plain completion. cancelled is consulted before every
// token; once it reports true generate stops pulling from upstream and
// returns ErrTurnCancelled.
func (runtime *llm) generate(
	ctx context.Context,
	utterance string,
	history []llms.Turn,
	onToken func(string),
	cancelled func() bool,
) (*llms.Turn, error) {
	if runtime == nil || runtime.client == nil {
		return nil, fmt.Errorf("no llm client configured")
	}

	span := trace.SpanFromContext(ctx)

	userTurn := llms.Turn{Role: llms.TurnRoleUser, Content: utterance}
	toolTurn := llms.Turn{Role: llms.TurnRoleAssistant}
	for {
		turns := append(append([]llms.Turn(nil), history...), userTurn)
		if len(toolTurn.ToolCalls) > 0 {
			turns = append(turns, toolTurn)
		}

		stream := runtime.client.PromptWithStream(ctx, nil, runtime.systemPrompt, runtime.tools,
			llms.WithTurns(turns...),
		)

		var message strings.Builder
		toolCalls := []llms.ToolCall{}
		for chunk, err := range stream.Chunks(ctx) {
			if err != nil {
				err = fmt.Errorf("failed to stream llm response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			if cancelled != nil && cancelled() {
				return nil, ErrTurnCancelled
			}

			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				message.WriteString(chunk.Content())
				if onToken != nil {
					onToken(chunk.Content())
				}

			case llms.StreamToolCallChunk:
				toolCalls = append(toolCalls, chunk.ToolCall())
			}
		}

		if len(toolCalls) == 0 {
			return &llms.Turn{
				Role:      llms.TurnRoleAssistant,
				Content:   message.String(),
				ToolCalls: toolTurn.ToolCalls,
			}, nil
		}

		for _, toolCall := range toolCalls {
			response, err := runtime.callTool(ctx, toolCall)
			if err != nil {
				err = fmt.Errorf("failed to call tool: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			toolCall.Response = response
			toolTurn.ToolCalls = append(toolTurn.ToolCalls, toolCall)
		}
	}
}
