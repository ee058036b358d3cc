package orchestration

import (
	"context"
	"fmt"

	"github.com/voceto/voicebridge-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// sessionTools exposes session controls to the model so "stop talking" and
// "end the call" phrased in natural language can take effect.
func sessionTools(s *Session) []llms.Tool {
	return []llms.Tool{
		llms.NewTool("speaking_control", "Turn the assistant's voice output on or off. Might be referred to as 'muting'",
			map[string]llms.ParameterBase{
				"is_speaking": {Type: "boolean", Description: "Whether to speak or not"},
			},
			func(parameters struct {
				IsSpeaking bool `json:"is_speaking"`
			}) (string, error) {
				s.SetSpeaking(parameters.IsSpeaking)
				return "Success. Respond with a very short phrase", nil
			}),
		llms.NewTool("end_session", "End the current voice session. Might be referred to as 'hanging up'",
			map[string]llms.ParameterBase{},
			func(struct{}) (string, error) {
				go s.Close()
				return "Success. Respond with a very short goodbye", nil
			}),
	}
}

func (runtime *llm) callTool(ctx context.Context, toolCall llms.ToolCall) (string, error) {
	toolName := toolCall.Name

	_, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", toolName))

	for _, tool := range runtime.tools {
		if tool.Function.Name == toolName {
			response, err := tool.Execute(toolCall.Arguments)
			if err != nil {
				err = fmt.Errorf("failed to execute tool %q: %w", toolName, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return "", err
			}
			return response, nil
		}
	}

	err := fmt.Errorf("tool not found: %s", toolName)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "", err
}
