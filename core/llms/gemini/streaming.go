package gemini

import (
	"context"
	"fmt"
	"slices"

	"github.com/voceto/voicebridge-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Client talks to the Gemini API through the official SDK.
type Client struct {
	apiKey string
	model  string
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey: apiKey,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// PromptWithStream prepares a streaming generation request. The request is
// not sent until the returned stream's Chunks is iterated.
//
// Tool definitions are accepted for interface parity but are not forwarded,
// tool calling runs on the chat completions path.
func (c *Client) PromptWithStream(
	_ context.Context,
	prompt *string,
	systemPrompt string,
	baseTools []llms.Tool,
	opts ...llms.StreamingPromptOption,
) llms.Stream {
	options := llms.StreamingPromptOptions{
		Instructions: systemPrompt,
		Tools:        slices.Clone(baseTools),
	}
	for _, opt := range opts {
		opt.ApplyToStreaming(&options)
	}

	contents := toContents(options.Turns)
	if prompt != nil {
		contents = append(contents, genai.NewContentFromText(*prompt, genai.RoleUser))
	}

	return &Stream{
		client:       c,
		instructions: options.Instructions,
		contents:     contents,
	}
}

type Stream struct {
	client *Client

	instructions string
	contents     []*genai.Content
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.client.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			err = fmt.Errorf("%w: error creating client: %w", llms.ErrUpstream, err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		var config *genai.GenerateContentConfig
		if s.instructions != "" {
			config = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(s.instructions, genai.RoleUser),
			}
		}

		span.AddEvent("request started")
		for resp, err := range client.Models.GenerateContentStream(ctx, s.client.model, s.contents, config) {
			if err != nil {
				err = fmt.Errorf("%w: error reading streamed response: %w", llms.ErrUpstream, err)
				span.RecordError(err)
				yield(nil, err)
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}

			candidate := resp.Candidates[0]
			var finishReason *string
			if candidate.FinishReason != "" {
				reason := string(candidate.FinishReason)
				finishReason = &reason
			}

			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				if !yield(streamContentChunk{
					finishReason: finishReason,
					content:      part.Text,
				}, nil) {
					return
				}
			}
		}
	}
}

func toContents(turns []llms.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		if turn.Content == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if turn.Role == llms.TurnRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

type streamContentChunk struct {
	finishReason *string
	content      string
}

func (s streamContentChunk) FinishReason() *string {
	return s.finishReason
}

func (s streamContentChunk) Content() string {
	return s.content
}
