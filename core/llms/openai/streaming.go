package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/voceto/voicebridge-core/core/llms"
	"github.com/voceto/voicebridge-core/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Client talks to the chat completions API of OpenAI or any compatible
// provider.
type Client struct {
	apiKey  string
	model   string
	baseURL string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, e.g. to point at a compatible
// provider or a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		baseURL: defaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// PromptWithStream prepares a streaming completion request. The request is
// not sent until the returned stream's Chunks is iterated.
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

	messages := toMessages(options.Instructions, options.Turns)
	if prompt != nil {
		messages = append(messages, message{
			Role:    messageRoleUser,
			Content: *prompt,
		})
	}

	var tools []tool
	if options.Tools != nil {
		copier.Copy(&tools, options.Tools)
	}

	return &Stream{
		client:   c,
		tools:    tools,
		messages: messages,
	}
}

type Stream struct {
	client *Client

	tools    []tool
	messages []message
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	requestToFirstTokenTime := time.Time{}
	setRequestToFirstTokenTime := func(span trace.Span) {
		if requestToFirstTokenTime.IsZero() {
			return
		}
		span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestToFirstTokenTime).Seconds()))
		span.AddEvent("received first chunk")
		requestToFirstTokenTime = time.Time{}
	}

	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))
		var toolNames []string
		for _, tool := range s.tools {
			toolNames = append(toolNames, tool.Function.Name)
		}
		span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))

		var toolChoice *string
		if s.tools != nil {
			toolChoice = utils.Ptr("auto")
		}

		reqBody := requestBody{
			Model:      s.client.model,
			Messages:   s.messages,
			Stream:     true,
			Tools:      s.tools,
			ToolChoice: toolChoice,
		}

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", s.client.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		requestToFirstTokenTime = time.Now()
		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("%w: error sending request: %w", llms.ErrUpstream, err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}

			err := fmt.Errorf("%w: non-OK HTTP status: %s", llms.ErrUpstream, resp.Status)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		toolCalls := []toolCall{}
		defer func() {
			toolNames := []string{}
			for _, toolCall := range toolCalls {
				toolNames = append(toolNames, toolCall.Function.Name)
			}
			span.SetAttributes(attribute.StringSlice("response.tool_calls", toolNames))
		}()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			setRequestToFirstTokenTime(span)

			if len(chunk) == 0 {
				continue
			}

			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			err := json.Unmarshal([]byte(chunk), &responseBody)
			if err != nil {
				err = fmt.Errorf("%w: error unmarshalling JSON: %w", llms.ErrUpstream, err)
				span.RecordError(err)
				if !yield(nil, err) {
					return
				}
				continue
			}
			var finishReason *string
			if len(responseBody.Choices) > 0 {
				choice := responseBody.Choices[0]
				delta := choice.Delta

				if choice.FinishReason != nil {
					finishReason = choice.FinishReason
				}

				if len(delta.ToolCalls) > 0 {
					toolCalls = append(toolCalls, delta.ToolCalls...)
					for _, toolCall := range delta.ToolCalls {
						if !yield(streamToolCallChunk{
							finishReason: finishReason,
							toolCall: llms.ToolCall{
								ID:        toolCall.ID,
								Name:      toolCall.Function.Name,
								Arguments: toolCall.Function.Arguments,
							},
						}, nil) {
							return
						}
					}
				}

				if delta.Content != "" {
					if !yield(streamContentChunk{
						finishReason: finishReason,
						content:      delta.Content,
					}, nil) {
						return
					}
				}
			}

			if responseBody.Usage != nil {
				span.SetAttributes(attribute.Int("usage.input", responseBody.Usage.PromptTokens))
				span.SetAttributes(attribute.Int("usage.output", responseBody.Usage.CompletionTokens))
				span.SetAttributes(attribute.Int("usage.total", responseBody.Usage.TotalTokens))

				if !yield(streamUsageChunk{
					finishReason: finishReason,
					usage: llms.Usage{
						InputTokens:  responseBody.Usage.PromptTokens,
						OutputTokens: responseBody.Usage.CompletionTokens,
						TotalTokens:  responseBody.Usage.TotalTokens,
					},
				}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			err = fmt.Errorf("%w: error reading streamed response: %w", llms.ErrUpstream, err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
	}
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  llms.ToolParameters `json:"parameters"`
}

type requestBody struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Stream     bool      `json:"stream"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []tool    `json:"tools,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
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

type streamToolCallChunk struct {
	finishReason *string
	toolCall     llms.ToolCall
}

func (s streamToolCallChunk) FinishReason() *string {
	return s.finishReason
}

func (s streamToolCallChunk) ToolCall() llms.ToolCall {
	return s.toolCall
}

type streamUsageChunk struct {
	finishReason *string
	usage        llms.Usage
}

func (s streamUsageChunk) FinishReason() *string {
	return s.finishReason
}

func (s streamUsageChunk) Usage() llms.Usage {
	return s.usage
}
