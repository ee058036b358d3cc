package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/voceto/voicebridge-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// PromptJSONSchema sends a non-streaming completion request constrained to
// the JSON schema reflected from outputSchema and unmarshals the response
// into it.
func PromptJSONSchema[T any](
	ctx context.Context,
	client *Client,
	prompt string,
	systemPrompt string,
	outputSchema T,
	opts ...llms.StructuredPromptOption,
) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	options := llms.StructuredPromptOptions{Instructions: systemPrompt}
	for _, opt := range opts {
		opt.ApplyToStructured(&options)
	}

	messages := toMessages(options.Instructions, options.Turns)
	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})

	schema, outputTypeName := llms.SchemaFor(outputSchema)

	reqBody := schemaRequestBody{
		Model:    client.model,
		Messages: messages,
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   outputTypeName,
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", client.model))
	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", client.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := client.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: error sending request: %w", llms.ErrUpstream, err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}

		err := fmt.Errorf("%w: non-OK HTTP status: %s", llms.ErrUpstream, resp.Status)
		span.RecordError(err)
		return nil, err
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: error reading response body: %w", llms.ErrUpstream, err)
		span.RecordError(err)
		return nil, err
	}
	var responseBody schemaResponseBody
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		err = fmt.Errorf("%w: error unmarshalling response body: %w", llms.ErrUpstream, err)
		span.RecordError(err)
		return nil, err
	}
	if len(responseBody.Choices) == 0 {
		err := fmt.Errorf("%w: response contained no choices", llms.ErrUpstream)
		span.RecordError(err)
		return nil, err
	}

	content := responseBody.Choices[0].Message.Content
	split := strings.Split(content, "```")
	if len(split) > 1 {
		content = split[1]
	}
	if err := json.Unmarshal([]byte(content), &outputSchema); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		return nil, err
	}

	return &outputSchema, nil
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict"`
}

type schemaResponseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
