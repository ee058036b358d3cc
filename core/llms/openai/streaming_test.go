package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voceto/voicebridge-core/core/llms"
	"github.com/voceto/voicebridge-core/internal/utils"
)

func collectChunks(t *testing.T, stream llms.Stream) (string, []llms.ToolCall, []error) {
	t.Helper()

	var content strings.Builder
	var toolCalls []llms.ToolCall
	var errs []error
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if contentChunk, ok := chunk.(llms.StreamContentChunk); ok {
			content.WriteString(contentChunk.Content())
		}
		if toolCallChunk, ok := chunk.(llms.StreamToolCallChunk); ok {
			toolCalls = append(toolCalls, toolCallChunk.ToolCall())
		}
	}
	return content.String(), toolCalls, errs
}

func sseHandler(t *testing.T, requestBody *requestBody, lines ...string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if requestBody != nil {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("failed to read request body: %v", err)
			}
			if err := json.Unmarshal(body, requestBody); err != nil {
				t.Errorf("failed to unmarshal request body: %v", err)
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			if _, err := io.WriteString(w, "data: "+line+"\n\n"); err != nil {
				return
			}
		}
	}
}

func TestPromptWithStreamContent(t *testing.T) {
	var capturedRequest requestBody
	server := httptest.NewServer(sseHandler(t, &capturedRequest,
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"delta":{"content":"Hi"}}]}`,
		`{"choices":[{"delta":{"content":"!"},"finish_reason":"stop"}]}`,
		`[DONE]`,
	))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithModel("test-model"))
	stream := client.PromptWithStream(context.Background(), utils.Ptr("hello"), "You are terse.", nil)

	content, toolCalls, errs := collectChunks(t, stream)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if content != "Hi!" {
		t.Errorf("expected content %q, got %q", "Hi!", content)
	}
	if len(toolCalls) != 0 {
		t.Errorf("expected no tool calls, got %v", toolCalls)
	}

	if capturedRequest.Model != "test-model" {
		t.Errorf("expected model %q, got %q", "test-model", capturedRequest.Model)
	}
	if !capturedRequest.Stream {
		t.Error("expected a streaming request")
	}
	if len(capturedRequest.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(capturedRequest.Messages))
	}
	if capturedRequest.Messages[0].Role != messageRoleSystem {
		t.Errorf("expected first message to be the system prompt, got role %q", capturedRequest.Messages[0].Role)
	}
	if capturedRequest.Messages[1].Content != "hello" {
		t.Errorf("expected prompt %q, got %q", "hello", capturedRequest.Messages[1].Content)
	}
}

func TestPromptWithStreamToolCalls(t *testing.T) {
	var capturedRequest requestBody
	server := httptest.NewServer(sseHandler(t, &capturedRequest,
		`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"end_call","arguments":"{}"}}]}}]}`,
		`[DONE]`,
	))
	defer server.Close()

	tools := []llms.Tool{llms.NewTool("end_call", "Hang up the call",
		map[string]llms.ParameterBase{},
		func(struct{}) (string, error) { return "", nil }),
	}

	client := NewClient("test-key", WithBaseURL(server.URL))
	stream := client.PromptWithStream(context.Background(), utils.Ptr("bye"), "", tools)

	_, toolCalls, errs := collectChunks(t, stream)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(toolCalls))
	}
	if toolCalls[0].Name != "end_call" {
		t.Errorf("expected tool call %q, got %q", "end_call", toolCalls[0].Name)
	}

	if capturedRequest.ToolChoice == nil || *capturedRequest.ToolChoice != "auto" {
		t.Errorf("expected tool choice auto, got %v", capturedRequest.ToolChoice)
	}
	if len(capturedRequest.Tools) != 1 || capturedRequest.Tools[0].Function.Name != "end_call" {
		t.Errorf("expected end_call tool in request, got %v", capturedRequest.Tools)
	}
}

func TestPromptWithStreamNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	stream := client.PromptWithStream(context.Background(), utils.Ptr("hello"), "", nil)

	content, _, errs := collectChunks(t, stream)
	if content != "" {
		t.Errorf("expected no content, got %q", content)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], llms.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", errs[0])
	}
}

func TestPromptWithStreamDroppedMidStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("failed to hijack connection: %v", err)
			return
		}
		defer conn.Close()

		buf.WriteString("HTTP/1.1 200 OK\r\n")
		buf.WriteString("Content-Type: text/event-stream\r\n")
		buf.WriteString("Content-Length: 4096\r\n\r\n")
		buf.WriteString(`data: {"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n")
		buf.Flush()
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	stream := client.PromptWithStream(context.Background(), utils.Ptr("hello"), "", nil)

	content, _, errs := collectChunks(t, stream)
	if content != "Hi" {
		t.Errorf("expected tokens received before the drop, got %q", content)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], llms.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", errs[0])
	}
}

func TestPromptWithStreamStopsWhenYieldReturnsFalse(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, nil,
		`{"choices":[{"delta":{"content":"one"}}]}`,
		`{"choices":[{"delta":{"content":"two"}}]}`,
		`{"choices":[{"delta":{"content":"three"}}]}`,
		`[DONE]`,
	))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	stream := client.PromptWithStream(context.Background(), utils.Ptr("hello"), "", nil)

	var chunks int
	for _, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks++
		break
	}
	if chunks != 1 {
		t.Errorf("expected iteration to stop after 1 chunk, got %d", chunks)
	}
}
