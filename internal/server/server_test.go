package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	orchestration "github.com/voceto/voicebridge-core/core"
	"github.com/voceto/voicebridge-core/core/credentials"
	"github.com/voceto/voicebridge-core/core/llms"
	"github.com/voceto/voicebridge-core/core/speechtotext"
)

func newTestServer(t *testing.T, llm orchestration.LLM) *httptest.Server {
	return newTestServerWithTranscribers(t, llm, nil)
}

func newTestServerWithTranscribers(t *testing.T, llm orchestration.LLM, transcribers TranscriberFactory) *httptest.Server {
	t.Helper()

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithCredentialBroker(brokerStub{}),
		orchestration.WithStreamingLLM(llm),
	)
	t.Cleanup(orchestrator.Close)

	s := NewServer(0, slog.Default(), orchestrator, nil, transcribers)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial session websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// collectUntil reads outbound frames until one of the wanted type arrives,
// returning every frame seen along the way.
func collectUntil(t *testing.T, conn *websocket.Conn, wantType string) []serverMessage {
	t.Helper()

	var seen []serverMessage
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("failed to read frame while waiting for %q (saw %d frames): %v", wantType, len(seen), err)
		}
		seen = append(seen, msg)
		if msg.Type == wantType {
			return seen
		}
	}
	t.Fatalf("timed out waiting for frame %q, saw %d frames", wantType, len(seen))
	return nil
}

func sendClient(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to write client message: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", body["status"])
	}
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestSessionRejectsPlainHTTP(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})

	resp, err := http.Get(ts.URL + "/v1/session")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestSessionHandshakeDeliversCredential(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})
	conn := dialSession(t, ts)

	frames := collectUntil(t, conn, serverTypeSessionStarted)
	started := frames[len(frames)-1]

	if started.SessionID == "" {
		t.Error("expected a session id in the handshake")
	}
	if started.Credential == nil || started.Credential.Value != "tok-test" {
		t.Errorf("expected issued credential in the handshake, got %+v", started.Credential)
	}
}

func TestSessionStreamsTurnOverWebsocket(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi", "!"}})
	conn := dialSession(t, ts)
	collectUntil(t, conn, serverTypeSessionStarted)

	sendClient(t, conn, clientMessage{Type: clientTypeChannelEstablished})
	sendClient(t, conn, clientMessage{Type: clientTypeRecordingStarted})
	sendClient(t, conn, clientMessage{Type: clientTypeTranscriptDelta, Sequence: 1, Text: "Hello "})
	sendClient(t, conn, clientMessage{Type: clientTypeTranscriptFinal, Sequence: 2, Text: "world"})

	frames := collectUntil(t, conn, serverTypeResponseFinal)

	var transcript, response string
	var deltas []string
	for _, frame := range frames {
		switch frame.Type {
		case serverTypeTranscript:
			transcript = frame.Text
		case serverTypeResponseDelta:
			deltas = append(deltas, frame.Text)
		case serverTypeResponseFinal:
			response = frame.Text
		}
	}

	if transcript != "Hello world" {
		t.Errorf("expected finalized transcript %q, got %q", "Hello world", transcript)
	}
	if got := strings.Join(deltas, ""); got != "Hi!" {
		t.Errorf("expected streamed deltas to join to %q, got %q", "Hi!", got)
	}
	if response != "Hi!" {
		t.Errorf("expected final response %q, got %q", "Hi!", response)
	}
}

func TestSessionIgnoresUnknownClientMessages(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})
	conn := dialSession(t, ts)
	collectUntil(t, conn, serverTypeSessionStarted)

	sendClient(t, conn, clientMessage{Type: "experimental_nonsense"})
	sendClient(t, conn, clientMessage{Type: clientTypeChannelEstablished})
	sendClient(t, conn, clientMessage{Type: clientTypeTranscriptFinal, Sequence: 1, Text: "Hello"})

	frames := collectUntil(t, conn, serverTypeResponseFinal)
	for _, frame := range frames {
		if frame.Type == serverTypeError {
			t.Fatalf("unexpected error frame: %+v", frame)
		}
	}
}

func TestServerSideTranscriptionFeedsSession(t *testing.T) {
	ts := newTestServerWithTranscribers(t, &scriptedLLMStub{chunks: []string{"Hi!"}},
		func() Transcriber { return &transcriberStub{} })
	conn := dialSession(t, ts)
	collectUntil(t, conn, serverTypeSessionStarted)

	sendClient(t, conn, clientMessage{Type: clientTypeChannelEstablished})
	sendClient(t, conn, clientMessage{Type: clientTypeAudio, Audio: []byte("Hello ")})
	sendClient(t, conn, clientMessage{Type: clientTypeAudio, Audio: []byte("world")})
	sendClient(t, conn, clientMessage{Type: clientTypeAudio, Audio: []byte("<end>")})

	frames := collectUntil(t, conn, serverTypeResponseFinal)

	var transcript string
	for _, frame := range frames {
		if frame.Type == serverTypeTranscript {
			transcript = frame.Text
		}
	}
	if transcript != "Hello world" {
		t.Errorf("expected transcribed utterance %q, got %q", "Hello world", transcript)
	}
}

func TestAudioFramesIgnoredWithoutTranscription(t *testing.T) {
	ts := newTestServer(t, &scriptedLLMStub{chunks: []string{"Hi!"}})
	conn := dialSession(t, ts)
	collectUntil(t, conn, serverTypeSessionStarted)

	sendClient(t, conn, clientMessage{Type: clientTypeAudio, Audio: []byte("noise")})
	sendClient(t, conn, clientMessage{Type: clientTypeChannelEstablished})
	sendClient(t, conn, clientMessage{Type: clientTypeTranscriptFinal, Sequence: 1, Text: "Hello"})

	collectUntil(t, conn, serverTypeResponseFinal)
}

type brokerStub struct{}

func (brokerStub) Issue(context.Context, credentials.Scope) (credentials.Credential, error) {
	now := time.Now()
	return credentials.Credential{Value: "tok-test", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}, nil
}

type scriptedLLMStub struct {
	chunks []string
}

func (stub *scriptedLLMStub) PromptWithStream(context.Context, *string, string, []llms.Tool, ...llms.StreamingPromptOption) llms.Stream {
	return scriptedStreamStub{chunks: stub.chunks}
}

type scriptedStreamStub struct {
	chunks []string
}

func (stub scriptedStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range stub.chunks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !yield(contentChunkStub{content: chunk}, nil) {
				return
			}
		}
	}
}

// transcriberStub treats each audio frame as a recognized segment and the
// "<end>" frame as the end of the utterance.
type transcriberStub struct {
	options speechtotext.TranscriptionOptions
	started bool
}

func (stub *transcriberStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	for _, opt := range opts {
		opt(&stub.options)
	}
	return nil
}

func (stub *transcriberStub) SendAudio(audio []byte) error {
	if string(audio) == "<end>" {
		if stub.options.TranscriptionCallback != nil {
			stub.options.TranscriptionCallback("")
		}
		return nil
	}
	if !stub.started {
		stub.started = true
		if stub.options.SpeechStartedCallback != nil {
			stub.options.SpeechStartedCallback()
		}
	}
	if stub.options.PartialTranscriptionCallback != nil {
		stub.options.PartialTranscriptionCallback(string(audio))
	}
	return nil
}

func (stub *transcriberStub) StopStream() error { return nil }

type contentChunkStub struct {
	content string
}

func (chunk contentChunkStub) FinishReason() *string { return nil }
func (chunk contentChunkStub) Content() string       { return chunk.content }
