package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/core/llms"
	"github.com/voceto/voicebridge-core/core/texttospeech"
)

func TestTurnSynthesizesAndPlaysSpeech(t *testing.T) {
	o := NewOrchestrator(
		WithCredentialBroker(&brokerStub{}),
		WithStreamingLLM(&scriptedStreamLLMStub{chunks: []string{"Hello.", " Bye."}}),
		WithTextToSpeechClient(echoTTSClientStub{}),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var states syncStrings
	var audio syncStrings
	audioEnded := make(chan string, 1)

	session, err := o.StartSession(ctx,
		WithStateChangedCallback(func(_, to string) { states.append(to + " ") }),
		WithAudioCallback(func(chunk []byte) { audio.append(string(chunk)) }),
		WithAudioEndedCallback(func(transcript string) {
			select {
			case audioEnded <- transcript:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("expected session to start, got %v", err)
	}
	defer session.Close()

	deliverAll(t, session,
		events.NewChannelEstablished(),
		events.NewTranscriptFinal(1, "greet me"),
	)

	select {
	case transcript := <-audioEnded:
		if transcript != "Hello. Bye." {
			t.Fatalf("expected playback transcript %q, got %q", "Hello. Bye.", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback end")
	}

	if got := audio.joined(); got != "Hello. Bye." {
		t.Fatalf("expected synthesized audio %q, got %q", "Hello. Bye.", got)
	}

	waitForState(t, session, StateIdle)

	visited := states.joined()
	for _, state := range []SessionState{StateSynthesizing, StatePlaying} {
		if !strings.Contains(visited, string(state)) {
			t.Fatalf("expected session to pass through %s, visited: %s", state, visited)
		}
	}
}

func TestSynthesisFailureKeepsTextOutput(t *testing.T) {
	o := NewOrchestrator(
		WithCredentialBroker(&brokerStub{}),
		WithStreamingLLM(&scriptedStreamLLMStub{chunks: []string{"Hi", "!"}}),
		WithTextToSpeechClient(failingTTSClientStub{}),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	turnFailures := atomic.Int32{}
	synthesisNotices := atomic.Int32{}
	responseEnded := make(chan string, 1)

	session, err := o.StartSession(ctx,
		WithResponseEndCallback(func(response string) {
			select {
			case responseEnded <- response:
			default:
			}
		}),
		WithSynthesisFailedCallback(func() { synthesisNotices.Add(1) }),
		WithTurnFailedCallback(func(string) { turnFailures.Add(1) }),
	)
	if err != nil {
		t.Fatalf("expected session to start, got %v", err)
	}
	defer session.Close()

	deliverAll(t, session,
		events.NewChannelEstablished(),
		events.NewTranscriptFinal(1, "anything"),
	)

	select {
	case response := <-responseEnded:
		if response != "Hi!" {
			t.Fatalf("expected text output %q despite synthesis failure, got %q", "Hi!", response)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response end")
	}

	waitForState(t, session, StateIdle)

	if got := turnFailures.Load(); got != 0 {
		t.Fatalf("expected synthesis failure to not fail the turn, got %d failures", got)
	}
	if got := synthesisNotices.Load(); got != 1 {
		t.Fatalf("expected one synthesis failure notice, got %d", got)
	}
}

func TestNoStaleAudioAfterBargeIn(t *testing.T) {
	o := NewOrchestrator(
		WithCredentialBroker(&brokerStub{}),
		WithStreamingLLM(&repeatingStreamLLMStub{chunk: "chunk. ", interval: 10 * time.Millisecond}),
		WithTextToSpeechClient(echoTTSClientStub{}),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audioChunks := atomic.Int32{}
	cancelled := make(chan struct{}, 1)

	session, err := o.StartSession(ctx,
		WithAudioCallback(func([]byte) { audioChunks.Add(1) }),
		WithCancellationCallback(func() {
			select {
			case cancelled <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("expected session to start, got %v", err)
	}
	defer session.Close()

	deliverAll(t, session,
		events.NewChannelEstablished(),
		events.NewTranscriptFinal(1, "talk forever"),
	)

	deadline := time.Now().Add(2 * time.Second)
	for audioChunks.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for first audio chunk")
		}
		time.Sleep(5 * time.Millisecond)
	}

	deliverAll(t, session, events.NewRecordingStarted())

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cancellation")
	}

	delivered := audioChunks.Load()
	time.Sleep(150 * time.Millisecond)
	if got := audioChunks.Load(); got != delivered {
		t.Fatalf("expected no audio after barge-in, got %d additional chunks", got-delivered)
	}

	waitForState(t, session, StateRecording)
}

func TestGenerateExecutesToolCalls(t *testing.T) {
	var executedArguments atomic.Value
	endCall := llms.NewTool("end_call", "End the current call",
		map[string]llms.ParameterBase{
			"reason": {Type: "string", Description: "Why the call ends"},
		},
		func(parameters struct {
			Reason string `json:"reason"`
		}) (string, error) {
			executedArguments.Store(parameters.Reason)
			return "call ended", nil
		})

	client := &toolLoopLLMStub{
		toolCall: llms.ToolCall{ID: "call_1", Name: "end_call", Arguments: `{"reason":"user asked"}`},
		content:  "Goodbye!",
	}

	runtime := llm{client: client}
	runtime.setTools(endCall)

	response, err := runtime.generate(context.Background(), "hang up", nil, nil, nil)
	if err != nil {
		t.Fatalf("expected generation to succeed, got %v", err)
	}

	if response.Content != "Goodbye!" {
		t.Fatalf("expected final content %q, got %q", "Goodbye!", response.Content)
	}
	if len(response.ToolCalls) != 1 || response.ToolCalls[0].Response != "call ended" {
		t.Fatalf("expected recorded tool call with response, got %+v", response.ToolCalls)
	}
	if got, _ := executedArguments.Load().(string); got != "user asked" {
		t.Fatalf("expected tool to receive typed arguments, got %q", got)
	}
	if calls := client.calls.Load(); calls != 2 {
		t.Fatalf("expected a follow-up prompt after tool execution, got %d calls", calls)
	}
}

type echoTTSClientStub struct{}

func (echoTTSClientStub) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &echoGeneratorStub{options: options}, nil
}

// echoGeneratorStub synthesizes text into its own bytes so tests can assert
// on audio content and mark ordering.
type echoGeneratorStub struct {
	options texttospeech.TextToSpeechOptions

	mu      sync.Mutex
	pending strings.Builder
}

func (g *echoGeneratorStub) SendText(text string) error {
	g.mu.Lock()
	g.pending.WriteString(text)
	g.mu.Unlock()

	if g.options.SpeechAudioCallback != nil {
		g.options.SpeechAudioCallback([]byte(text))
	}
	return nil
}

func (g *echoGeneratorStub) Mark() error {
	g.mu.Lock()
	segment := g.pending.String()
	g.pending.Reset()
	g.mu.Unlock()

	if g.options.SpeechMarkCallback != nil {
		g.options.SpeechMarkCallback(segment)
	}
	return nil
}

func (g *echoGeneratorStub) EndOfText() error {
	if g.options.SpeechEndedCallback != nil {
		g.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{})
	}
	return nil
}

func (g *echoGeneratorStub) Cancel() error { return nil }
func (g *echoGeneratorStub) Close() error  { return nil }

type failingTTSClientStub struct{}

func (failingTTSClientStub) NewSpeechGenerator(context.Context, ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	return nil, fmt.Errorf("%w: connection refused", texttospeech.ErrSynthesisFailed)
}

// toolLoopLLMStub requests a tool call on the first prompt and completes
// with plain content on the follow-up.
type toolLoopLLMStub struct {
	toolCall llms.ToolCall
	content  string
	calls    atomic.Int32
}

func (stub *toolLoopLLMStub) PromptWithStream(context.Context, *string, string, []llms.Tool, ...llms.StreamingPromptOption) llms.Stream {
	call := stub.calls.Add(1)
	if call == 1 {
		return toolCallStreamStub{toolCall: stub.toolCall}
	}
	return scriptedStreamStub{chunks: []string{stub.content}}
}

type toolCallStreamStub struct {
	toolCall llms.ToolCall
}

func (stub toolCallStreamStub) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		yield(streamToolCallChunkStub{toolCall: stub.toolCall}, nil)
	}
}

type streamToolCallChunkStub struct {
	toolCall llms.ToolCall
}

func (chunk streamToolCallChunkStub) FinishReason() *string   { return nil }
func (chunk streamToolCallChunkStub) ToolCall() llms.ToolCall { return chunk.toolCall }
