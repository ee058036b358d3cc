package deepgram

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/voceto/voicebridge-core/core/speechtotext"
)

func TestNewCallbackConfigDefaultsToNoopCallbacks(t *testing.T) {
	callbacks, wsConfig := newCallbackConfig(speechtotext.TranscriptionOptions{})

	callbacks.partialInterimTranscriptionCallback("partial")
	callbacks.interimTranscriptionCallback("interim")
	callbacks.partialTranscriptionCallback("final")
	callbacks.transcriptionCallback("full")
	callbacks.startSpeechCallback()
	callbacks.endSpeechCallback()

	if wsConfig.shouldDetectSpeechStart {
		t.Fatalf("expected speech-start detection disabled when callback is unset")
	}
	if wsConfig.shouldEnhanceSpeechEndingDetection {
		t.Fatalf("expected speech-end enhancement disabled when callbacks are unset")
	}
	if wsConfig.shouldRequestInterimResults {
		t.Fatalf("expected interim-results disabled when callbacks are unset")
	}
}

func TestNewCallbackConfigKeepsConfiguredCallbacksAndFlags(t *testing.T) {
	calls := struct {
		partialInterim, interim, partial, full, start, end atomic.Int32
	}{}

	callbacks, wsConfig := newCallbackConfig(speechtotext.TranscriptionOptions{
		PartialInterimTranscriptionCallback: func(string) { calls.partialInterim.Add(1) },
		InterimTranscriptionCallback:        func(string) { calls.interim.Add(1) },
		PartialTranscriptionCallback:        func(string) { calls.partial.Add(1) },
		TranscriptionCallback:               func(string) { calls.full.Add(1) },
		SpeechStartedCallback:               func() { calls.start.Add(1) },
		SpeechEndedCallback:                 func() { calls.end.Add(1) },
	})

	callbacks.partialInterimTranscriptionCallback("hel")
	callbacks.interimTranscriptionCallback("hello")
	callbacks.partialTranscriptionCallback("hello")
	callbacks.transcriptionCallback("hello world")
	callbacks.startSpeechCallback()
	callbacks.endSpeechCallback()

	if !wsConfig.shouldDetectSpeechStart {
		t.Fatalf("expected speech-start detection enabled")
	}
	if !wsConfig.shouldEnhanceSpeechEndingDetection {
		t.Fatalf("expected speech-end enhancement enabled")
	}
	if !wsConfig.shouldRequestInterimResults {
		t.Fatalf("expected interim-results enabled")
	}

	for name, counter := range map[string]*atomic.Int32{
		"partial interim": &calls.partialInterim,
		"interim":         &calls.interim,
		"partial":         &calls.partial,
		"full":            &calls.full,
		"speech start":    &calls.start,
		"speech end":      &calls.end,
	} {
		if got := counter.Load(); got != 1 {
			t.Fatalf("expected %s callback once, got %d", name, got)
		}
	}
}

func TestProcessMessageAccumulatesFinalSegments(t *testing.T) {
	var mu sync.Mutex
	var segments []string
	var fullTranscript string
	ends := 0

	client := NewTranscriptionClient()
	callbacks, _ := newCallbackConfig(speechtotext.TranscriptionOptions{
		PartialTranscriptionCallback: func(transcript string) {
			mu.Lock()
			segments = append(segments, transcript)
			mu.Unlock()
		},
		TranscriptionCallback: func(transcript string) {
			mu.Lock()
			fullTranscript = transcript
			mu.Unlock()
		},
		SpeechEndedCallback: func() {
			mu.Lock()
			ends++
			mu.Unlock()
		},
	})

	ctx := context.Background()
	client.processMessage(ctx, []byte(`{"type":"Results","is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":" Hello "}]}}`), callbacks)
	client.processMessage(ctx, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"world"}]}}`), callbacks)

	mu.Lock()
	defer mu.Unlock()
	if len(segments) != 2 || segments[0] != "Hello" || segments[1] != "world" {
		t.Errorf("unexpected segments: %v", segments)
	}
	if fullTranscript != "Hello world" {
		t.Errorf("expected full transcript %q, got %q", "Hello world", fullTranscript)
	}
	if ends != 1 {
		t.Errorf("expected one speech-end, got %d", ends)
	}
}

func TestProcessMessageIgnoresMalformedMessages(t *testing.T) {
	client := NewTranscriptionClient()
	callbacks, _ := newCallbackConfig(speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(string) { t.Error("unexpected transcription callback") },
	})

	client.processMessage(context.Background(), []byte(`{not json`), callbacks)
	client.processMessage(context.Background(), []byte(`{"type":"SomethingUnknown"}`), callbacks)
}
