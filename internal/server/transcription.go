package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	orchestration "github.com/voceto/voicebridge-core/core"
	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/core/speechtotext"
)

// Transcriber is the streaming speech-to-text client used when the daemon
// transcribes client audio itself instead of relying on client-side
// transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
}

// TranscriberFactory creates one transcriber per websocket session.
type TranscriberFactory func() Transcriber

// sessionTranscription feeds inbound audio frames through a transcriber and
// delivers the recognized fragments to the session. Sequence numbers are
// assigned here, monotonically per session.
type sessionTranscription struct {
	factory TranscriberFactory
	session *orchestration.Session
	logger  *slog.Logger

	mu          sync.Mutex
	transcriber Transcriber
	sequence    atomic.Uint64
}

func newSessionTranscription(factory TranscriberFactory, session *orchestration.Session, logger *slog.Logger) *sessionTranscription {
	return &sessionTranscription{factory: factory, session: session, logger: logger}
}

func (t *sessionTranscription) sendAudio(ctx context.Context, audio []byte) error {
	transcriber, err := t.ensureStarted(ctx)
	if err != nil {
		return err
	}
	return transcriber.SendAudio(audio)
}

// ensureStarted lazily opens the transcription stream on the first audio
// frame. Recognized segments arrive through the delta path; the utterance-end
// signal finalizes whatever the accumulator holds.
func (t *sessionTranscription) ensureStarted(ctx context.Context) (Transcriber, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transcriber != nil {
		return t.transcriber, nil
	}

	transcriber := t.factory()
	err := transcriber.Transcribe(ctx,
		speechtotext.WithSpeechStartedCallback(func() {
			t.deliver(events.NewRecordingStarted())
		}),
		speechtotext.WithPartialTranscriptionCallback(func(segment string) {
			t.deliver(events.NewTranscriptDelta(t.sequence.Add(1), segment))
		}),
		speechtotext.WithTranscriptionCallback(func(string) {
			t.deliver(events.NewTranscriptFinal(t.sequence.Add(1), ""))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start transcription stream: %w", err)
	}

	t.transcriber = transcriber
	return transcriber, nil
}

func (t *sessionTranscription) deliver(event events.Event) {
	if err := t.session.Deliver(event); err != nil && !errors.Is(err, orchestration.ErrSessionClosed) {
		t.logger.Warn("failed to deliver transcription event",
			slog.String("kind", string(event.Kind())), slog.String("error", err.Error()))
	}
}

func (t *sessionTranscription) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transcriber != nil {
		if err := t.transcriber.StopStream(); err != nil {
			t.logger.Debug("failed to stop transcription stream", slog.String("error", err.Error()))
		}
		t.transcriber = nil
	}
}
