package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/texttospeech"
)

// TextToSpeech is the speech-synthesis backend used to voice completed
// responses.
type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

// textToSpeech wraps one per-turn speech generator. It owns the generator's
// lifecycle: init is executed once, Close is idempotent, and a close that
// races init wins.
type textToSpeech struct {
	client TextToSpeech

	clientMu  sync.RWMutex
	generator texttospeech.SpeechGenerator

	// initialized closes when init completes so workers can safely proceed.
	initialized chan struct{}
	// initOnce ensures per-turn initialization is executed once.
	initOnce sync.Once
	// initErr stores the one-time initialization result.
	initErr error

	// connected reports whether a speech generator was initialized.
	connected atomic.Bool
	// closeStarted makes Close idempotent under concurrent shutdown paths.
	closeStarted atomic.Bool

	// isMuted indicates whether synthesized speech is passed to output.
	isMuted atomic.Bool

	// synthErr records a mid-synthesis backend failure. The turn's text
	// output is unaffected, only the audio is absent.
	synthErrMu sync.Mutex
	synthErr   error
}

func newTextToSpeech(client TextToSpeech, isMuted bool) *textToSpeech {
	t := &textToSpeech{
		client:      client,
		initialized: make(chan struct{}),
	}
	t.isMuted.Store(isMuted)
	return t
}

func (t *textToSpeech) init(ctx context.Context, buffer *audioBuffer, encodingInfo audio.EncodingInfo) error {
	if t == nil {
		return nil
	}

	t.initOnce.Do(func() {
		defer close(t.initialized)
		t.connected.Store(false)
		if t.client == nil || t.closeStarted.Load() {
			return
		}

		generator, err := t.client.NewSpeechGenerator(ctx,
			texttospeech.WithSpeechAudioCallback(buffer.AddAudio),
			texttospeech.WithSpeechMarkCallback(buffer.Mark),
			texttospeech.WithSpeechEndedCallback(func(texttospeech.SpeechEndedReport) {
				buffer.AllAudioLoaded()
			}),
			texttospeech.WithErrorCallback(func(err error) {
				t.recordSynthErr(err)
				buffer.Stop()
			}),
			texttospeech.WithEncodingInfo(encodingInfo),
		)
		if err != nil {
			t.initErr = fmt.Errorf("failed to create speech generator: %w", err)
			return
		}

		t.clientMu.Lock()
		if t.closeStarted.Load() {
			t.clientMu.Unlock()
			_ = generator.Close()
			return
		}
		t.generator = generator
		t.clientMu.Unlock()
		t.connected.Store(true)
	})

	return t.initErr
}

func (t *textToSpeech) waitUntilInitialized(ctx context.Context) bool {
	if t != nil && t.initialized != nil {
		select {
		case <-t.initialized:
			return t.connected.Load()
		case <-ctx.Done():
			return false
		}
	}
	return false
}

func (t *textToSpeech) SendText(text string) error {
	if generator := t.currentGenerator(); generator != nil {
		if err := generator.SendText(text); err != nil {
			return fmt.Errorf("failed to send text to speech generator: %w", err)
		}
	}
	return nil
}

func (t *textToSpeech) Mark() error {
	if generator := t.currentGenerator(); generator != nil {
		if err := generator.Mark(); err != nil {
			return fmt.Errorf("failed to send mark to speech generator: %w", err)
		}
	}
	return nil
}

func (t *textToSpeech) EndOfText() error {
	if generator := t.currentGenerator(); generator != nil {
		if err := generator.Mark(); err != nil {
			return fmt.Errorf("failed to flush speech generator: %w", err)
		}
		if err := generator.EndOfText(); err != nil {
			return fmt.Errorf("failed to send end of text to speech generator: %w", err)
		}
	}
	return nil
}

func (t *textToSpeech) Cancel() error {
	if generator := t.currentGenerator(); generator != nil {
		if err := generator.Cancel(); err != nil {
			return fmt.Errorf("failed to cancel speech generator: %w", err)
		}
	}
	return nil
}

func (t *textToSpeech) Close() error {
	if t == nil {
		return nil
	}

	if !t.closeStarted.CompareAndSwap(false, true) {
		return nil
	}

	t.clientMu.Lock()
	generator := t.generator
	t.generator = nil
	t.connected.Store(false)
	t.clientMu.Unlock()

	if generator != nil {
		if err := generator.Close(); err != nil {
			return fmt.Errorf("failed to close speech generator: %w", err)
		}
	}

	return nil
}

func (t *textToSpeech) currentGenerator() texttospeech.SpeechGenerator {
	if t == nil {
		return nil
	}

	t.clientMu.RLock()
	defer t.clientMu.RUnlock()

	return t.generator
}

func (t *textToSpeech) IsMuted() bool { return t != nil && t.isMuted.Load() }

func (t *textToSpeech) Mute() {
	if t != nil {
		t.isMuted.Store(true)
	}
}

func (t *textToSpeech) Unmute() {
	if t != nil {
		t.isMuted.Store(false)
	}
}

func (t *textToSpeech) recordSynthErr(err error) {
	if t == nil || err == nil {
		return
	}

	t.synthErrMu.Lock()
	if t.synthErr == nil {
		t.synthErr = err
	}
	t.synthErrMu.Unlock()
}

// SynthErr returns the first mid-synthesis failure, if any.
func (t *textToSpeech) SynthErr() error {
	if t == nil {
		return nil
	}

	t.synthErrMu.Lock()
	defer t.synthErrMu.Unlock()

	return t.synthErr
}
