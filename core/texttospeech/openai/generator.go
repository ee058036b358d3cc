package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/voceto/voicebridge-core/core/texttospeech"
)

// NewSpeechGenerator adapts the buffered client to the streaming generator
// interface. Text is collected into segments, a Mark closes the current
// segment and the segments are synthesized in order by a background worker.
func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechMarkCallback:  func(string) {},
		SpeechEndedCallback: func(texttospeech.SpeechEndedReport) {},
		ErrorCallback:       func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(ctx)
	req := &bufferedRequest{
		client:   c,
		options:  options,
		segments: make(chan string, 16),
		cancel:   cancel,
	}

	go req.processSegments(ctx)

	return req, nil
}

type bufferedRequest struct {
	client  *TextToSpeechClient
	options texttospeech.TextToSpeechOptions

	mu       sync.Mutex
	pending  string
	segments chan string
	cancel   context.CancelFunc

	textComplete bool
	cancelled    bool
	closed       bool
}

func (r *bufferedRequest) processSegments(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case segment, ok := <-r.segments:
			if !ok {
				r.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{})
				_ = r.Close()
				return
			}

			audio, err := r.client.Synthesize(ctx, segment)
			if err != nil {
				r.options.ErrorCallback(err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.options.SpeechAudioCallback(audio)
			r.options.SpeechMarkCallback(segment)
		}
	}
}

func (r *bufferedRequest) SendText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return fmt.Errorf("streaming request text already completed")
	}

	r.pending += text
	return nil
}

func (r *bufferedRequest) Mark() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return fmt.Errorf("streaming request text already completed")
	}

	if r.pending != "" {
		r.segments <- r.pending
		r.pending = ""
	}
	return nil
}

func (r *bufferedRequest) EndOfText() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return nil
	}

	r.textComplete = true
	if r.pending != "" {
		r.segments <- r.pending
		r.pending = ""
	}
	close(r.segments)
	return nil
}

func (r *bufferedRequest) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("streaming request closed")
	}
	if r.cancelled {
		return nil
	}

	r.cancelled = true
	r.cancel()
	return nil
}

func (r *bufferedRequest) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	r.cancel()
	return nil
}
