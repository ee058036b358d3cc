package orchestration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/audio/transcode"
	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// sentenceBoundary marks the token punctuation that triggers a synthesis
// flush so speech starts before the full response is generated.
const sentenceBoundary = ".?!"

// pipelineHooks notify the owning session of turn progress. All hooks are
// invoked from pipeline worker goroutines.
type pipelineHooks struct {
	onFirstToken       func()
	onResponseComplete func()
	onFirstAudio       func()
	onPlaybackEnded    func()
}

// responsePipeline drives one turn: generation, text-to-synthesis hand-off,
// and speech delivery run as three concurrent workers connected through the
// response and audio buffers.
type responsePipeline struct {
	llm            llm
	responseBuffer *responseBuffer
	textToSpeech   *textToSpeech
	audioBuffer    *audioBuffer
	audioOutput    AudioOutput
	encodingInfo   audio.EncodingInfo

	transcoder    *transcode.Transcoder
	artifactCodec audio.CodecParams

	emit  eventEmitter
	hooks pipelineHooks

	resultMu sync.Mutex
	result   *llms.Turn

	cancelled atomic.Bool
	sequence  atomic.Uint64
}

func newResponsePipeline(
	llm llm,
	textToSpeech *textToSpeech,
	audioOutput AudioOutput,
	transcoder *transcode.Transcoder,
	artifactCodec audio.CodecParams,
	emit eventEmitter,
	hooks pipelineHooks,
) *responsePipeline {
	if emit == nil {
		emit = noopEventEmitter
	}
	if hooks.onFirstToken == nil {
		hooks.onFirstToken = func() {}
	}
	if hooks.onResponseComplete == nil {
		hooks.onResponseComplete = func() {}
	}
	if hooks.onFirstAudio == nil {
		hooks.onFirstAudio = func() {}
	}
	if hooks.onPlaybackEnded == nil {
		hooks.onPlaybackEnded = func() {}
	}

	encodingInfo := audio.GetDefaultEncodingInfo()
	if audioOutput != nil {
		encodingInfo = audioOutput.EncodingInfo()
	}

	return &responsePipeline{
		llm:            llm,
		responseBuffer: newResponseBuffer(),
		textToSpeech:   textToSpeech,
		audioBuffer:    newAudioBuffer(),
		audioOutput:    audioOutput,
		encodingInfo:   encodingInfo,
		transcoder:     transcoder,
		artifactCodec:  artifactCodec,
		emit:           emit,
		hooks:          hooks,
	}
}

// Run executes the turn to completion and returns the assistant turn that
// was produced, partial if the turn was cancelled or failed mid-stream.
func (p *responsePipeline) Run(ctx context.Context, utterance string, history []llms.Turn) (llms.Turn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workerErr error
	workerErrMu := sync.Mutex{}
	addWorkerErr := func(err error) {
		if err == nil {
			return
		}
		workerErrMu.Lock()
		workerErr = errors.Join(workerErr, err)
		workerErrMu.Unlock()
	}

	run := func(name string, f func(context.Context) error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				addWorkerErr(fmt.Errorf("%s worker panicked: %v", name, recovered))
				cancel()
			}
		}()

		if err := f(ctx); err != nil {
			if !errors.Is(err, ErrTurnCancelled) {
				addWorkerErr(fmt.Errorf("%s worker failed: %w", name, err))
			}
			cancel()
		}
	}

	wg := &sync.WaitGroup{}
	wg.Add(3)
	go func() {
		defer wg.Done()
		run("llm generation", func(ctx context.Context) error {
			return p.generateLLM(ctx, utterance, history)
		})
	}()
	go func() {
		defer wg.Done()
		run("response text processing", p.processResponseText)
	}()
	go func() {
		defer wg.Done()
		run("speech processing", p.processSpeech)
	}()

	wg.Wait()

	if err := p.textToSpeech.Close(); err != nil {
		logger.WarnContext(ctx, "failed to close synthesis resources", "error", err)
	}

	turn := p.assistantTurn()

	if p.cancelled.Load() {
		return turn, ErrTurnCancelled
	}
	if workerErr != nil {
		return turn, fmt.Errorf("one or more turn workers failed: %w", workerErr)
	}

	return turn, nil
}

func (p *responsePipeline) generateLLM(ctx context.Context, utterance string, history []llms.Turn) error {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	defer p.responseBuffer.Complete()

	response, err := p.llm.generate(ctx, utterance, history, func(token string) {
		sequence := p.sequence.Add(1)
		if sequence == 1 {
			p.hooks.onFirstToken()
		}
		p.responseBuffer.AddToken(token)
		p.emit(events.NewAssistantResponseSegment(sequence, token))
	}, p.IsCancelled)
	if err != nil {
		if errors.Is(err, ErrTurnCancelled) {
			return err
		}
		err = fmt.Errorf("failed to generate response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	p.resultMu.Lock()
	p.result = response
	p.resultMu.Unlock()

	var toolCalls []string
	for _, toolCall := range response.ToolCalls {
		toolCalls = append(toolCalls, toolCall.Name)
	}
	span.SetAttributes(attribute.StringSlice("assistant_turn.tool_calls", toolCalls))

	p.emit(events.NewAssistantResponseFinal(response.Content))
	p.hooks.onResponseComplete()

	return nil
}

func (p *responsePipeline) processResponseText(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.responseBuffer.Clear()
		case <-done:
		}
	}()

	_, span := tracer.Start(ctx, "passing text to synthesis")
	defer span.End()

	if err := p.textToSpeech.init(ctx, p.audioBuffer, p.encodingInfo); err != nil {
		// Synthesis unavailability leaves the text output of the turn
		// intact, so the worker reports and returns clean.
		p.textToSpeech.recordSynthErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}

	for token := range p.responseBuffer.Tokens {
		if p.IsCancelled() {
			break
		}

		if err := p.textToSpeech.SendText(token); err != nil {
			span.RecordError(fmt.Errorf("failed to send text to synthesis: %w", err))
		}
		if strings.ContainsAny(token, sentenceBoundary) {
			if err := p.textToSpeech.Mark(); err != nil {
				span.RecordError(fmt.Errorf("failed to send mark to synthesis: %w", err))
			}
		}
	}

	if err := p.textToSpeech.EndOfText(); err != nil {
		span.RecordError(fmt.Errorf("failed to end synthesis input: %w", err))
	}

	return nil
}

func (p *responsePipeline) processSpeech(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.audioBuffer.Stop()
		case <-done:
		}
	}()

	if ok := p.textToSpeech.waitUntilInitialized(ctx); !ok {
		return nil
	}

	ctx, span := tracer.Start(ctx, "passing speech to output")
	defer span.End()

	firstAudio := sync.Once{}
	var captured []byte
	var spoken strings.Builder

bufferReadingLoop:
	for frame := range p.audioBuffer.Frames {
		switch frame.kind {
		case frameKindAudio:
			if p.textToSpeech.IsMuted() || p.IsCancelled() {
				if p.audioOutput != nil {
					p.audioOutput.ClearBuffer()
				}
				break bufferReadingLoop
			}

			firstAudio.Do(p.hooks.onFirstAudio)
			p.emit(events.NewAssistantSpeechFrame(frame.audio))
			if p.transcoder != nil {
				captured = append(captured, frame.audio...)
			}
			if p.audioOutput != nil {
				if err := p.audioOutput.SendAudio(frame.audio); err != nil {
					span.RecordError(fmt.Errorf("failed to send audio to output: %w", err))
				}
			}

		case frameKindMark:
			spoken.WriteString(frame.transcript)
		}
	}

	if p.IsCancelled() {
		return nil
	}

	if len(captured) > 0 {
		p.publishArtifact(ctx, captured)
	}

	transcript := spoken.String()
	if transcript == "" {
		transcript = p.responseBuffer.String()
	}
	p.emit(events.NewAssistantPlaybackEnded(transcript))
	p.hooks.onPlaybackEnded()

	return nil
}

// publishArtifact wraps the captured speech in a playable container and
// emits it as an ephemeral artifact. Failures only cost the artifact, the
// streamed audio was already delivered.
func (p *responsePipeline) publishArtifact(ctx context.Context, captured []byte) {
	ctx, span := tracer.Start(ctx, "publish speech artifact")
	defer span.End()

	recordFailure := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to publish speech artifact", "error", err)
	}

	wav, err := audio.EncodeWAV(captured, p.encodingInfo)
	if err != nil {
		recordFailure(fmt.Errorf("failed to wrap captured speech: %w", err))
		return
	}

	rawFile, err := os.CreateTemp("", "voicebridge-speech-*.wav")
	if err != nil {
		recordFailure(fmt.Errorf("failed to stage captured speech: %w", err))
		return
	}
	rawPath := rawFile.Name()
	defer os.Remove(rawPath)

	if _, err := rawFile.Write(wav); err != nil {
		_ = rawFile.Close()
		recordFailure(fmt.Errorf("failed to write captured speech: %w", err))
		return
	}
	if err := rawFile.Close(); err != nil {
		recordFailure(fmt.Errorf("failed to flush captured speech: %w", err))
		return
	}

	artifact, err := p.transcoder.TranscodeToEphemeral(ctx, rawPath, p.artifactCodec)
	if err != nil {
		recordFailure(err)
		return
	}

	span.SetAttributes(attribute.String("artifact.path", artifact.TargetPath))
	p.emit(events.NewAssistantSpeechArtifact(artifact.TargetPath))
}

// Cancel abandons the turn. Safe to call from any goroutine; workers observe
// the flag at every hand-off point.
func (p *responsePipeline) Cancel() {
	if p == nil || !p.cancelled.CompareAndSwap(false, true) {
		return
	}

	if err := p.textToSpeech.Cancel(); err != nil {
		logger.Warn("failed to cancel synthesis", "error", err)
	}
	p.responseBuffer.Clear()
	p.audioBuffer.Stop()
	if p.audioOutput != nil {
		p.audioOutput.ClearBuffer()
	}
}

func (p *responsePipeline) IsCancelled() bool {
	if p == nil {
		return false
	}

	return p.cancelled.Load()
}

// SynthErr reports whether synthesis failed while the turn's text output
// succeeded.
func (p *responsePipeline) SynthErr() error {
	if p == nil {
		return nil
	}

	return p.textToSpeech.SynthErr()
}

func (p *responsePipeline) assistantTurn() llms.Turn {
	p.resultMu.Lock()
	result := p.result
	p.resultMu.Unlock()

	if result != nil {
		return *result
	}

	return llms.Turn{
		Role:    llms.TurnRoleAssistant,
		Content: p.responseBuffer.String(),
	}
}
