package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/audio/transcode"
	"github.com/voceto/voicebridge-core/core/credentials"
	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/core/llms"
	"github.com/voceto/voicebridge-core/core/texttospeech"
	"github.com/voceto/voicebridge-core/core/transcripts"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// sessionEventQueueCapacity bounds the inbound event queue. When the queue
// is full Deliver blocks the producer rather than dropping events, keeping
// transcript ordering intact under back-pressure.
const sessionEventQueueCapacity = 16

// Session is one client's voice conversation. It persists across turns and
// is driven by a single goroutine consuming the event queue; all cross-task
// signals go through Deliver.
type Session struct {
	ID uuid.UUID

	credential credentials.Credential

	stateMu sync.RWMutex
	state   SessionState

	accumulator *transcripts.Accumulator
	emit        eventEmitter

	queue     chan events.Event
	closedCh  chan struct{}
	closeOnce sync.Once

	idleTimeout time.Duration

	llm                llm
	textToSpeechClient TextToSpeech
	audioOutput        AudioOutput
	transcoder         *transcode.Transcoder
	artifactCodec      audio.CodecParams
	muted              atomic.Bool

	pipelineMu sync.Mutex
	pipeline   *responsePipeline

	historyMu sync.Mutex
	history   []llms.Turn

	turnWG sync.WaitGroup

	onClose func(*Session)
}

// Credential returns the signaling credential issued for this session.
func (s *Session) Credential() credentials.Credential { return s.credential }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	return s.state
}

// History returns a snapshot of the completed turns so far.
func (s *Session) History() []llms.Turn {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	return append([]llms.Turn(nil), s.history...)
}

// SetSpeaking toggles voice output. Muting takes effect on the current turn
// as well: buffered speech stops being delivered.
func (s *Session) SetSpeaking(isSpeaking bool) {
	s.muted.Store(!isSpeaking)

	s.pipelineMu.Lock()
	pipeline := s.pipeline
	s.pipelineMu.Unlock()

	if pipeline == nil {
		return
	}
	if isSpeaking {
		pipeline.textToSpeech.Unmute()
	} else {
		pipeline.textToSpeech.Mute()
	}
}

// Deliver hands an event to the session's driving goroutine. It blocks while
// the queue is full and returns ErrSessionClosed once the session is torn
// down.
func (s *Session) Deliver(event events.Event) error {
	select {
	case <-s.closedCh:
		return ErrSessionClosed
	default:
	}

	select {
	case s.queue <- event:
		return nil
	case <-s.closedCh:
		return ErrSessionClosed
	}
}

// Close tears the session down: the in-flight turn is cancelled, the event
// queue stops accepting deliveries, and the session returns to Idle. Safe to
// call repeatedly and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closedCh)

		s.pipelineMu.Lock()
		pipeline := s.pipeline
		s.pipelineMu.Unlock()
		pipeline.Cancel()

		s.turnWG.Wait()

		s.accumulator.Reset()
		s.forceIdle()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) run(ctx context.Context) {
	idleTimer := time.NewTimer(s.idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return

		case <-s.closedCh:
			return

		case <-idleTimer.C:
			logger.InfoContext(ctx, "closing idle session", "session_id", s.ID)
			s.Close()
			return

		case event := <-s.queue:
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(s.idleTimeout)

			s.handleEvent(ctx, event)
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, event events.Event) {
	switch typedEvent := event.(type) {
	case events.ChannelEstablished:
		s.transition(StateRecording)

	case events.RecordingStarted:
		s.handleRecordingStarted()

	case events.TranscriptDelta:
		if err := s.accumulator.Delta(typedEvent.Sequence, typedEvent.Text); err != nil {
			s.emit(events.NewTranscriptDropped(typedEvent.Sequence))
			return
		}
		s.emit(events.NewTranscriptUpdated(s.accumulator.Partial()))

	case events.TranscriptFinal:
		utterance, err := s.accumulator.Final(typedEvent.Sequence, typedEvent.Text)
		if err != nil {
			s.emit(events.NewTranscriptDropped(typedEvent.Sequence))
			return
		}
		if !s.transition(StateFinalizing) {
			return
		}
		s.emit(events.NewTranscriptFinal(typedEvent.Sequence, utterance))
		s.transition(StateDispatching)
		s.startTurn(ctx, utterance)

	default:
		// Unknown event kinds are ignored, not errored.
		logger.DebugContext(ctx, "ignoring unknown session event",
			"session_id", s.ID, "kind", event.Kind())
	}
}

// handleRecordingStarted moves the session into Recording. Received while a
// turn is in flight it is a barge-in: the turn is cancelled and its output
// abandoned, not queued.
func (s *Session) handleRecordingStarted() {
	switch s.State() {
	case StateDispatching, StateResponding, StateSynthesizing, StatePlaying:
		s.pipelineMu.Lock()
		pipeline := s.pipeline
		s.pipelineMu.Unlock()
		pipeline.Cancel()

		s.transition(StateRecording)

	case StateIdle, StateConnecting:
		s.transition(StateRecording)

	case StateRecording:
		// Already recording, nothing to do.
	}
}

func (s *Session) startTurn(ctx context.Context, utterance string) {
	pipeline := newResponsePipeline(
		s.llm,
		newTextToSpeech(s.textToSpeechClient, s.muted.Load()),
		s.audioOutput,
		s.transcoder,
		s.artifactCodec,
		s.emit,
		pipelineHooks{
			onFirstToken:       func() { s.transition(StateResponding) },
			onResponseComplete: func() { s.transition(StateSynthesizing) },
			onFirstAudio:       func() { s.transition(StatePlaying) },
			onPlaybackEnded:    func() { s.transition(StateIdle) },
		},
	)

	s.pipelineMu.Lock()
	s.pipeline = pipeline
	s.pipelineMu.Unlock()

	history := s.History()

	s.turnWG.Add(1)
	go func() {
		defer s.turnWG.Done()

		ctx, span := tracer.Start(ctx, "process turn")
		defer span.End()

		turn, err := pipeline.Run(ctx, utterance, history)
		s.finishTurn(ctx, pipeline, utterance, turn, err)
	}()
}

// finishTurn settles a completed pipeline run. The client always receives a
// terminal notice: normal completion was already signalled by the pipeline,
// cancellation and failure are signalled here.
func (s *Session) finishTurn(ctx context.Context, pipeline *responsePipeline, utterance string, turn llms.Turn, err error) {
	// A barge-in may have installed the next turn's pipeline already; only
	// clear the slot when it still belongs to this turn.
	s.pipelineMu.Lock()
	if s.pipeline == pipeline {
		s.pipeline = nil
	}
	s.pipelineMu.Unlock()
	synthErr := pipeline.SynthErr()

	userTurn := llms.Turn{Role: llms.TurnRoleUser, Content: utterance}

	switch {
	case err == nil:
		s.appendHistory(userTurn, turn)
		if synthErr != nil {
			logger.WarnContext(ctx, "turn completed without audio",
				"session_id", s.ID, "error", synthErr)
			s.emit(events.NewSynthesisFailed(synthErr))
		}
		s.settleIdle()

	case errors.Is(err, ErrTurnCancelled):
		turn.Cancelled = true
		s.appendHistory(userTurn, turn)
		s.emit(events.NewTurnCancelled())

	default:
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.appendHistory(userTurn, turn)
		s.transition(StateError)
		s.emit(events.NewTurnFailed(failureReason(err), err))
		s.transition(StateIdle)
	}
}

func (s *Session) appendHistory(turns ...llms.Turn) {
	s.historyMu.Lock()
	s.history = append(s.history, turns...)
	s.historyMu.Unlock()
}

// transition moves the state machine along an allowed edge. Disallowed
// transitions are ignored, which doubles as the guard against stale pipeline
// hooks firing after a barge-in already moved the session elsewhere.
func (s *Session) transition(to SessionState) bool {
	s.stateMu.Lock()
	from := s.state
	if from == to {
		s.stateMu.Unlock()
		return true
	}
	if !canTransition(from, to) {
		s.stateMu.Unlock()
		logger.Debug("ignoring state transition",
			"session_id", s.ID, "from", from, "to", to)
		return false
	}
	s.state = to
	s.stateMu.Unlock()

	s.emit(events.NewSessionStateChanged(string(from), string(to)))
	return true
}

// settleIdle returns the session to Idle after a completed turn, but only
// from a turn state. A barge-in that already moved the session back to
// Recording is left alone.
func (s *Session) settleIdle() {
	s.stateMu.Lock()
	from := s.state
	switch from {
	case StateDispatching, StateResponding, StateSynthesizing, StatePlaying, StateError:
		s.state = StateIdle
	default:
		s.stateMu.Unlock()
		return
	}
	s.stateMu.Unlock()

	s.emit(events.NewSessionStateChanged(string(from), string(StateIdle)))
}

// forceIdle resets the state machine outside the transition table. Used for
// teardown.
func (s *Session) forceIdle() {
	s.stateMu.Lock()
	from := s.state
	s.state = StateIdle
	s.stateMu.Unlock()

	if from != StateIdle {
		s.emit(events.NewSessionStateChanged(string(from), string(StateIdle)))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, llms.ErrUpstream):
		return "upstream_failure"
	case errors.Is(err, texttospeech.ErrSynthesisFailed):
		return "synthesis_failure"
	default:
		return "internal_failure"
	}
}
