// Package orchestration ties the credential broker, transcript accumulator,
// streaming text generation, and speech synthesis into per-client voice
// sessions with barge-in interruption semantics.
package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/audio/transcode"
	"github.com/voceto/voicebridge-core/core/credentials"
	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/core/transcripts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultIdleTimeout = 90 * time.Second

// Orchestrator creates and tracks voice sessions. The broker and backends
// are shared by all sessions; each session gets its own credential, state
// machine, and event queue.
type Orchestrator struct {
	broker credentials.Broker

	llm             llm
	useSessionTools bool

	textToSpeech  TextToSpeech
	audioOutput   AudioOutput
	transcoder    *transcode.Transcoder
	artifactCodec audio.CodecParams

	idleTimeout time.Duration

	sessionsMu sync.Mutex
	sessions   map[uuid.UUID]*Session

	closeOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		idleTimeout: defaultIdleTimeout,
		sessions:    map[uuid.UUID]*Session{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// StartSession mints a fresh credential and starts a session's driving
// goroutine. Credential issuance failure aborts the start: no session is
// created and nothing moves past Idle.
func (o *Orchestrator) StartSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()

	if o.broker == nil {
		err := fmt.Errorf("credential broker is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sessionOptions := SessionOptions{}
	for _, opt := range opts {
		opt(&sessionOptions)
	}

	credential, err := o.broker.Issue(ctx, credentials.ScopeConversation)
	if err != nil {
		err = fmt.Errorf("failed to issue session credential: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	session := &Session{
		ID:                 uuid.New(),
		credential:         credential,
		state:              StateIdle,
		accumulator:        transcripts.NewAccumulator(),
		emit:               newCallbackEventEmitter(sessionOptions),
		queue:              make(chan events.Event, sessionEventQueueCapacity),
		closedCh:           make(chan struct{}),
		idleTimeout:        o.idleTimeout,
		llm:                o.llm.snapshot(),
		textToSpeechClient: o.textToSpeech,
		audioOutput:        o.audioOutput,
		transcoder:         o.transcoder,
		artifactCodec:      o.artifactCodec,
		onClose:            o.removeSession,
	}
	if o.useSessionTools {
		session.llm.appendTools(sessionTools(session)...)
	}

	o.sessionsMu.Lock()
	o.sessions[session.ID] = session
	o.sessionsMu.Unlock()

	session.transition(StateConnecting)
	go session.run(ctx)

	span.SetAttributes(attribute.String("session.id", session.ID.String()))
	logger.InfoContext(ctx, "session started",
		"session_id", session.ID, "credential_expires_at", credential.ExpiresAt)

	return session, nil
}

// Session returns a live session by id, or nil if it does not exist.
func (o *Orchestrator) Session(id uuid.UUID) *Session {
	o.sessionsMu.Lock()
	defer o.sessionsMu.Unlock()

	return o.sessions[id]
}

// Close tears down every live session.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.sessionsMu.Lock()
		sessions := make([]*Session, 0, len(o.sessions))
		for _, session := range o.sessions {
			sessions = append(sessions, session)
		}
		o.sessionsMu.Unlock()

		for _, session := range sessions {
			session.Close()
		}
	})
}

func (o *Orchestrator) removeSession(session *Session) {
	o.sessionsMu.Lock()
	delete(o.sessions, session.ID)
	o.sessionsMu.Unlock()
}
