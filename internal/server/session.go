package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	orchestration "github.com/voceto/voicebridge-core/core"
	"github.com/voceto/voicebridge-core/core/events"
	"github.com/voceto/voicebridge-core/internal/metrics"
)

const (
	outboundQueueSize   = 128
	maxJSONMessageBytes = 1 << 20
	writeTimeout        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleSession upgrades the connection, starts an orchestrated voice session,
// and bridges websocket frames to session events in both directions.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxJSONMessageBytes)

	bridge := newSessionBridge(conn)
	defer bridge.close()

	session, err := s.orchestrator.StartSession(r.Context(), bridge.sessionOptions(s.metrics)...)
	if err != nil {
		s.logger.Warn("failed to start session", slog.String("error", err.Error()))
		bridge.send(serverMessage{Type: serverTypeError, Message: "failed to start session"})
		return
	}
	defer session.Close()

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
		startedAt := time.Now()
		defer func() {
			s.metrics.RecordSessionClosed(time.Since(startedAt).Seconds())
		}()
	}

	credential := session.Credential()
	bridge.send(serverMessage{
		Type:      serverTypeSessionStarted,
		SessionID: session.ID.String(),
		Credential: &credentialPayload{
			Value:     credential.Value,
			IssuedAt:  credential.IssuedAt,
			ExpiresAt: credential.ExpiresAt,
		},
	})

	var transcription *sessionTranscription
	if s.newTranscriber != nil {
		transcription = newSessionTranscription(s.newTranscriber, session, s.logger)
		defer transcription.stop()
	}

	s.readLoop(r.Context(), conn, session, transcription)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *orchestration.Session, transcription *sessionTranscription) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		msg, err := decodeClientMessage(data)
		if err != nil {
			s.logger.Debug("dropping malformed client message", slog.String("error", err.Error()))
			continue
		}

		if err := s.dispatchClientMessage(ctx, session, transcription, msg); err != nil {
			if errors.Is(err, orchestration.ErrSessionClosed) {
				return
			}
			s.logger.Warn("failed to deliver client event",
				slog.String("type", msg.Type), slog.String("error", err.Error()))
		}
	}
}

func (s *Server) dispatchClientMessage(ctx context.Context, session *orchestration.Session, transcription *sessionTranscription, msg clientMessage) error {
	switch msg.Type {
	case clientTypeAudio:
		if transcription == nil {
			s.logger.Debug("dropping audio frame, server-side transcription is disabled")
			return nil
		}
		return transcription.sendAudio(ctx, msg.Audio)
	case clientTypeChannelEstablished:
		return session.Deliver(events.NewChannelEstablished())
	case clientTypeRecordingStarted:
		if s.metrics != nil && isTurnState(session.State()) {
			s.metrics.RecordBargeIn()
		}
		return session.Deliver(events.NewRecordingStarted())
	case clientTypeTranscriptDelta:
		if s.metrics != nil {
			s.metrics.RecordTranscriptDelta()
		}
		return session.Deliver(events.NewTranscriptDelta(msg.Sequence, msg.Text))
	case clientTypeTranscriptFinal:
		if s.metrics != nil {
			s.metrics.RecordTranscriptFinal()
		}
		return session.Deliver(events.NewTranscriptFinal(msg.Sequence, msg.Text))
	case clientTypeSpeakingControl:
		session.SetSpeaking(msg.IsSpeaking)
		return nil
	default:
		s.logger.Debug("ignoring unknown client message", slog.String("type", msg.Type))
		return nil
	}
}

func isTurnState(state orchestration.SessionState) bool {
	switch state {
	case orchestration.StateDispatching, orchestration.StateResponding,
		orchestration.StateSynthesizing, orchestration.StatePlaying:
		return true
	default:
		return false
	}
}

// sessionBridge serializes outbound session callbacks onto a single websocket
// writer goroutine.
type sessionBridge struct {
	conn      *websocket.Conn
	outbound  chan serverMessage
	done      chan struct{}
	turnStart atomic.Int64
}

func newSessionBridge(conn *websocket.Conn) *sessionBridge {
	b := &sessionBridge{
		conn:     conn,
		outbound: make(chan serverMessage, outboundQueueSize),
		done:     make(chan struct{}),
	}
	go b.writePump()
	return b
}

func (b *sessionBridge) writePump() {
	for {
		select {
		case msg := <-b.outbound:
			b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := b.conn.WriteJSON(msg); err != nil {
				b.conn.Close()
				return
			}
		case <-b.done:
			for {
				select {
				case msg := <-b.outbound:
					b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := b.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (b *sessionBridge) send(msg serverMessage) {
	select {
	case b.outbound <- msg:
	case <-b.done:
	}
}

func (b *sessionBridge) close() {
	close(b.done)
}

// sessionOptions maps orchestration callbacks to outbound websocket frames
// and metrics updates.
func (b *sessionBridge) sessionOptions(m *metrics.Metrics) []orchestration.SessionOption {
	return []orchestration.SessionOption{
		orchestration.WithPartialTranscriptCallback(func(transcript string) {
			b.send(serverMessage{Type: serverTypePartialTranscript, Text: transcript})
		}),
		orchestration.WithTranscriptDroppedCallback(func(uint64) {
			if m != nil {
				m.RecordOrderingViolation()
			}
		}),
		orchestration.WithTranscriptCallback(func(transcript string) {
			b.turnStart.Store(time.Now().UnixNano())
			b.send(serverMessage{Type: serverTypeTranscript, Text: transcript})
		}),
		orchestration.WithResponseCallback(func(token string) {
			b.send(serverMessage{Type: serverTypeResponseDelta, Text: token})
		}),
		orchestration.WithResponseEndCallback(func(response string) {
			if m != nil {
				m.RecordTurnCompleted(b.turnDuration().Seconds())
			}
			b.send(serverMessage{Type: serverTypeResponseFinal, Text: response})
		}),
		orchestration.WithAudioCallback(func(audio []byte) {
			if m != nil {
				m.RecordSpeechFrame()
			}
			b.send(serverMessage{Type: serverTypeAudio, Audio: audio})
		}),
		orchestration.WithAudioEndedCallback(func(transcript string) {
			b.send(serverMessage{Type: serverTypePlaybackEnded, Text: transcript})
		}),
		orchestration.WithArtifactCallback(func(path string) {
			if m != nil {
				m.RecordArtifactPublished()
			}
			b.send(serverMessage{Type: serverTypeArtifact, Path: path})
		}),
		orchestration.WithCancellationCallback(func() {
			if m != nil {
				m.RecordTurnCancelled()
			}
			b.send(serverMessage{Type: serverTypeTurnCancelled})
		}),
		orchestration.WithSynthesisFailedCallback(func() {
			if m != nil {
				m.RecordSynthesisFailure()
			}
			b.send(serverMessage{Type: serverTypeSynthesisFailed})
		}),
		orchestration.WithTurnFailedCallback(func(reason string) {
			if m != nil {
				m.RecordTurnFailed(reason)
			}
			b.send(serverMessage{Type: serverTypeTurnFailed, Reason: reason})
		}),
		orchestration.WithStateChangedCallback(func(from, to string) {
			b.send(serverMessage{Type: serverTypeStateChanged, From: from, To: to})
		}),
	}
}

func (b *sessionBridge) turnDuration() time.Duration {
	start := b.turnStart.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}
