// Package metrics defines the Prometheus instrumentation for voicebridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voicebridge daemon.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Turn metrics
	TurnsCompleted prometheus.Counter
	TurnsCancelled prometheus.Counter
	TurnsFailed    *prometheus.CounterVec
	TurnDuration   prometheus.Histogram
	BargeIns       prometheus.Counter

	// Transcript metrics
	TranscriptDeltas   prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	OrderingViolations prometheus.Counter

	// Speech metrics
	SpeechFrames       prometheus.Counter
	ArtifactsPublished prometheus.Counter
	SynthesisFailures  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Current number of active voice sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_session_duration_seconds",
			Help:    "Duration of voice sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// Turn metrics
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_turns_completed_total",
			Help: "Total number of conversation turns completed",
		}),
		TurnsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_turns_cancelled_total",
			Help: "Total number of conversation turns cancelled",
		}),
		TurnsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_turns_failed_total",
			Help: "Total number of conversation turns that failed",
		}, []string{"reason"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_turn_duration_seconds",
			Help:    "End-to-end duration of conversation turns",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		BargeIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_barge_ins_total",
			Help: "Total number of turns interrupted by new speech",
		}),

		// Transcript metrics
		TranscriptDeltas: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_transcript_deltas_total",
			Help: "Total number of transcript deltas accepted",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_transcripts_final_total",
			Help: "Total number of finalized utterances",
		}),
		OrderingViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_transcript_ordering_violations_total",
			Help: "Total number of transcript fragments dropped for stale sequence numbers",
		}),

		// Speech metrics
		SpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_speech_frames_total",
			Help: "Total number of synthesized audio frames delivered",
		}),
		ArtifactsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_speech_artifacts_published_total",
			Help: "Total number of buffered speech artifacts published",
		}),
		SynthesisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_synthesis_failures_total",
			Help: "Total number of turns that completed without audio due to synthesis errors",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordSessionCreated increments the session counters for a new session
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed increments the closed counter and records duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordTurnCompleted records a successfully completed turn
func (m *Metrics) RecordTurnCompleted(durationSeconds float64) {
	m.TurnsCompleted.Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordTurnCancelled increments the cancelled turn counter
func (m *Metrics) RecordTurnCancelled() {
	m.TurnsCancelled.Inc()
}

// RecordTurnFailed records a failed turn with its failure reason
func (m *Metrics) RecordTurnFailed(reason string) {
	m.TurnsFailed.WithLabelValues(reason).Inc()
}

// RecordBargeIn increments the barge-in counter
func (m *Metrics) RecordBargeIn() {
	m.BargeIns.Inc()
}

// RecordTranscriptDelta increments the accepted delta counter
func (m *Metrics) RecordTranscriptDelta() {
	m.TranscriptDeltas.Inc()
}

// RecordTranscriptFinal increments the finalized utterance counter
func (m *Metrics) RecordTranscriptFinal() {
	m.TranscriptsFinal.Inc()
}

// RecordOrderingViolation increments the dropped fragment counter
func (m *Metrics) RecordOrderingViolation() {
	m.OrderingViolations.Inc()
}

// RecordSpeechFrame increments the delivered audio frame counter
func (m *Metrics) RecordSpeechFrame() {
	m.SpeechFrames.Inc()
}

// RecordArtifactPublished increments the published artifact counter
func (m *Metrics) RecordArtifactPublished() {
	m.ArtifactsPublished.Inc()
}

// RecordSynthesisFailure increments the synthesis failure counter
func (m *Metrics) RecordSynthesisFailure() {
	m.SynthesisFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
