package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client message types accepted on the session websocket.
const (
	clientTypeChannelEstablished = "channel_established"
	clientTypeRecordingStarted   = "recording_started"
	clientTypeTranscriptDelta    = "transcript_delta"
	clientTypeTranscriptFinal    = "transcript_final"
	clientTypeSpeakingControl    = "speaking_control"
	clientTypeAudio              = "audio"
)

// clientMessage is the tagged envelope for all inbound websocket frames.
// Audio payloads are base64-encoded by the JSON marshaller.
type clientMessage struct {
	Type       string `json:"type"`
	Sequence   uint64 `json:"sequence,omitempty"`
	Text       string `json:"text,omitempty"`
	Audio      []byte `json:"audio,omitempty"`
	IsSpeaking bool   `json:"is_speaking,omitempty"`
}

func decodeClientMessage(data []byte) (clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return clientMessage{}, fmt.Errorf("failed to decode client message: %w", err)
	}
	if msg.Type == "" {
		return clientMessage{}, fmt.Errorf("client message is missing a type")
	}
	return msg, nil
}

// Server message types emitted on the session websocket.
const (
	serverTypeSessionStarted    = "session_started"
	serverTypePartialTranscript = "partial_transcript"
	serverTypeTranscript        = "transcript"
	serverTypeResponseDelta     = "response_delta"
	serverTypeResponseFinal     = "response_final"
	serverTypeAudio             = "audio"
	serverTypePlaybackEnded     = "playback_ended"
	serverTypeArtifact          = "artifact"
	serverTypeTurnCancelled     = "turn_cancelled"
	serverTypeSynthesisFailed   = "synthesis_failed"
	serverTypeTurnFailed        = "turn_failed"
	serverTypeStateChanged      = "state_changed"
	serverTypeError             = "error"
)

// serverMessage is the tagged envelope for all outbound websocket frames.
// Audio payloads are base64-encoded by the JSON marshaller.
type serverMessage struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id,omitempty"`
	Credential *credentialPayload `json:"credential,omitempty"`
	Text       string             `json:"text,omitempty"`
	Audio      []byte             `json:"audio,omitempty"`
	Path       string             `json:"path,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	From       string             `json:"from,omitempty"`
	To         string             `json:"to,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// credentialPayload carries the ephemeral realtime credential to the client.
type credentialPayload struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
