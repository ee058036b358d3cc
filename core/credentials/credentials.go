// Package credentials defines the contract for minting short-lived signaling
// credentials. Brokers hold no session state: every issuance is independent.
package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the upstream issuer cannot mint a
// credential. Fatal to session start, retryable by the client.
var ErrUnavailable = errors.New("credentials: issuance unavailable")

// Scope constrains what an issued credential may be used for.
type Scope string

const (
	// ScopeTranscription allows transcription-only signaling.
	ScopeTranscription Scope = "transcription"
	// ScopeConversation allows transcription plus audio output.
	ScopeConversation Scope = "conversation"
)

// Credential is a single-use, short-lived signaling secret. Sessions always
// request a fresh credential; expired ones must not be reused.
type Credential struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential is no longer valid at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Broker mints signaling credentials for new sessions.
type Broker interface {
	Issue(ctx context.Context, scope Scope) (Credential, error)
}
