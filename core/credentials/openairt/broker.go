// Package openairt mints ephemeral OpenAI Realtime session credentials.
// Minted keys are valid for roughly a minute, so a fresh one is requested
// for every session.
package openairt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/voceto/voicebridge-core/core/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-realtime-preview-2025-06-03"
)

type Broker struct {
	baseURL string
	model   string
	client  *http.Client
}

type BrokerOption func(*Broker)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(baseURL string) BrokerOption {
	return func(b *Broker) {
		if baseURL != "" {
			b.baseURL = baseURL
		}
	}
}

func WithModel(model string) BrokerOption {
	return func(b *Broker) {
		if model != "" {
			b.model = model
		}
	}
}

func NewBroker(opts ...BrokerOption) *Broker {
	broker := &Broker{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(broker)
	}
	return broker
}

type sessionRequest struct {
	Model      string   `json:"model"`
	Modalities []string `json:"modalities"`
}

type sessionResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// Issue mints one ephemeral credential scoped to the requested capability.
// Failures surface as credentials.ErrUnavailable: the session must not
// start without a valid credential.
func (b *Broker) Issue(ctx context.Context, scope credentials.Scope) (credentials.Credential, error) {
	ctx, span := tracer.Start(ctx, "issue realtime credential")
	defer span.End()
	span.SetAttributes(attribute.String("request.scope", string(scope)))

	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		err := fmt.Errorf("%w: openai api key not found", credentials.ErrUnavailable)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credentials.Credential{}, err
	}

	modalities := []string{"text"}
	if scope == credentials.ScopeConversation {
		modalities = []string{"audio", "text"}
	}

	requestBodyBytes, err := json.Marshal(sessionRequest{Model: b.model, Modalities: modalities})
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/realtime/sessions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := b.client.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %v", credentials.ErrUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credentials.Credential{}, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("%w: non-OK HTTP status: %s", credentials.ErrUnavailable, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credentials.Credential{}, err
	}

	var parsed sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		err = fmt.Errorf("%w: error unmarshalling JSON: %v", credentials.ErrUnavailable, err)
		span.RecordError(err)
		return credentials.Credential{}, err
	}
	if parsed.ClientSecret.Value == "" {
		err := fmt.Errorf("%w: response carried no client secret", credentials.ErrUnavailable)
		span.RecordError(err)
		return credentials.Credential{}, err
	}

	credential := credentials.Credential{
		Value:    parsed.ClientSecret.Value,
		IssuedAt: time.Now(),
	}
	if parsed.ClientSecret.ExpiresAt > 0 {
		credential.ExpiresAt = time.Unix(parsed.ClientSecret.ExpiresAt, 0)
	}

	logger.Debug("issued realtime credential", "scope", string(scope), "expires_at", credential.ExpiresAt)
	return credential, nil
}
