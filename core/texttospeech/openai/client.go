package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/voceto/voicebridge-core/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "tts-1"
	defaultVoice   = "alloy"
)

// TextToSpeechClient synthesizes speech through the buffered audio endpoint.
// Unlike the streaming websocket clients it produces the whole utterance in
// one response, which makes it suitable for generating audio artifacts.
type TextToSpeechClient struct {
	baseURL string
	model   string
	voice   string

	httpClient *http.Client
}

type ClientOption func(*TextToSpeechClient)

// WithBaseURL overrides the API base URL, e.g. to point at a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.model = model
	}
}

func WithVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.voice = voice
	}
}

func NewTextToSpeechClient(opts ...ClientOption) *TextToSpeechClient {
	client := &TextToSpeechClient{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		voice:   defaultVoice,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type speechRequestBody struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// Synthesize converts text to a complete audio clip, mp3 encoded.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))
	span.SetAttributes(attribute.String("request.voice", c.voice))
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		err := fmt.Errorf("%w: openai api key not found", texttospeech.ErrSynthesisFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	requestBodyBytes, err := json.Marshal(speechRequestBody{
		Model: c.model,
		Voice: c.voice,
		Input: text,
	})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio/speech", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: error sending request: %w", texttospeech.ErrSynthesisFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}

		err := fmt.Errorf("%w: non-OK HTTP status: %s", texttospeech.ErrSynthesisFailed, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: error reading audio body: %w", texttospeech.ErrSynthesisFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(audio)))
	return audio, nil
}
