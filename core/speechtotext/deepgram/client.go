package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voceto/voicebridge-core/core/speechtotext"
)

type TranscriptionClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs time.Time

	accumulatedTranscript string
	unendedSegment        bool
}

func NewTranscriptionClient() *TranscriptionClient {
	return &TranscriptionClient{}
}

// callbackConfig holds the resolved callbacks, with unset ones replaced by
// noops, together with the websocket features they require.
type callbackConfig struct {
	partialInterimTranscriptionCallback func(string)
	interimTranscriptionCallback        func(string)
	partialTranscriptionCallback        func(string)
	transcriptionCallback               func(string)
	startSpeechCallback                 func()
	endSpeechCallback                   func()
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbackConfig, websocketConfig) {
	callbacks := callbackConfig{
		partialInterimTranscriptionCallback: options.PartialInterimTranscriptionCallback,
		interimTranscriptionCallback:        options.InterimTranscriptionCallback,
		partialTranscriptionCallback:        options.PartialTranscriptionCallback,
		transcriptionCallback:               options.TranscriptionCallback,
		startSpeechCallback:                 options.SpeechStartedCallback,
		endSpeechCallback:                   options.SpeechEndedCallback,
	}

	wsConfig := websocketConfig{
		shouldDetectSpeechStart: options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		shouldRequestInterimResults: options.PartialInterimTranscriptionCallback != nil ||
			options.InterimTranscriptionCallback != nil,
	}

	if callbacks.partialInterimTranscriptionCallback == nil {
		callbacks.partialInterimTranscriptionCallback = func(string) {}
	}
	if callbacks.interimTranscriptionCallback == nil {
		callbacks.interimTranscriptionCallback = func(string) {}
	}
	if callbacks.partialTranscriptionCallback == nil {
		callbacks.partialTranscriptionCallback = func(string) {}
	}
	if callbacks.transcriptionCallback == nil {
		callbacks.transcriptionCallback = func(string) {}
	}
	if callbacks.startSpeechCallback == nil {
		callbacks.startSpeechCallback = func() {}
	}
	if callbacks.endSpeechCallback == nil {
		callbacks.endSpeechCallback = func() {}
	}

	return callbacks, wsConfig
}
