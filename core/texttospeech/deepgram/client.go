package deepgram

import (
	"context"
	"fmt"
	"slices"

	"github.com/voceto/voicebridge-core/core/texttospeech"
)

type deepgramVoice string

const (
	VoiceAsteria deepgramVoice = "aura-asteria-en"
	VoiceLuna    deepgramVoice = "aura-luna-en"
	VoiceStella  deepgramVoice = "aura-stella-en"
	VoiceAthena  deepgramVoice = "aura-athena-en"
	VoiceOrion   deepgramVoice = "aura-orion-en"

	defaultVoice = VoiceAsteria
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceAsteria, VoiceLuna, VoiceStella, VoiceAthena, VoiceOrion}
}

// ParseVoice resolves a configured voice model name. An empty name selects
// the default voice.
func ParseVoice(name string) (deepgramVoice, error) {
	if name == "" {
		return defaultVoice, nil
	}
	voice := deepgramVoice(name)
	if !slices.Contains(GetAvailableVoices(), voice) {
		return "", fmt.Errorf("unknown voice %q", name)
	}
	return voice, nil
}

type TextToSpeechClient struct {
	options texttospeech.TextToSpeechOptions

	voice deepgramVoice
}

func NewTextToSpeechClient(ctx context.Context, voice deepgramVoice) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{voice: defaultVoice}

	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	client.voice = voice

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}
