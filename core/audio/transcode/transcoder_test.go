package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voceto/voicebridge-core/core/audio"
)

// fakeEncoder writes a shell script that mimics the encoder binary. The last
// argument is the output path, matching the real invocation.
func fakeEncoder(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "encoder")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}
	return path
}

func sourceFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	return path
}

func TestTranscodeMissingSource(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `exit 0`))

	target := filepath.Join(t.TempDir(), "out.ogg")
	artifact, err := transcoder.Transcode(context.Background(), "missing.wav", target, audio.DefaultVoiceCodec())
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if artifact.State != audio.ArtifactFailed {
		t.Fatalf("expected failed artifact state, got %q", artifact.State)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatalf("expected no target file to be created")
	}
}

func TestTranscodeSuccess(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `
for out; do :; done
echo converted > "$out"
exit 0`))

	source := sourceFile(t)
	target := filepath.Join(t.TempDir(), "nested", "out.ogg")

	artifact, err := transcoder.Transcode(context.Background(), source, target, audio.DefaultVoiceCodec())
	if err != nil {
		t.Fatalf("expected conversion to succeed, got %v", err)
	}
	if artifact.State != audio.ArtifactReady {
		t.Fatalf("expected ready artifact, got %q", artifact.State)
	}
	if artifact.TargetPath != target {
		t.Fatalf("expected target path %q, got %q", target, artifact.TargetPath)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected target file to exist: %v", err)
	}
}

func TestTranscodeDefaultsTargetFromSource(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `
for out; do :; done
echo converted > "$out"
exit 0`))

	source := sourceFile(t)
	artifact, err := transcoder.Transcode(context.Background(), source, "", audio.DefaultVoiceCodec())
	if err != nil {
		t.Fatalf("expected conversion to succeed, got %v", err)
	}
	defer os.Remove(artifact.TargetPath)

	want := strings.TrimSuffix(source, ".wav") + ".ogg"
	if artifact.TargetPath != want {
		t.Fatalf("expected derived target %q, got %q", want, artifact.TargetPath)
	}
}

func TestTranscodeFailureRemovesPartialTarget(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `
for out; do :; done
echo partial > "$out"
echo "encoder blew up" >&2
exit 1`))

	source := sourceFile(t)
	target := filepath.Join(t.TempDir(), "out.ogg")

	artifact, err := transcoder.Transcode(context.Background(), source, target, audio.DefaultVoiceCodec())
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder blew up") {
		t.Fatalf("expected diagnostic output in error, got %v", err)
	}
	if artifact.State != audio.ArtifactFailed {
		t.Fatalf("expected failed artifact, got %q", artifact.State)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial target to be removed")
	}
}

func TestTranscodeToEphemeralCleansUpOnFailure(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `
for out; do :; done
echo partial > "$out"
exit 1`))

	source := sourceFile(t)
	artifact, err := transcoder.TranscodeToEphemeral(context.Background(), source, audio.DefaultVoiceCodec())
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if artifact == nil || artifact.TargetPath == "" {
		t.Fatalf("expected artifact with a target path even on failure")
	}
	if _, statErr := os.Stat(artifact.TargetPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected ephemeral file to be removed after failure")
	}
}

func TestTranscodeToEphemeralSuccess(t *testing.T) {
	transcoder := NewTranscoder(fakeEncoderOption(t, `
for out; do :; done
echo converted > "$out"
exit 0`))

	source := sourceFile(t)
	artifact, err := transcoder.TranscodeToEphemeral(context.Background(), source, audio.DefaultVoiceCodec())
	if err != nil {
		t.Fatalf("expected conversion to succeed, got %v", err)
	}
	defer os.Remove(artifact.TargetPath)

	if !artifact.Ephemeral {
		t.Fatalf("expected artifact to be marked ephemeral")
	}
	if artifact.State != audio.ArtifactReady {
		t.Fatalf("expected ready artifact, got %q", artifact.State)
	}
	if _, err := os.Stat(artifact.TargetPath); err != nil {
		t.Fatalf("expected ephemeral file to exist until consumed: %v", err)
	}
}

func fakeEncoderOption(t *testing.T, script string) TranscoderOption {
	t.Helper()
	return WithBinary(fakeEncoder(t, script))
}
