// Package transcode converts audio files between codecs by delegating to an
// external encoding process. It guarantees that no partially written or
// ephemeral file survives a failed conversion.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/voceto/voicebridge-core/core/audio"
)

var (
	// ErrSourceNotFound is returned when the conversion source file does not
	// exist or is not a regular file.
	ErrSourceNotFound = errors.New("transcode: source file not found")
	// ErrConversionFailed is returned when the encoding process exits
	// non-zero or cannot be started. The wrapped error carries the process
	// diagnostics.
	ErrConversionFailed = errors.New("transcode: conversion failed")
)

const defaultBinary = "ffmpeg"

type Transcoder struct {
	binary string
}

type TranscoderOption func(*Transcoder)

// WithBinary overrides the encoder binary. Used mostly by tests and by
// deployments where the encoder is not on PATH.
func WithBinary(binary string) TranscoderOption {
	return func(t *Transcoder) {
		if binary != "" {
			t.binary = binary
		}
	}
}

func NewTranscoder(opts ...TranscoderOption) *Transcoder {
	t := &Transcoder{binary: defaultBinary}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcode converts source into target using the configured encoder. The
// target directory is created if absent. On failure any partially written
// target file is removed before the error is returned.
//
// Transcode never retries: a failed conversion is terminal for this call.
func (t *Transcoder) Transcode(ctx context.Context, source, target string, codec audio.CodecParams) (*audio.Artifact, error) {
	artifact := &audio.Artifact{
		SourcePath: source,
		TargetPath: target,
		Codec:      codec,
		State:      audio.ArtifactPending,
	}

	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		artifact.State = audio.ArtifactFailed
		return artifact, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}

	if target == "" {
		target = strings.TrimSuffix(source, filepath.Ext(source)) + "." + codec.Container
		artifact.TargetPath = target
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			artifact.State = audio.ArtifactFailed
			return artifact, fmt.Errorf("failed to create target directory: %w", err)
		}
	}

	artifact.State = audio.ArtifactConverting
	if err := t.runEncoder(ctx, source, target, codec); err != nil {
		artifact.State = audio.ArtifactFailed
		_ = os.Remove(target)
		return artifact, err
	}

	artifact.State = audio.ArtifactReady
	return artifact, nil
}

// TranscodeToEphemeral converts source into a temporary file owned by the
// caller of this package. The returned artifact's target must be removed by
// its consumer once played or sent. If any step fails after the temporary
// file is created, the file is removed before the error propagates.
func (t *Transcoder) TranscodeToEphemeral(ctx context.Context, source string, codec audio.CodecParams) (*audio.Artifact, error) {
	tempFile, err := os.CreateTemp("", "voicebridge-*."+codec.Container)
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeral target: %w", err)
	}
	tempPath := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close ephemeral target: %w", err)
	}

	artifact, err := t.Transcode(ctx, source, tempPath, codec)
	if artifact != nil {
		artifact.Ephemeral = true
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return artifact, err
	}

	return artifact, nil
}

func (t *Transcoder) runEncoder(ctx context.Context, source, target string, codec audio.CodecParams) error {
	args := []string{
		"-i", source,
		"-c:a", "libopus",
		"-b:a", codec.Bitrate,
		"-ar", strconv.Itoa(codec.SampleRate),
		"-application", "voip",
		"-vbr", "on",
		"-compression_level", "10",
		"-frame_duration", "60",
		"-y",
		target,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrConversionFailed, diagnostic)
	}

	return nil
}
