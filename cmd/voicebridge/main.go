// Voicebridge is a real-time voice session daemon that brokers realtime
// credentials, accumulates streamed transcripts, dispatches finalized
// utterances to a streaming language model, and plays synthesized speech
// back with barge-in interruption.
//
// Usage:
//
//	voicebridge [flags]
//	voicebridge --config /path/to/voicebridge.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestration "github.com/voceto/voicebridge-core/core"
	"github.com/voceto/voicebridge-core/core/audio"
	"github.com/voceto/voicebridge-core/core/audio/miniaudio"
	"github.com/voceto/voicebridge-core/core/audio/transcode"
	"github.com/voceto/voicebridge-core/core/credentials/openairt"
	"github.com/voceto/voicebridge-core/core/llms/gemini"
	"github.com/voceto/voicebridge-core/core/llms/openai"
	deepgramstt "github.com/voceto/voicebridge-core/core/speechtotext/deepgram"
	deepgramtts "github.com/voceto/voicebridge-core/core/texttospeech/deepgram"
	openaitts "github.com/voceto/voicebridge-core/core/texttospeech/openai"
	"github.com/voceto/voicebridge-core/internal/config"
	"github.com/voceto/voicebridge-core/internal/metrics"
	"github.com/voceto/voicebridge-core/internal/server"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/voicebridge.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicebridge %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("voicebridge starting", "version", version)

	// The realtime broker and the deepgram clients read their keys from the
	// environment.
	if cfg.Credentials.OpenAI.APIKey != "" {
		os.Setenv("OPENAI_API_KEY", cfg.Credentials.OpenAI.APIKey)
	}
	if cfg.TTS.Deepgram.APIKey != "" {
		os.Setenv("DEEPGRAM_API_KEY", cfg.TTS.Deepgram.APIKey)
	}
	if cfg.STT.Deepgram.APIKey != "" {
		os.Setenv("DEEPGRAM_API_KEY", cfg.STT.Deepgram.APIKey)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := orchestratorOptions(ctx, cfg)
	if err != nil {
		slog.Error("failed to configure orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.Monitor.Enabled {
		monitor, err := miniaudio.NewClient()
		if err != nil {
			slog.Error("failed to initialize playback monitor", "error", err)
			os.Exit(1)
		}
		defer monitor.Close()
		opts = append(opts, orchestration.WithAudioOutput(monitor))
		slog.Info("local playback monitor enabled")
	}

	orchestrator := orchestration.NewOrchestrator(opts...)
	defer orchestrator.Close()

	var transcribers server.TranscriberFactory
	if cfg.STT.Enabled {
		transcribers = func() server.Transcriber { return deepgramstt.NewTranscriptionClient() }
		slog.Info("server-side transcription enabled", "backend", cfg.STT.Backend)
	}

	m := metrics.NewMetrics()
	srv := server.NewServer(cfg.Server.Port, slog.Default(), orchestrator, m, transcribers)
	srv.Start()

	slog.Info("voicebridge ready",
		"port", cfg.Server.Port,
		"llm_backend", cfg.LLM.Backend,
		"tts_enabled", cfg.TTS.Enabled)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	orchestrator.Close()
	slog.Info("voicebridge stopped")
}

// orchestratorOptions assembles the orchestrator from the configured
// credential, model, synthesis, and artifact backends.
func orchestratorOptions(ctx context.Context, cfg *config.Config) ([]orchestration.OrchestratorOption, error) {
	opts := []orchestration.OrchestratorOption{
		orchestration.WithCredentialBroker(openairt.NewBroker(
			openairt.WithModel(cfg.Credentials.OpenAI.Model),
		)),
		orchestration.WithSystemPrompt(cfg.Session.SystemPrompt),
	}

	switch cfg.LLM.Backend {
	case "openai":
		opts = append(opts, orchestration.WithStreamingLLM(
			openai.NewClient(cfg.LLM.OpenAI.APIKey, openai.WithModel(cfg.LLM.OpenAI.Model))))
		slog.Info("using openai streaming backend", "model", cfg.LLM.OpenAI.Model)
	case "gemini":
		opts = append(opts, orchestration.WithStreamingLLM(
			gemini.NewClient(cfg.LLM.Gemini.APIKey, gemini.WithModel(cfg.LLM.Gemini.Model))))
		slog.Info("using gemini streaming backend", "model", cfg.LLM.Gemini.Model)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}

	if cfg.TTS.Enabled {
		switch cfg.TTS.Backend {
		case "deepgram":
			voice, err := deepgramtts.ParseVoice(cfg.TTS.Deepgram.Model)
			if err != nil {
				return nil, fmt.Errorf("invalid deepgram voice: %w", err)
			}
			client, err := deepgramtts.NewTextToSpeechClient(ctx, voice)
			if err != nil {
				return nil, fmt.Errorf("failed to create deepgram client: %w", err)
			}
			opts = append(opts, orchestration.WithTextToSpeechClient(client))
			slog.Info("using deepgram speech backend", "voice", cfg.TTS.Deepgram.Model)
		case "openai":
			opts = append(opts, orchestration.WithTextToSpeechClient(
				openaitts.NewTextToSpeechClient(openaitts.WithModel(cfg.TTS.OpenAI.Model))))
			slog.Info("using openai speech backend", "model", cfg.TTS.OpenAI.Model)
		default:
			return nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
		}
	}

	if cfg.Session.SessionTools {
		opts = append(opts, orchestration.WithSessionTools())
	}
	if cfg.Session.IdleTimeout > 0 {
		opts = append(opts, orchestration.WithIdleTimeout(cfg.Session.IdleTimeout))
	}

	if cfg.Artifacts.Enabled {
		transcoder := transcode.NewTranscoder(transcode.WithBinary(cfg.Artifacts.FFmpegBinary))
		opts = append(opts, orchestration.WithSpeechArtifacts(transcoder, audio.DefaultVoiceCodec()))
		slog.Info("speech artifact capture enabled", "ffmpeg", cfg.Artifacts.FFmpegBinary)
	}

	return opts, nil
}
