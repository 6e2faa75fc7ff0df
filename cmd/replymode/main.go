// Replymode decides whether the sales assistant answers a WhatsApp/Instagram
// customer with a synthesized voice note or with text, and builds the reply.
//
// Usage:
//
//	replymode [flags]
//	replymode --config /path/to/replymode.yaml
//
// @title       replymode API
// @version     1.0
// @description Decides whether assistant replies are sent as audio or text and builds the reply parts.
// @BasePath    /
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/caji-assist/replymode/internal/chattext"
	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/dispatch"
	"github.com/caji-assist/replymode/internal/health"
	"github.com/caji-assist/replymode/internal/modestore"
	"github.com/caji-assist/replymode/internal/session"
	"github.com/caji-assist/replymode/internal/transcribe"
	geminitranscribe "github.com/caji-assist/replymode/internal/transcribe/gemini"
	openaitranscribe "github.com/caji-assist/replymode/internal/transcribe/openai"
	"github.com/caji-assist/replymode/internal/transport"
	grpctransport "github.com/caji-assist/replymode/internal/transport/grpc"
	httptransport "github.com/caji-assist/replymode/internal/transport/http"
	"github.com/caji-assist/replymode/internal/tts"
	geminitts "github.com/caji-assist/replymode/internal/tts/gemini"
	"github.com/caji-assist/replymode/internal/tts/piper"
	"github.com/caji-assist/replymode/internal/ttspolicy"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/replymode.local.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("replymode %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("replymode starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	healthServer := health.New(cfg.Server.HealthPort)

	// Initialize the voice-mode registry.
	var store modestore.Store
	switch cfg.Store.Backend {
	case "redis":
		r, err := modestore.NewRedis(ctx, modestore.RedisOptions{
			URL:       cfg.Store.Redis.URL,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
			TTL:       cfg.Store.Redis.TTL,
		})
		if err != nil {
			slog.Error("failed to connect mode store", "error", err)
			os.Exit(1)
		}
		store = r
		slog.Info("using redis mode store", "key_prefix", cfg.Store.Redis.KeyPrefix, "ttl", cfg.Store.Redis.TTL)
	default:
		store = modestore.NewMemory()
		slog.Info("using in-memory mode store")
	}
	defer store.Close()
	healthServer.AddCheck("mode_store", store.Ping)

	// Initialize the transcription backend.
	var transcriber transcribe.Transcriber
	switch cfg.Transcription.Backend {
	case "gemini":
		g, err := geminitranscribe.New(ctx, cfg.Transcription.Gemini)
		if err != nil {
			slog.Error("failed to initialize gemini transcription", "error", err)
			os.Exit(1)
		}
		transcriber = g
		slog.Info("using gemini transcription", "model", cfg.Transcription.Gemini.Model)
	case "openai":
		transcriber = openaitranscribe.New(cfg.Transcription.OpenAI)
		slog.Info("using openai transcription", "model", cfg.Transcription.OpenAI.Model)
	default:
		slog.Warn("transcription disabled, voice notes will be answered from a placeholder")
	}

	// Initialize TTS (optional; failure is non-fatal and replies stay text).
	var synthesizer tts.Synthesizer
	if cfg.TTS.Enabled {
		synthesizer = newSynthesizer(ctx, cfg.TTS)
		if synthesizer != nil {
			defer synthesizer.Close()
		}
	}

	// Session defaults.
	defaults := session.Config{
		TTSEnabled: cfg.Sessions.TTSEnabled,
		Voice:      cfg.Sessions.Voice,
		Rules:      session.RulesFromText(cfg.Sessions.Rules),
	}

	evaluator := ttspolicy.New(store, ttspolicy.WithPhrases(ttspolicy.Phrases{
		Start: cfg.Policy.Phrases.Start,
		Stop:  cfg.Policy.Phrases.Stop,
	}))

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if len(transports) == 0 {
		slog.Error("no transports enabled, enable at least one in config")
		os.Exit(1)
	}

	// Create the dispatcher.
	dispatcher := dispatch.New(dispatch.Deps{
		Evaluator:   evaluator,
		Sessions:    session.NewStore(defaults),
		Store:       store,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Transports:  transports,
		Location:    chattext.LoadLocation(cfg.Clock.Timezone),
	})

	// Start health check server.
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("replymode ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"tts", synthesizer != nil)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("replymode stopped")
}

// newSynthesizer builds the configured TTS backend, wrapped in a circuit
// breaker when enabled. It returns nil when the backend cannot be set up.
func newSynthesizer(ctx context.Context, cfg config.TTSConfig) tts.Synthesizer {
	var s tts.Synthesizer
	switch cfg.Backend {
	case "piper":
		s = piper.New(cfg.Piper)
		slog.Info("TTS enabled", "backend", "piper", "endpoint", cfg.Piper.Endpoint, "language", cfg.Piper.Language)
	default:
		g, err := geminitts.New(ctx, cfg.Gemini)
		if err != nil {
			slog.Warn("TTS disabled", "backend", "gemini", "error", err)
			return nil
		}
		s = g
		slog.Info("TTS enabled", "backend", "gemini", "model", cfg.Gemini.Model)
	}

	if cfg.Breaker.Enabled {
		return tts.NewGuarded(s, cfg.Breaker)
	}
	return s
}
