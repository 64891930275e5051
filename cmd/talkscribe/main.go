// Command talkscribe is the main entry point for the TalkScribe Discord bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/talkscribe/talkscribe/internal/app"
	"github.com/talkscribe/talkscribe/internal/config"
	"github.com/talkscribe/talkscribe/internal/observe"
	"github.com/talkscribe/talkscribe/internal/resilience"
	"github.com/talkscribe/talkscribe/pkg/provider/llm"
	"github.com/talkscribe/talkscribe/pkg/provider/llm/anyllm"
	openaidirect "github.com/talkscribe/talkscribe/pkg/provider/llm/openai"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "talkscribe: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "talkscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("talkscribe starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "talkscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.ApplyConfig(d)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("bot ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscribe("elevenlabs", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Grammar models ────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, and groq all share the
	// same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterGrammar(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterGrammar("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-direct bypasses the any-llm abstraction and talks to the OpenAI
	// API through the official client. Useful for features the abstraction
	// does not expose yet.
	reg.RegisterGrammar("openai-direct", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openaidirect.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaidirect.WithBaseURL(entry.BaseURL))
		}
		return openaidirect.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. When a grammar fallback is configured, the primary is wrapped in a
// breaker-guarded failover chain.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	stt, err := reg.CreateTranscribe(cfg.Providers.Transcribe)
	if err != nil {
		return nil, fmt.Errorf("create transcribe provider %q: %w", cfg.Providers.Transcribe.Name, err)
	}
	ps.Transcribe = stt
	slog.Info("provider created", "kind", "transcribe", "provider", cfg.Providers.Transcribe)

	primary, err := reg.CreateGrammar(cfg.Providers.Grammar)
	if err != nil {
		return nil, fmt.Errorf("create grammar provider %q: %w", cfg.Providers.Grammar.Name, err)
	}
	ps.Grammar = primary
	slog.Info("provider created", "kind", "grammar", "provider", cfg.Providers.Grammar)

	if name := cfg.Providers.GrammarFallback.Name; name != "" {
		spare, err := reg.CreateGrammar(cfg.Providers.GrammarFallback)
		if err != nil {
			return nil, fmt.Errorf("create grammar fallback %q: %w", name, err)
		}
		failover := resilience.NewGrammarFailover(cfg.Providers.Grammar.Name, primary, resilience.Settings{
			Name: "grammar",
		})
		failover.Add(name, spare)
		ps.Grammar = failover
		slog.Info("provider created", "kind", "grammar_fallback", "provider", cfg.Providers.GrammarFallback)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       TalkScribe startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Transcribe", cfg.Providers.Transcribe.Name, cfg.Providers.Transcribe.Model)
	printProvider("Grammar", cfg.Providers.Grammar.Name, cfg.Providers.Grammar.Model)
	printProvider("Fallback", cfg.Providers.GrammarFallback.Name, cfg.Providers.GrammarFallback.Model)
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  History         : %-19s║\n", "postgres")
	} else {
		fmt.Printf("║  History         : %-19s║\n", "in-memory")
	}
	if cfg.Whitelist.Path != "" {
		fmt.Printf("║  Whitelist       : %-19s║\n", "enabled")
	} else {
		fmt.Printf("║  Whitelist       : %-19s║\n", "(open access)")
	}
	fmt.Printf("║  Listen addr     : %-19s║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the default text logger. The returned LevelVar lets the
// config watcher adjust verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
