// Package app wires all TalkScribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the bot and the admin HTTP server until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject implementations via functional options
// (WithStore, WithWhitelist, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/talkscribe/talkscribe/internal/config"
	"github.com/talkscribe/talkscribe/internal/discord"
	"github.com/talkscribe/talkscribe/internal/discord/commands"
	"github.com/talkscribe/talkscribe/internal/files"
	"github.com/talkscribe/talkscribe/internal/grammar"
	"github.com/talkscribe/talkscribe/internal/health"
	"github.com/talkscribe/talkscribe/internal/observe"
	"github.com/talkscribe/talkscribe/internal/pipeline"
	"github.com/talkscribe/talkscribe/internal/retry"
	"github.com/talkscribe/talkscribe/internal/storage"
	"github.com/talkscribe/talkscribe/internal/whitelist"
	"github.com/talkscribe/talkscribe/pkg/provider/llm"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

// httpShutdownBudget bounds how long the admin server drains in-flight
// requests once the run context is cancelled.
const httpShutdownBudget = 5 * time.Second

// Providers holds the external model backends, populated by main.go via the
// config registry. Both slots must be non-nil; config validation enforces it.
type Providers struct {
	Transcribe transcribe.Provider
	Grammar    llm.Provider
}

// pipelineSet bundles the grammar checker with the processor built on top of
// it so both can be swapped together on a hot reload.
type pipelineSet struct {
	checker *grammar.Checker
	proc    *pipeline.Processor
}

// processorHandle is a swappable reference to the current pipeline stack.
// Retry and limit settings can be hot-reloaded by storing a freshly built
// set; in-flight submissions keep the set they started with.
type processorHandle struct {
	v atomic.Pointer[pipelineSet]
}

func (h *processorHandle) current() *pipelineSet { return h.v.Load() }

// Process implements discord.AudioPipeline.
func (h *processorHandle) Process(ctx context.Context, path string) *pipeline.Result {
	return h.current().proc.Process(ctx, path)
}

// Status implements commands.Diagnostics.
func (h *processorHandle) Status(ctx context.Context) map[string]string {
	return h.current().proc.Status(ctx)
}

// openAccess admits every user. Used when no whitelist file is configured.
type openAccess struct{}

func (openAccess) Allowed(_, _ string) bool { return true }

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New, torn down in Shutdown.
	store storage.Store
	audio *files.Store
	allow *whitelist.List
	proc  *processorHandle
	bot   *discord.Bot
	srv   *http.Server

	// ping verifies storage connectivity. Nil when history is in-memory.
	ping func(ctx context.Context) error

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a submission store instead of creating one from config.
func WithStore(s storage.Store) Option {
	return func(a *App) { a.store = s }
}

// WithWhitelist injects a whitelist instead of loading one from config.
func WithWhitelist(l *whitelist.List) Option {
	return func(a *App) { a.allow = l }
}

// WithAudioStore injects a temp audio store instead of creating one from config.
func WithAudioStore(s *files.Store) Option {
	return func(a *App) { a.audio = s }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: storage connection and
// migration, temp file store setup, whitelist loading, pipeline assembly,
// Discord connection, and admin HTTP server construction.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		proc:      &processorHandle{},
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Submission history store ──────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Temp audio store ──────────────────────────────────────────────
	if err := a.initFiles(); err != nil {
		return nil, fmt.Errorf("app: init files: %w", err)
	}

	// ── 3. Whitelist ─────────────────────────────────────────────────────
	if err := a.initWhitelist(); err != nil {
		return nil, fmt.Errorf("app: init whitelist: %w", err)
	}

	// ── 4. Pipeline ──────────────────────────────────────────────────────
	a.proc.v.Store(buildPipeline(a.providers, cfg.Retry, cfg.Limits, a.audio))

	// ── 5. Discord bot ───────────────────────────────────────────────────
	if cfg.Discord.Token != "" {
		if err := a.initBot(ctx); err != nil {
			return nil, fmt.Errorf("app: init discord: %w", err)
		}
	}

	// ── 6. Admin HTTP server ─────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// buildPipeline assembles a grammar checker and processor from the tunable
// config sections. Called again on hot reload with the updated sections.
func buildPipeline(p *Providers, rc config.RetryConfig, lc config.LimitsConfig, audio *files.Store) *pipelineSet {
	checker := grammar.New(p.Grammar,
		grammar.WithRetryPolicy(retry.Policy{
			MaxRetries: rc.Grammar.MaxRetries,
			BaseDelay:  rc.Grammar.BaseDelay(),
		}),
		grammar.WithStructuredAttempts(rc.StructuredAttempts),
		grammar.WithBatchWidth(lc.BatchConcurrency),
	)
	proc := pipeline.New(p.Transcribe, checker, audio,
		pipeline.WithRetryPolicy(retry.Policy{
			MaxRetries: rc.Transcribe.MaxRetries,
			BaseDelay:  rc.Transcribe.BaseDelay(),
		}),
		pipeline.WithLanguage(lc.Language),
		pipeline.WithDiarization(lc.Diarize),
	)
	return &pipelineSet{checker: checker, proc: proc}
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStorage connects to PostgreSQL when a DSN is configured, else keeps
// history in memory.
func (a *App) initStorage(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		a.store = storage.NewMemStore()
		slog.Info("submission history kept in memory")
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	store := storage.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migrate schema: %w", err)
	}

	a.store = store
	a.ping = store.Ping
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	slog.Info("postgres storage connected")
	return nil
}

// initFiles sets up the temp audio directory and its validation limits.
func (a *App) initFiles() error {
	if a.audio != nil {
		return nil // injected
	}

	var opts []files.Option
	if a.cfg.Files.MaxBytes > 0 {
		opts = append(opts, files.WithMaxBytes(a.cfg.Files.MaxBytes))
	}
	if a.cfg.Files.MaxAgeHours > 0 {
		opts = append(opts, files.WithMaxAge(time.Duration(a.cfg.Files.MaxAgeHours)*time.Hour))
	}

	store, err := files.NewStore(a.cfg.Files.Dir, opts...)
	if err != nil {
		return err
	}
	a.audio = store
	return nil
}

// initWhitelist loads the whitelist file when one is configured. Without a
// file every user is admitted and the /whitelist command is not registered.
func (a *App) initWhitelist() error {
	if a.allow != nil || a.cfg.Whitelist.Path == "" {
		return nil
	}

	list, err := whitelist.Load(a.cfg.Whitelist.Path)
	if err != nil {
		return fmt.Errorf("load whitelist %q: %w", a.cfg.Whitelist.Path, err)
	}
	a.allow = list

	ids, names, admins := list.Snapshot()
	slog.Info("whitelist loaded",
		"path", a.cfg.Whitelist.Path,
		"enabled", list.Enabled(),
		"users", len(ids)+len(names),
		"admins", len(admins),
	)
	return nil
}

// initBot connects to Discord and registers the slash commands.
func (a *App) initBot(ctx context.Context) error {
	var access discord.Access = openAccess{}
	if a.allow != nil {
		access = a.allow
	}

	subs := discord.NewSubmissions(a.proc, a.audio, access, discord.WithHistory(a.store))

	bot, err := discord.New(ctx, discord.Config{
		Token:   a.cfg.Discord.Token,
		GuildID: a.cfg.Discord.GuildID,
	}, subs)
	if err != nil {
		return err
	}
	a.bot = bot
	a.closers = append(a.closers, bot.Close)

	commands.NewStatusCommands(a.proc, a.ping).Register(bot.Router())
	commands.NewHistoryCommands(a.store).Register(bot.Router())
	if a.allow != nil {
		commands.NewWhitelistCommands(a.allow).Register(bot.Router())
	}

	slog.Info("discord bot connected", "guild_id", a.cfg.Discord.GuildID)
	return nil
}

// initHTTP builds the admin server carrying /metrics, /healthz, and /readyz.
func (a *App) initHTTP() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	checks := []health.Checker{
		health.CheckFunc("transcribe", func(ctx context.Context) error {
			return a.providers.Transcribe.Health(ctx)
		}),
		health.CheckFunc("grammar", func(ctx context.Context) error {
			return a.proc.current().checker.Health(ctx)
		}),
		health.CheckFunc("storage", a.store.Ping),
	}
	health.New("talkscribe", checks...).Register(mux)

	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the Discord bot, the admin HTTP server, the temp file sweeper,
// and the whitelist watcher, then blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.bot != nil {
		g.Go(func() error {
			return a.bot.Run(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("admin server listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), httpShutdownBudget)
		defer cancel()
		return a.srv.Shutdown(sctx)
	})

	g.Go(func() error {
		a.audio.Run(gctx, a.sweepInterval())
		return nil
	})

	if a.allow != nil {
		g.Go(func() error {
			a.allow.Watch(gctx, a.whitelistInterval())
			return nil
		})
	}

	slog.Info("app running")
	return g.Wait()
}

func (a *App) sweepInterval() time.Duration {
	if m := a.cfg.Files.SweepIntervalMinutes; m > 0 {
		return time.Duration(m) * time.Minute
	}
	return time.Hour
}

func (a *App) whitelistInterval() time.Duration {
	if s := a.cfg.Whitelist.PollIntervalSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return 5 * time.Second
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies a hot-reloadable config change to the running app.
// Retry and limit changes rebuild the pipeline stack and swap it in;
// submissions already in flight finish on the old settings. Changes to
// sections that cannot be hot-reloaded are logged and deferred to the next
// restart.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.RetryChanged {
		a.cfg.Retry = d.NewRetry
	}
	if d.LimitsChanged {
		a.cfg.Limits = d.NewLimits
	}
	if d.RetryChanged || d.LimitsChanged {
		a.proc.v.Store(buildPipeline(a.providers, a.cfg.Retry, a.cfg.Limits, a.audio))
		slog.Info("pipeline settings reloaded",
			"retry_changed", d.RetryChanged,
			"limits_changed", d.LimitsChanged,
		)
	}
	if d.RestartNeeded {
		slog.Warn("config change affects providers, discord, storage, or the server address; restart to apply")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order, so the bot
// disconnects before the storage pool closes. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
