package config_test

import (
	"testing"

	"github.com/talkscribe/talkscribe/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Discord: config.DiscordConfig{Token: "bot-token"},
		Providers: config.ProvidersConfig{
			Transcribe: config.ProviderEntry{Name: "elevenlabs", APIKey: "el-key"},
			Grammar:    config.ProviderEntry{Name: "openai", APIKey: "oa-key", Model: "gpt-4o-mini"},
		},
		Retry: config.RetryConfig{
			Transcribe:         config.RetrySettings{MaxRetries: 2},
			Grammar:            config.RetrySettings{MaxRetries: 2},
			StructuredAttempts: 2,
		},
		Limits: config.LimitsConfig{BatchConcurrency: 5, Language: "auto"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.RetryChanged {
		t.Error("expected RetryChanged=false for identical configs")
	}
	if d.LimitsChanged {
		t.Error("expected LimitsChanged=false for identical configs")
	}
	if d.RestartNeeded {
		t.Error("expected RestartNeeded=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.RestartNeeded {
		t.Error("log level change should not require a restart")
	}
}

func TestDiff_RetryChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Retry.Grammar.MaxRetries = 5

	d := config.Diff(old, new)
	if !d.RetryChanged {
		t.Error("expected RetryChanged=true")
	}
	if d.NewRetry.Grammar.MaxRetries != 5 {
		t.Errorf("NewRetry.Grammar.MaxRetries: got %d, want 5", d.NewRetry.Grammar.MaxRetries)
	}
	if d.RestartNeeded {
		t.Error("retry change should not require a restart")
	}
}

func TestDiff_LimitsChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Limits.Diarize = true

	d := config.Diff(old, new)
	if !d.LimitsChanged {
		t.Error("expected LimitsChanged=true")
	}
	if !d.NewLimits.Diarize {
		t.Error("NewLimits.Diarize should be true")
	}
}

func TestDiff_ProviderChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.Grammar.Model = "gpt-4o"

	d := config.Diff(old, new)
	if !d.RestartNeeded {
		t.Error("provider change should require a restart")
	}
}

func TestDiff_DiscordChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Discord.GuildID = "guild-2"

	d := config.Diff(old, new)
	if !d.RestartNeeded {
		t.Error("discord change should require a restart")
	}
}

func TestDiff_ListenAddrChangeNeedsRestart(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.ListenAddr = ":9090"

	d := config.Diff(old, new)
	if !d.RestartNeeded {
		t.Error("listen address change should require a restart")
	}
	if d.LogLevelChanged {
		t.Error("LogLevelChanged should be false")
	}
}

func TestDiff_FallbackProviderOptions(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.GrammarFallback = config.ProviderEntry{
		Name:    "ollama",
		BaseURL: "http://localhost:11434",
		Options: map[string]any{"num_ctx": 8192},
	}

	d := config.Diff(old, new)
	if !d.RestartNeeded {
		t.Error("adding a fallback provider should require a restart")
	}
}
