package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcribe": {"elevenlabs"},
	"grammar":    {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "openai-direct"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields that have sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Retry.Transcribe.MaxRetries == 0 {
		cfg.Retry.Transcribe.MaxRetries = 2
	}
	if cfg.Retry.Grammar.MaxRetries == 0 {
		cfg.Retry.Grammar.MaxRetries = 2
	}
	if cfg.Retry.StructuredAttempts == 0 {
		cfg.Retry.StructuredAttempts = 2
	}
	if cfg.Limits.BatchConcurrency == 0 {
		cfg.Limits.BatchConcurrency = 5
	}
	if cfg.Limits.Language == "" {
		cfg.Limits.Language = "auto"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	if cfg.Providers.Transcribe.Name == "" {
		errs = append(errs, errors.New("providers.transcribe.name is required"))
	}
	if cfg.Providers.Grammar.Name == "" {
		errs = append(errs, errors.New("providers.grammar.name is required"))
	}

	validateProviderName("transcribe", cfg.Providers.Transcribe.Name)
	validateProviderName("grammar", cfg.Providers.Grammar.Name)
	validateProviderName("grammar", cfg.Providers.GrammarFallback.Name)

	if cfg.Retry.Transcribe.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.transcribe.max_retries %d is negative", cfg.Retry.Transcribe.MaxRetries))
	}
	if cfg.Retry.Grammar.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.grammar.max_retries %d is negative", cfg.Retry.Grammar.MaxRetries))
	}
	if cfg.Retry.StructuredAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry.structured_attempts %d is negative", cfg.Retry.StructuredAttempts))
	}
	if cfg.Limits.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("limits.batch_concurrency %d is negative", cfg.Limits.BatchConcurrency))
	}
	if cfg.Files.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("files.max_bytes %d is negative", cfg.Files.MaxBytes))
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; submission history will be kept in memory only")
	}
	if cfg.Whitelist.Path == "" {
		slog.Warn("whitelist.path is empty; all users may submit audio")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
