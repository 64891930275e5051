package config_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/talkscribe/talkscribe/internal/config"
	"github.com/talkscribe/talkscribe/pkg/provider/llm"
	llmmock "github.com/talkscribe/talkscribe/pkg/provider/llm/mock"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
	transcribemock "github.com/talkscribe/talkscribe/pkg/provider/transcribe/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{config.LogLevel(""), false},
		{config.LogLevel("trace"), false},
		{config.LogLevel("INFO"), false},
	}
	for _, tc := range cases {
		if got := tc.level.IsValid(); got != tc.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestRetrySettings_BaseDelay(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		ms   int
		want time.Duration
	}{
		{"zero uses default", 0, time.Second},
		{"negative uses default", -50, time.Second},
		{"explicit value", 250, 250 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := config.RetrySettings{BaseDelayMS: tc.ms}
			if got := r.BaseDelay(); got != tc.want {
				t.Errorf("BaseDelay() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRegistry_CreateTranscribe(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterTranscribe("elevenlabs", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		gotEntry = entry
		return &transcribemock.Provider{}, nil
	})

	entry := config.ProviderEntry{Name: "elevenlabs", APIKey: "el-key", Model: "scribe_v1"}
	p, err := reg.CreateTranscribe(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a provider, got nil")
	}
	if gotEntry.APIKey != "el-key" {
		t.Errorf("factory received api_key %q, want %q", gotEntry.APIKey, "el-key")
	}
	if gotEntry.Model != "scribe_v1" {
		t.Errorf("factory received model %q, want %q", gotEntry.Model, "scribe_v1")
	}
}

func TestRegistry_CreateGrammar(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterGrammar("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	p, err := reg.CreateGrammar(config.ProviderEntry{Name: "openai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a provider, got nil")
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	_, err := reg.CreateTranscribe(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}

	_, err = reg.CreateGrammar(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("bad credentials")
	reg.RegisterGrammar("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})

	_, err := reg.CreateGrammar(config.ProviderEntry{Name: "openai"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error to propagate, got %v", err)
	}
}

func TestMaskKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		key  string
		want string
	}{
		{"empty stays empty", "", ""},
		{"short key fully masked", "abcd", "****"},
		{"long key keeps last four", "sk-proj-1234567890wxyz", "***wxyz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := config.MaskKey(tc.key); got != tc.want {
				t.Errorf("MaskKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestProviderEntry_LogValue_MasksAPIKey(t *testing.T) {
	t.Parallel()
	entry := config.ProviderEntry{
		Name:    "openai",
		APIKey:  "sk-proj-1234567890wxyz",
		BaseURL: "https://api.example.com",
		Model:   "gpt-4o-mini",
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("provider configured", "provider", entry)

	out := buf.String()
	if strings.Contains(out, entry.APIKey) {
		t.Errorf("log output leaked the raw API key: %s", out)
	}
	if !strings.Contains(out, "***wxyz") {
		t.Errorf("log output missing masked key: %s", out)
	}
	if !strings.Contains(out, "gpt-4o-mini") {
		t.Errorf("log output missing model: %s", out)
	}
}
