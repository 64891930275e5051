package openai

import (
	"testing"
	"time"

	"github.com/talkscribe/talkscribe/pkg/provider/llm"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_MissingAPIKey ensures the constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures the constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithTimeout(10*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that the system prompt leads the
// message list.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	params, err := buildParams("gpt-4o", llm.CompletionRequest{
		SystemPrompt: "You are a grammar checker.",
		Messages: []llm.Message{
			{Role: "user", Content: "Fix this sentence."},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected leading system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected user message second")
	}
}

// TestBuildParams_Roles checks conversion for each supported message role.
func TestBuildParams_Roles(t *testing.T) {
	params, err := buildParams("gpt-4o", llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Be terse."},
			{Role: "user", Content: "Hello!"},
			{Role: "assistant", Content: "Hi there!"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected OfSystem for system role")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected OfUser for user role")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("expected OfAssistant for assistant role")
	}
}

// TestBuildParams_UnknownRole checks that unknown roles return an error.
func TestBuildParams_UnknownRole(t *testing.T) {
	_, err := buildParams("gpt-4o", llm.CompletionRequest{
		Messages: []llm.Message{{Role: "narrator", Content: "meanwhile"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// TestBuildParams_ForceJSON checks that ForceJSON sets the response format.
func TestBuildParams_ForceJSON(t *testing.T) {
	params, err := buildParams("gpt-4o", llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: "hi"}},
		ForceJSON: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("expected JSON object response format")
	}
}

// TestBuildParams_OptionalKnobs checks that zero sampling values stay unset.
func TestBuildParams_OptionalKnobs(t *testing.T) {
	params, err := buildParams("gpt-4o", llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.1,
		TopP:        0.8,
		MaxTokens:   2048,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.1 {
		t.Errorf("Temperature = %v, want 0.1", params.Temperature.Value)
	}
	if !params.TopP.Valid() || params.TopP.Value != 0.8 {
		t.Errorf("TopP = %v, want 0.8", params.TopP.Value)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 2048 {
		t.Errorf("MaxCompletionTokens = %v, want 2048", params.MaxCompletionTokens.Value)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities_GPT4oMini checks gpt-4o-mini capabilities.
func TestModelCapabilities_GPT4oMini(t *testing.T) {
	caps := modelCapabilities("gpt-4o-mini")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o-mini: expected context window 128000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o-mini: expected MaxOutputTokens 16384, got %d", caps.MaxOutputTokens)
	}
	if !caps.SupportsJSONMode {
		t.Error("gpt-4o-mini: expected SupportsJSONMode=true")
	}
}

// TestModelCapabilities_GPT4 checks gpt-4 capabilities.
func TestModelCapabilities_GPT4(t *testing.T) {
	caps := modelCapabilities("gpt-4")
	if caps.ContextWindow != 8_192 {
		t.Errorf("gpt-4: expected context window 8192, got %d", caps.ContextWindow)
	}
}

// TestModelCapabilities_GPT35Turbo checks gpt-3.5-turbo capabilities.
func TestModelCapabilities_GPT35Turbo(t *testing.T) {
	caps := modelCapabilities("gpt-3.5-turbo")
	if caps.ContextWindow != 16_385 {
		t.Errorf("gpt-3.5-turbo: expected context window 16385, got %d", caps.ContextWindow)
	}
}

// TestModelCapabilities_O1 checks o1 reasoning model capabilities.
func TestModelCapabilities_O1(t *testing.T) {
	caps := modelCapabilities("o1")
	if caps.ContextWindow != 200_000 {
		t.Errorf("o1: expected context window 200000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 100_000 {
		t.Errorf("o1: expected MaxOutputTokens 100000, got %d", caps.MaxOutputTokens)
	}
}

// TestModelCapabilities_UnknownModel checks defaults for unrecognised models.
func TestModelCapabilities_UnknownModel(t *testing.T) {
	caps := modelCapabilities("my-custom-model")
	if caps.ContextWindow <= 0 {
		t.Error("unknown model: expected positive ContextWindow")
	}
	if caps.MaxOutputTokens <= 0 {
		t.Error("unknown model: expected positive MaxOutputTokens")
	}
}
