// Package llm defines the Provider interface for text-generation backends.
//
// A provider wraps a remote model API (Gemini through any-llm-go, OpenAI
// through its official SDK, or a local Ollama instance) and exposes a uniform
// completion interface so the grammar-analysis layer never couples to a
// specific SDK. Providers issue exactly one network call per Complete
// invocation; retries and failover are layered on top by the caller.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers without a dedicated system field prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// TopP is the nucleus-sampling cutoff in (0.0, 1.0]. Zero means use the
	// provider default. Backends that do not expose it ignore this field.
	TopP float64

	// TopK limits sampling to the K most likely tokens. Zero means use the
	// provider default. Backends that do not expose it ignore this field.
	TopK int

	// MaxTokens caps the number of completion tokens. Zero means use the
	// provider default.
	MaxTokens int

	// ForceJSON asks the backend to constrain output to a JSON object where
	// the API supports a structured response format. Backends without such a
	// knob rely on the prompt alone; callers must still validate the output.
	ForceJSON bool
}

// CompletionResponse is the normalized result of a Complete call.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any text-generation backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It performs exactly one API call; it never retries internally.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	// The result is constant for the lifetime of the Provider instance.
	Capabilities() ModelCapabilities
}
