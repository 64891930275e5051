// Package grammar implements the grammar-correction core: response
// extraction across provider payload shapes, strict structured parsing with
// a regex fallback, and a retry-driven checker that always produces a usable
// result even when the upstream model misbehaves.
package grammar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/talkscribe/talkscribe/internal/retry"
	"github.com/talkscribe/talkscribe/pkg/provider/llm"
)

const (
	defaultTemperature        = 0.1
	defaultTopP               = 0.8
	defaultTopK               = 40
	defaultMaxTokens          = 2048
	defaultStructuredAttempts = 2
	defaultBatchWidth         = 5
)

// errEmptyInput aborts the retry loop immediately: retrying an empty input
// cannot succeed.
var errEmptyInput = errors.New("Empty text provided")

// defaultNonRetryable lists error substrings that short-circuit the retry
// loop for grammar checks.
var defaultNonRetryable = []string{
	"Invalid API key",
	"Empty text provided",
	"authentication",
}

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithRetryPolicy overrides the retry policy. The zero policy performs a
// single attempt.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Checker) {
		if len(p.NonRetryable) == 0 {
			p.NonRetryable = defaultNonRetryable
		}
		c.policy = p
	}
}

// WithStructuredAttempts sets how many leading attempts use the strict JSON
// prompt before switching to the legacy prompt. The threshold is tunable
// policy, not a fixed constant. Default: 2.
func WithStructuredAttempts(n int) Option {
	return func(c *Checker) {
		if n >= 0 {
			c.structuredAttempts = n
		}
	}
}

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(c *Checker) {
		c.temperature = t
	}
}

// WithMaxTokens caps completion length. Default: 2048.
func WithMaxTokens(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTextContext describes the origin of checked text in prompts
// (default "transcribed speech").
func WithTextContext(tc string) Option {
	return func(c *Checker) {
		c.textContext = tc
	}
}

// WithBatchWidth sets the concurrency bound for CheckBatch. Default: 5.
func WithBatchWidth(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.batchWidth = n
		}
	}
}

// Checker drives grammar checks against an llm.Provider with bounded retries.
// Each Check invocation is independent; the Checker is safe for concurrent
// use and CheckBatch bounds its own fan-out.
type Checker struct {
	provider           llm.Provider
	policy             retry.Policy
	structuredAttempts int
	temperature        float64
	topP               float64
	topK               int
	maxTokens          int
	textContext        string
	batchWidth         int
}

// New returns a Checker backed by provider with default generation
// parameters (temperature 0.1, top_p 0.8, top_k 40).
func New(provider llm.Provider, opts ...Option) *Checker {
	c := &Checker{
		provider:           provider,
		policy:             retry.Policy{NonRetryable: defaultNonRetryable},
		structuredAttempts: defaultStructuredAttempts,
		temperature:        defaultTemperature,
		topP:               defaultTopP,
		topK:               defaultTopK,
		maxTokens:          defaultMaxTokens,
		textContext:        "transcribed speech",
		batchWidth:         defaultBatchWidth,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check analyzes text and returns a terminal Analysis. It never returns an
// error: transport and parse failures are absorbed by the retry loop and
// degraded into the result record. The corrected text always defaults to the
// input on failure.
func (c *Checker) Check(ctx context.Context, text string) *Analysis {
	if text == "" {
		return &Analysis{
			Success:       false,
			FallbackUsed:  true,
			CorrectedText: text,
			Err:           errEmptyInput.Error(),
		}
	}

	out := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (*Analysis, error) {
		return c.attempt(ctx, text, attempt)
	})

	if out.State == retry.StateSuccess {
		a := out.Value
		a.OriginalText = text
		a.RetryAttempts = out.Attempts
		if a.ImprovementsMade < 0 {
			a.ImprovementsMade = improvementsCount(text, a.CorrectedText)
		}
		return a
	}

	slog.Warn("grammar check exhausted",
		"attempts", out.Attempts,
		"non_retryable", out.NonRetryable,
		"err", out.Err,
	)
	return &Analysis{
		Success:       false,
		OriginalText:  text,
		CorrectedText: text,
		RetryAttempts: out.Attempts,
		FallbackUsed:  true,
		Err:           out.Err.Error(),
	}
}

// attempt performs one transport call, extraction, and parse round. A strict
// parse failure falls through to the fallback parser inside the same attempt
// and is therefore never surfaced as a retryable error.
func (c *Checker) attempt(ctx context.Context, text string, attempt int) (*Analysis, error) {
	structured := attempt < c.structuredAttempts

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(text, c.textContext, structured)},
		},
		Temperature: c.temperature,
		TopP:        c.topP,
		TopK:        c.topK,
		MaxTokens:   c.maxTokens,
		ForceJSON:   structured && c.provider.Capabilities().SupportsJSONMode,
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	raw, err := ExtractText(resp)
	if err != nil {
		// Empty payload: retryable, distinct from a parse failure.
		return nil, err
	}

	a, parseErr := ParseStructured(raw)
	if parseErr != nil {
		slog.Debug("structured parse failed, using fallback parser",
			"attempt", attempt, "err", parseErr)
		a = ParseFallback(raw, text)
	}
	return a, nil
}

// CheckBatch analyzes multiple texts concurrently, bounded by a counting
// semaphore so no more than batchWidth provider calls are in flight at once.
// The result slice is index-aligned with texts; per-item failures do not
// affect the other items.
func (c *Checker) CheckBatch(ctx context.Context, texts []string) []*Analysis {
	results := make([]*Analysis, len(texts))
	sem := semaphore.NewWeighted(int64(c.batchWidth))

	var wg sync.WaitGroup
	for i, text := range texts {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled: mark the remaining items failed without calling out.
			for j := i; j < len(texts); j++ {
				results[j] = &Analysis{
					Success:       false,
					OriginalText:  texts[j],
					CorrectedText: texts[j],
					FallbackUsed:  true,
					Err:           err.Error(),
				}
			}
			break
		}

		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = c.Check(ctx, text)
		}(i, text)
	}
	wg.Wait()

	return results
}

// Health issues a minimal completion to verify the provider is reachable and
// credentialed. Used by readiness checks.
func (c *Checker) Health(ctx context.Context) error {
	_, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: "Reply with OK."}},
		MaxTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("grammar provider: %w", err)
	}
	return nil
}
