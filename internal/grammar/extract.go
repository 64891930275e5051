package grammar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/talkscribe/talkscribe/pkg/provider/llm"
)

// ErrEmptyResponse reports that the provider returned no usable text. This is
// distinct from a parse failure: it usually indicates provider-side content
// filtering or a quota blip, and it is retryable.
var ErrEmptyResponse = errors.New("provider returned empty response")

// TextCarrier is implemented by response objects that expose their payload
// text directly.
type TextCarrier interface {
	Text() string
}

// ExtractText pulls the raw text payload out of a provider response whose
// shape varies across SDKs and versions. The dispatch is an ordered fallback
// chain; the first shape that yields text wins:
//
//  1. a plain string, or a value exposing a direct text accessor
//  2. a candidate list: candidates[0].content.parts[*].text concatenated
//  3. stringification of the whole value
//
// A payload that still contains a candidate-list JSON envelope as its string
// content (some proxies forward the raw API body) is unwrapped as well.
// Returns ErrEmptyResponse when the extracted text is empty.
func ExtractText(resp any) (string, error) {
	text := extract(resp)

	// Providers that proxy the upstream API verbatim hand us the candidate
	// envelope as a JSON string; descend into it.
	if looksLikeCandidateEnvelope(text) {
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err == nil {
			if inner := candidatesText(m); inner != "" {
				text = inner
			}
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// extract performs the shape dispatch without the emptiness check.
func extract(resp any) string {
	switch v := resp.(type) {
	case nil:
		return ""
	case string:
		return v
	case TextCarrier:
		return v.Text()
	case *llm.CompletionResponse:
		if v == nil {
			return ""
		}
		return v.Content
	case llm.CompletionResponse:
		return v.Content
	case map[string]any:
		if t := candidatesText(v); t != "" {
			return t
		}
		if t, ok := v["text"].(string); ok {
			return t
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", resp)
	}
}

// candidatesText descends into a candidates[0].content.parts[*].text
// structure and concatenates the text fragments. Returns "" when the shape
// does not match.
func candidatesText(m map[string]any) string {
	candidates, ok := m["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return ""
	}
	first, ok := candidates[0].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := first["content"].(map[string]any)
	if !ok {
		return ""
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return ""
	}

	var sb strings.Builder
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := part["text"].(string); ok {
			sb.WriteString(t)
		}
	}
	return sb.String()
}

// looksLikeCandidateEnvelope is a cheap pre-check before attempting a JSON
// unwrap of the payload string.
func looksLikeCandidateEnvelope(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.Contains(s, `"candidates"`)
}
