package grammar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that a payload could not be parsed as a structured
// grammar analysis. It triggers the fallback parser within the same retry
// attempt; it is never independently retried.
type ParseError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grammar: structured parse: %s: %v", e.Reason, e.Err)
	}
	return "grammar: structured parse: " + e.Reason
}

// Unwrap returns the underlying error, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// ParseStructured parses raw as a strict JSON grammar analysis. It strips
// markdown code fences, bounds the JSON substring between the first '{' and
// the last '}' (models often emit commentary around the object), decodes,
// and validates that a corrected text is present. Missing optional fields
// receive defaults (confidence 0.95, empty lists).
//
// Field names are matched tolerantly: snake_case, concatenated-lowercase and
// spaced variants of each key are all accepted, since providers are
// inconsistent in practice.
//
// The caller fills OriginalText, RetryAttempts, and (when the payload omits
// a count) ImprovementsMade on the returned Analysis.
func ParseStructured(raw string) (*Analysis, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, &ParseError{Reason: "no JSON object found"}
	}
	cleaned = cleaned[start : end+1]

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	fields := normalizeKeys(payload)

	corrected, _ := fields["correctedtext"].(string)
	if strings.TrimSpace(corrected) == "" {
		return nil, &ParseError{Reason: "missing corrected_text"}
	}

	a := &Analysis{
		Success:          true,
		CorrectedText:    strings.TrimSpace(corrected),
		GrammarIssues:    issueStrings(fields["grammarissues"]),
		SpeakingTips:     stringList(fields["speakingtips"]),
		ConfidenceScore:  0.95,
		ImprovementsMade: -1,
		MethodUsed:       MethodStructured,
	}

	if c, ok := toFloat(fields["confidencescore"]); ok && c >= 0 && c <= 1 {
		a.ConfidenceScore = c
	}
	if n, ok := toFloat(fields["improvementsmade"]); ok && n >= 0 {
		a.ImprovementsMade = int(n)
	}

	return a, nil
}

// stripFences removes optional markdown code fences (```json ... ```) that
// models prepend and append to JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// normalizeKeys rewrites each top-level key to lowercase with underscores
// and spaces removed, so "corrected_text", "correctedText", and
// "Corrected Text" all land on "correctedtext".
func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nk := strings.ToLower(k)
		nk = strings.ReplaceAll(nk, "_", "")
		nk = strings.ReplaceAll(nk, " ", "")
		if _, exists := out[nk]; !exists {
			out[nk] = v
		}
	}
	return out
}

// issueStrings flattens the grammar_issues value into display strings.
// Entries may be plain strings or {issue, explanation} objects; objects are
// rendered as "issue: explanation".
func issueStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if it != "" {
				out = append(out, it)
			}
		case map[string]any:
			f := normalizeKeys(it)
			issue, _ := f["issue"].(string)
			explanation, _ := f["explanation"].(string)
			switch {
			case issue != "" && explanation != "":
				out = append(out, issue+": "+explanation)
			case issue != "":
				out = append(out, issue)
			case explanation != "":
				out = append(out, explanation)
			}
		}
	}
	return out
}

// stringList coerces a decoded JSON array into a []string, skipping
// non-string entries.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// toFloat coerces a decoded JSON number into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
