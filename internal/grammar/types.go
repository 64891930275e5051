package grammar

import "strings"

// Method identifies which parse strategy produced an Analysis.
type Method string

const (
	// MethodStructured means the strict JSON parser accepted the payload.
	MethodStructured Method = "structured"

	// MethodLegacy means the regex fallback parser produced the result.
	MethodLegacy Method = "legacy"
)

// Sentinel strings inserted by the fallback parser when the provider payload
// could not be analyzed. Display layers filter these before rendering.
const (
	IssuesSentinel = "Unable to analyze grammar issues due to response format"
	TipsSentinel   = "Try speaking more clearly and check the corrected text for improvements"
)

// Analysis is the normalized outcome of a grammar check. Immutable once
// returned; never persisted as-is.
//
// Invariant: when Success is false, CorrectedText equals OriginalText; user
// content is never dropped.
type Analysis struct {
	// Success reports whether a correction result was produced. A malformed
	// provider response is still a success (degraded via the fallback
	// parser); only exhausted retries or non-retryable errors yield false.
	Success bool

	// OriginalText is the input as submitted.
	OriginalText string

	// CorrectedText is the corrected rendition, or OriginalText when no
	// correction was available.
	CorrectedText string

	// GrammarIssues lists human-readable "issue: explanation" pairs.
	GrammarIssues []string

	// SpeakingTips lists improvement suggestions.
	SpeakingTips []string

	// ConfidenceScore is the provider's reported confidence in [0, 1].
	// Defaults to 0.95 when the payload omits it.
	ConfidenceScore float64

	// ImprovementsMade counts word-level changes. When the payload omits it,
	// the value is computed by a crude word-position diff, not a true edit
	// distance.
	ImprovementsMade int

	// MethodUsed records which parse strategy produced the result.
	MethodUsed Method

	// RetryAttempts reports retry accounting: on success, the index of the
	// attempt that succeeded; on failure, the total attempts performed.
	RetryAttempts int

	// FallbackUsed is true when no correction could be extracted and
	// OriginalText was echoed back.
	FallbackUsed bool

	// Err carries the terminal error description when Success is false.
	Err string
}

// improvementsCount estimates the number of word-level changes between the
// original and corrected text. This is a documented heuristic (length
// difference plus position-wise mismatches), not an edit distance.
func improvementsCount(original, corrected string) int {
	ow := strings.Fields(original)
	cw := strings.Fields(corrected)

	count := len(ow) - len(cw)
	if count < 0 {
		count = -count
	}

	n := len(ow)
	if len(cw) < n {
		n = len(cw)
	}
	for i := 0; i < n; i++ {
		if ow[i] != cw[i] {
			count++
		}
	}
	return count
}
