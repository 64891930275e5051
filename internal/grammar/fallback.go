package grammar

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fallbackConfidence is reported when the regex fallback extracted a
// correction from a malformed payload.
const fallbackConfidence = 0.70

// minFallbackLen is the minimum decoded length for a regex match to be
// trusted as a correction. Shorter matches are usually fragments of a
// truncated payload.
const minFallbackLen = 10

// correctedPatterns is the ordered list of regexes tried against a payload
// that failed strict parsing. Earlier entries are stricter; the first match
// of sufficient length wins. All tolerate escaped quotes and multi-line
// content inside the string value.
var correctedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)"corrected_text"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`(?s)"correctedtext"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`(?si)"corrected[_\s]*text"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`(?si)corrected[_\s]*text\s*[:=]\s*"((?:[^"\\]|\\.)*)"`),
}

// ParseFallback extracts a best-effort correction from a payload that failed
// strict JSON parsing. It never fails: when no pattern matches, the original
// input text is returned unchanged (content is never fabricated) and
// FallbackUsed is set. Either way the result is a success: a malformed AI
// response degrades to "no correction available", it is not a user-facing
// failure.
//
// GrammarIssues and SpeakingTips carry a single sentinel string each so
// display layers can filter the placeholders.
func ParseFallback(raw, original string) *Analysis {
	a := &Analysis{
		Success:          true,
		OriginalText:     original,
		CorrectedText:    original,
		GrammarIssues:    []string{IssuesSentinel},
		SpeakingTips:     []string{TipsSentinel},
		ConfidenceScore:  fallbackConfidence,
		ImprovementsMade: -1,
		MethodUsed:       MethodLegacy,
		FallbackUsed:     true,
	}

	for _, pat := range correctedPatterns {
		m := pat.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		decoded := unescapeJSONString(m[1])
		if len(strings.TrimSpace(decoded)) < minFallbackLen {
			continue
		}
		a.CorrectedText = strings.TrimSpace(decoded)
		a.FallbackUsed = false
		break
	}

	return a
}

// unescapeJSONString decodes JSON string escapes in s. Falls back to a
// minimal manual unescape when s is not a valid JSON string body.
func unescapeJSONString(s string) string {
	var decoded string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &decoded); err == nil {
		return decoded
	}
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
