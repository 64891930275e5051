package grammar

import "fmt"

// structuredPromptTemplate demands a strict JSON object. Used for the first
// attempts of each check (see Checker.structuredAttempts).
const structuredPromptTemplate = `You are an English grammar coach reviewing %s.

Analyze the following text and correct any grammar, word-choice, or phrasing
mistakes. Keep the speaker's meaning and tone; do not rewrite beyond what is
needed for correct, natural English.

Text:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "corrected_text": "<the corrected text>",
  "grammar_issues": [
    {"issue": "<short issue name>", "explanation": "<why it is wrong and the fix>"}
  ],
  "speaking_tips": ["<one practical tip>"],
  "confidence_score": <0.0-1.0>,
  "improvements_made": <number of changes>
}

If the text is already correct, return it unchanged with empty lists.`

// legacyPromptTemplate is a looser prompt used after the structured attempts
// are spent; the fallback parser handles its free-form output.
const legacyPromptTemplate = `Correct the grammar of the following %s and report the issues you fixed.

Text:
%s

Reply with the corrected text in a JSON field named "corrected_text", plus
"grammar_issues" and "speaking_tips" lists.`

// buildPrompt renders the prompt for one attempt. textContext describes the
// origin of the text (e.g., "transcribed speech") so the model calibrates for
// spoken-language artifacts.
func buildPrompt(text, textContext string, structured bool) string {
	if textContext == "" {
		textContext = "transcribed speech"
	}
	if structured {
		return fmt.Sprintf(structuredPromptTemplate, textContext, text)
	}
	return fmt.Sprintf(legacyPromptTemplate, textContext, text)
}
