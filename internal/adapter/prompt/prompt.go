// Package prompt builds the summarization request shared by every language-model provider.
package prompt

import (
	"fmt"
	"unicode/utf8"
)

// System frames the model's job for every request.
const System = "You summarize web pages for a reader who is browsing them. Be concise and factual."

// DefaultMaxChars bounds page text sent to the model when no limit is configured.
const DefaultMaxChars = 24000

// User builds the user turn for text, cutting it to maxChars runes.
// A non-positive maxChars means DefaultMaxChars.
func User(text string, maxChars int) string {
	return "Summarize this text:\n" + Truncate(text, maxChars)
}

// Truncate cuts text to at most maxChars runes and notes how much was dropped.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	total := utf8.RuneCountInString(text)
	if total <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + fmt.Sprintf("\n\n[Content truncated: %d of %d characters shown]", maxChars, total)
}
