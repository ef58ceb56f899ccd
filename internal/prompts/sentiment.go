package prompts

import (
	"fmt"
	"strings"
)

// SentimentPrompt asks for a one-word verdict on a coin's recent headlines
// followed by a one-sentence reason.
func SentimentPrompt(coin string, headlines []string) string {
	var b strings.Builder
	for _, h := range headlines {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}

	return fmt.Sprintf(`Analyze the overall market sentiment of these recent news headlines for %s.
Reply with exactly one word (BULLISH, BEARISH, or NEUTRAL), followed by a short 1-sentence summary of why.

Headlines:
%s`, coin, b.String())
}

// SystemPrompt returns the system prompt for the AI analyst
func SystemPrompt() string {
	return "You are a crypto market analyst. Judge sentiment only from the headlines given. Be brief: one verdict word, one sentence."
}
