package orchestrator

import (
	"fmt"
	"strings"

	"coinsentinel/internal/analyzer"
)

// Line is the per-coin result of one aggregation pass.
type Line struct {
	Coin        string
	Sentiment   string
	Verdict     analyzer.Verdict
	SentimentOK bool
	Price       float64
	Change24h   float64
	HasPrice    bool
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// Render builds the message body for coins, in the given order. Every coin
// gets a block, degraded when its data is missing.
func Render(coins []string, lines map[string]Line) string {
	var verdicts []analyzer.Verdict
	blocks := make([]string, 0, len(coins))
	for _, coin := range coins {
		line, ok := lines[coin]
		if !ok {
			line = Line{Coin: coin}
		}
		if line.SentimentOK {
			verdicts = append(verdicts, line.Verdict)
		}
		blocks = append(blocks, renderLine(line))
	}

	overall := analyzer.Tally(verdicts)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Watchlist update* | %s %s\n\n", overall.Emoji(), overall)
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n_Sentiment from recent headlines. Not financial advice._")
	return b.String()
}

func renderLine(l Line) string {
	var b strings.Builder

	name := EscapeMarkdown(strings.ToUpper(l.Coin))
	if l.SentimentOK {
		fmt.Fprintf(&b, "%s *%s* | %s\n", l.Verdict.Emoji(), name, l.Verdict)
	} else {
		fmt.Fprintf(&b, "⚪ *%s* | ⚠️ sentiment unavailable\n", name)
	}

	if l.HasPrice {
		fmt.Fprintf(&b, "💰 %s | %s %+.2f%% (24h)", formatPrice(l.Price), changeEmoji(l.Change24h), l.Change24h)
	} else {
		b.WriteString("💰 price: no data")
	}

	if l.SentimentOK && l.Sentiment != "" {
		fmt.Fprintf(&b, "\n📰 %s", EscapeMarkdown(l.Sentiment))
	}

	return b.String()
}

func formatPrice(p float64) string {
	if p >= 1 {
		return fmt.Sprintf("$%.2f", p)
	}
	return fmt.Sprintf("$%.6f", p)
}

func changeEmoji(change float64) string {
	switch {
	case change > 0:
		return "📈"
	case change < 0:
		return "📉"
	default:
		return "➡️"
	}
}

// EscapeMarkdown escapes Telegram legacy Markdown control characters.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
