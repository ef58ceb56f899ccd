package analyzer

import "strings"

type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictBullish
	VerdictBearish
	VerdictNeutral
)

var keywords = []struct {
	word    string
	verdict Verdict
}{
	{"bullish", VerdictBullish},
	{"bearish", VerdictBearish},
	{"neutral", VerdictNeutral},
}

func (v Verdict) String() string {
	switch v {
	case VerdictBullish:
		return "Bullish"
	case VerdictBearish:
		return "Bearish"
	case VerdictNeutral:
		return "Neutral"
	default:
		return "Unknown"
	}
}

// Emoji returns the marker used in chat messages.
func (v Verdict) Emoji() string {
	switch v {
	case VerdictBullish:
		return "🟢"
	case VerdictBearish:
		return "🔴"
	case VerdictNeutral:
		return "🟡"
	default:
		return "⚪"
	}
}

// Classify finds the verdict keyword in a free-text reply, case-insensitively.
// When several appear the earliest wins.
func Classify(text string) Verdict {
	lower := strings.ToLower(text)

	best, bestAt := VerdictUnknown, -1
	for _, k := range keywords {
		at := strings.Index(lower, k.word)
		if at == -1 {
			continue
		}
		if bestAt == -1 || at < bestAt {
			best, bestAt = k.verdict, at
		}
	}
	return best
}

// Tally provides an overall verdict for a set of per-coin verdicts.
func Tally(verdicts []Verdict) Verdict {
	if len(verdicts) == 0 {
		return VerdictUnknown
	}

	bullishCount := 0
	bearishCount := 0

	for _, v := range verdicts {
		switch v {
		case VerdictBullish:
			bullishCount++
		case VerdictBearish:
			bearishCount++
		}
	}

	if bullishCount > bearishCount {
		return VerdictBullish
	} else if bearishCount > bullishCount {
		return VerdictBearish
	}

	return VerdictNeutral
}
