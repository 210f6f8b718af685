package memory

import "unicode/utf8"

type TokenCounter interface {
	Count(text string) int
}

// RuneEstimator approximates tokens as one per four runes, rounded up.
type RuneEstimator struct{}

func (RuneEstimator) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// truncateToBudget cuts text to the longest rune prefix whose count fits budget.
func truncateToBudget(text string, budget int, counter TokenCounter) string {
	if counter.Count(text) <= budget {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
