package expense

import (
	"unicode"
	"unicode/utf8"
)

type token struct {
	text       string
	start, end int
}

// tokenize splits on every rune that is neither a letter nor a digit,
// keeping byte offsets into s.
func tokenize(s string) []token {
	var tokens []token
	start := -1
	for i, r := range s {
		word := unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = append(tokens, token{text: s[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: s[start:], start: start, end: len(s)})
	}
	return tokens
}

// tokenAt returns the index of the token covering byte offset off, or the
// first token after it.
func tokenAt(tokens []token, off int) int {
	for i, t := range tokens {
		if off < t.end {
			return i
		}
	}
	return len(tokens) - 1
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
