package expense

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dmyDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// relativeDays is checked in order; longer phrases come first so that
// "hôm kia" is not read as a bare "hôm".
var relativeDays = []struct {
	phrase string
	offset int
}{
	{"hôm kia", -2},
	{"hôm qua", -1},
	{"yesterday", -1},
	{"hôm nay", 0},
	{"today", 0},
	{"tuần trước", -7},
	{"last week", -7},
}

// findDate looks for an explicit or relative date in lowered text.
func findDate(text string, ref time.Time) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3], ref.Location()); ok {
			return d, true
		}
	}
	if m := dmyDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], ref.Location()); ok {
			return d, true
		}
	}
	for _, r := range relativeDays {
		if strings.Contains(text, r.phrase) {
			return startOfDay(ref).AddDate(0, 0, r.offset), true
		}
	}
	return time.Time{}, false
}

func buildDate(year, month, day string, loc *time.Location) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 2000 || y > 2100 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject those.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// maskDates blanks out explicit dates so their digits are never read as amounts.
func maskDates(text string) string {
	blank := func(s string) string { return strings.Repeat(" ", len(s)) }
	text = isoDatePattern.ReplaceAllStringFunc(text, blank)
	return dmyDatePattern.ReplaceAllStringFunc(text, blank)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
