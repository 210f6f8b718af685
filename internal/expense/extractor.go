package expense

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const maxDescriptionRunes = 100

// maxAmount bounds a single expense so that sums over a ledger stay far
// from int64 overflow. Larger amounts are not read as amounts at all.
const maxAmount = 1_000_000_000_000_000

// amountPattern is one unit rule. Group 1 is the number, the optional group 2
// the unit. Compound rules carry the digits after the unit in group 3, as in
// "2tr5" for 2.5 million.
type amountPattern struct {
	re         *regexp.Regexp
	multiplier int64
	decimals   bool
	compound   bool
}

// Order matters: the first rule that matches a segment wins.
var amountPatterns = []amountPattern{
	{re: regexp.MustCompile(`(\d+)(tr)(\d{1,3})(?:[^\p{L}\p{M}\d]|$)`), multiplier: 1_000_000, compound: true},
	{re: regexp.MustCompile(`(\d+)(k)(\d{1,3})(?:[^\p{L}\p{M}\d]|$)`), multiplier: 1_000, compound: true},
	{re: regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(triệu|tr)(?:[^\p{L}\p{M}]|$)`), multiplier: 1_000_000, decimals: true},
	{re: regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(nghìn|ngàn|k)(?:[^\p{L}\p{M}]|$)`), multiplier: 1_000, decimals: true},
	{re: regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(vnđ|vnd|đồng|đ)(?:[^\p{L}\p{M}]|$)`), multiplier: 1},
	{re: regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d{3,})(?:[^\p{L}\p{M}\d]|$)`), multiplier: 1},
}

var (
	receiptNegations = []string{"không có hóa đơn", "không hóa đơn", "chưa có hóa đơn", "mất hóa đơn", "không có bill", "no receipt", "without receipt"}
	receiptMarks     = []string{"có hóa đơn", "kèm hóa đơn", "có bill", "có receipt", "with receipt"}
)

// Extractor turns free text into expenses. It never fails: text without a
// recognizable amount yields nil.
type Extractor struct {
	loc *time.Location
}

// NewExtractor returns an extractor resolving relative dates in loc. A nil
// loc uses the location of the receive time.
func NewExtractor(loc *time.Location) *Extractor {
	return &Extractor{loc: loc}
}

func (x *Extractor) Extract(text string) []Expense {
	return x.ExtractAt(text, time.Now())
}

// ExtractAt extracts expenses from text received at receivedAt. The returned
// expenses carry no ID, SessionID or CreatedAt; the ledger stamps those.
func (x *Extractor) ExtractAt(text string, receivedAt time.Time) []Expense {
	if x != nil && x.loc != nil {
		receivedAt = receivedAt.In(x.loc)
	}
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lowerMessage := strings.ToLower(text)
	messageDate, hasMessageDate := findDate(lowerMessage, receivedAt)

	var out []Expense
	for _, segment := range splitSegments(text) {
		lower := strings.ToLower(segment)
		amount, first, last, ok := findAmount(lower)
		if !ok {
			continue
		}

		date := startOfDay(receivedAt)
		if d, ok := findDate(lower, receivedAt); ok {
			date = d
		} else if hasMessageDate {
			date = messageDate
		}

		hasReceipt, ok := receiptFlag(lower)
		if !ok {
			hasReceipt, _ = receiptFlag(lowerMessage)
		}

		out = append(out, Expense{
			Amount:      amount,
			Category:    inferCategory(tokenize(maskDates(lower)), first, last),
			Description: truncateRunes(segment, maxDescriptionRunes),
			Date:        date,
			HasReceipt:  hasReceipt,
		})
	}
	return out
}

// findAmount returns the amount and the token span it occupies.
func findAmount(lower string) (amount int64, firstToken, lastToken int, ok bool) {
	masked := maskDates(lower)
	for _, p := range amountPatterns {
		loc := p.re.FindStringSubmatchIndex(masked)
		if loc == nil {
			continue
		}
		var amount int64
		var ok bool
		if p.compound {
			amount, ok = convertCompound(masked[loc[2]:loc[3]], masked[loc[6]:loc[7]], p.multiplier)
		} else {
			amount, ok = convertAmount(masked[loc[2]:loc[3]], p.multiplier, p.decimals)
		}
		if !ok {
			return 0, 0, 0, false
		}

		end := loc[3]
		for i := 5; i < len(loc); i += 2 {
			if loc[i] > end {
				end = loc[i]
			}
		}
		tokens := tokenize(masked)
		return amount, tokenAt(tokens, loc[2]), tokenAt(tokens, end-1), true
	}
	return 0, 0, 0, false
}

// convertAmount reads num as a thousands-separated integer, or as a decimal
// ("1.5", "2,25") when decimals is set and the single fractional part has at
// most two digits. Results outside (0, maxAmount] are rejected.
func convertAmount(num string, multiplier int64, decimals bool) (int64, bool) {
	seps := strings.Count(num, ".") + strings.Count(num, ",")
	if decimals && seps == 1 {
		idx := strings.LastIndexAny(num, ".,")
		if frac := len(num) - idx - 1; frac >= 1 && frac <= 2 {
			d, err := decimal.NewFromString(num[:idx] + "." + num[idx+1:])
			if err != nil {
				return 0, false
			}
			return checkedAmount(d.Mul(decimal.NewFromInt(multiplier)).Round(0))
		}
	}

	digits := strings.NewReplacer(".", "", ",", "").Replace(num)
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, false
	}
	return checkedAmount(d.Mul(decimal.NewFromInt(multiplier)).Truncate(0))
}

// convertCompound reads the colloquial "<whole><unit><fraction>" form:
// "2tr5" is 2.5 million and "1k25" is 1,250.
func convertCompound(whole, frac string, multiplier int64) (int64, bool) {
	d, err := decimal.NewFromString(whole + "." + frac)
	if err != nil {
		return 0, false
	}
	return checkedAmount(d.Mul(decimal.NewFromInt(multiplier)).Round(0))
}

func checkedAmount(d decimal.Decimal) (int64, bool) {
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(maxAmount)) {
		return 0, false
	}
	return d.IntPart(), true
}

// splitSegments splits on newlines, then on ';' and ','. A comma between two
// digits is a thousands separator and stays.
func splitSegments(text string) []string {
	var segments []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r", ""), "\n") {
		runes := []rune(line)
		start := 0
		for i, r := range runes {
			if r != ';' && r != ',' {
				continue
			}
			if r == ',' && i > 0 && i+1 < len(runes) && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
				continue
			}
			segments = appendSegment(segments, string(runes[start:i]))
			start = i + 1
		}
		segments = appendSegment(segments, string(runes[start:]))
	}
	return segments
}

func appendSegment(segments []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		return append(segments, s)
	}
	return segments
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// receiptFlag reports whether lowered text says a receipt exists. ok is
// false when the text says nothing about receipts.
func receiptFlag(lower string) (has bool, ok bool) {
	lower = strings.ReplaceAll(lower, "hoá", "hóa")
	for _, p := range receiptNegations {
		if strings.Contains(lower, p) {
			return false, true
		}
	}
	for _, p := range receiptMarks {
		if strings.Contains(lower, p) {
			return true, true
		}
	}
	return false, false
}
