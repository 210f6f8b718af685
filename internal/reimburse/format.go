package reimburse

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatVND renders an amount with thousands separators, e.g. "1,000,000 VND".
func FormatVND(amount int64) string {
	return printer.Sprintf("%d VND", amount)
}
