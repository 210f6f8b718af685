package reimburse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/susu3304/expensebot/internal/expense"
)

type Format string

const (
	FormatDetailed Format = "detailed"
	FormatSummary  Format = "summary"
)

var ErrInvalidFormat = errors.New("report format must be detailed or summary")

// EmptyReportText is returned when there is nothing to report.
const EmptyReportText = "Không có chi phí nào được kê khai trong phiên này."

// detailedItemsPerCategory bounds the per-category listing in detailed reports.
const detailedItemsPerCategory = 3

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatDetailed:
		return FormatDetailed, nil
	case FormatSummary:
		return FormatSummary, nil
	}
	return "", ErrInvalidFormat
}

type Report struct {
	SessionID   string       `json:"sessionId"`
	Format      Format       `json:"format"`
	Breakdown   Breakdown    `json:"breakdown"`
	Validations []Validation `json:"validations"`
	Text        string       `json:"text"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// Report computes the breakdown and validations for expenses and renders them.
func (e *Engine) Report(sessionID string, expenses []expense.Expense, format Format) Report {
	r := Report{
		SessionID:   sessionID,
		Format:      format,
		Breakdown:   e.Calculate(expenses),
		Validations: make([]Validation, 0, len(expenses)),
		GeneratedAt: e.now(),
	}
	for _, exp := range expenses {
		r.Validations = append(r.Validations, e.Validate(exp))
	}

	switch {
	case len(expenses) == 0:
		r.Text = EmptyReportText
	case format == FormatSummary:
		r.Text = renderSummary(sessionID, r.Breakdown)
	default:
		r.Text = renderDetailed(sessionID, expenses, r.Breakdown, r.Validations)
	}
	return r
}

func renderSummary(sessionID string, b Breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TÓM TẮT CHI PHÍ - %s\n", sessionID)
	sb.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&sb, "Tổng chi phí: %s\n", FormatVND(b.TotalSubmitted))
	fmt.Fprintf(&sb, "Hoàn trả: %s\n", FormatVND(b.TotalReimbursed))
	if b.Savings > 0 {
		fmt.Fprintf(&sb, "Tự túc: %s\n", FormatVND(b.Savings))
	}
	fmt.Fprintf(&sb, "Số khoản: %d\n\n", len(b.Items))
	for _, c := range b.Categories {
		fmt.Fprintf(&sb, "• %s: %d khoản - %s\n", c.Category.Label(), c.Count, FormatVND(c.Submitted))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderDetailed(sessionID string, expenses []expense.Expense, b Breakdown, validations []Validation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BÁO CÁO CHI PHÍ - %s\n", sessionID)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	for _, c := range b.Categories {
		fmt.Fprintf(&sb, "\n[%s]\n", c.Category.Label())
		fmt.Fprintf(&sb, "   Số khoản: %d\n", c.Count)
		fmt.Fprintf(&sb, "   Chi phí: %s\n", FormatVND(c.Submitted))
		fmt.Fprintf(&sb, "   Hoàn trả: %s\n", FormatVND(c.Reimbursed))

		shown := 0
		for _, item := range b.Items {
			if item.Category != c.Category {
				continue
			}
			if shown == detailedItemsPerCategory {
				fmt.Fprintf(&sb, "   • ... và %d khoản khác\n", c.Count-shown)
				break
			}
			fmt.Fprintf(&sb, "   • %s %s - %s (%s)\n", item.Date, shortDescription(item.Description), FormatVND(item.Submitted), item.Note)
			shown++
		}
	}

	var issues []string
	for i, v := range validations {
		for _, msg := range v.Errors {
			issues = append(issues, fmt.Sprintf("   ✗ %s: %s", shortDescription(expenses[i].Description), msg))
		}
		for _, msg := range v.Warnings {
			issues = append(issues, fmt.Sprintf("   ! %s: %s", shortDescription(expenses[i].Description), msg))
		}
	}
	if len(issues) > 0 {
		sb.WriteString("\nKiểm tra chính sách:\n")
		sb.WriteString(strings.Join(issues, "\n") + "\n")
	}

	sb.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "TỔNG CHI PHÍ: %s\n", FormatVND(b.TotalSubmitted))
	fmt.Fprintf(&sb, "SỐ TIỀN HOÀN TRẢ: %s\n", FormatVND(b.TotalReimbursed))
	fmt.Fprintf(&sb, "TỰ TÚC: %s\n", FormatVND(b.Savings))
	fmt.Fprintf(&sb, "Tổng số khoản: %d", len(b.Items))
	return sb.String()
}

func shortDescription(s string) string {
	r := []rune(s)
	if len(r) <= 30 {
		return s
	}
	return string(r[:30]) + "..."
}
