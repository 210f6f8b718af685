package reimburse

import (
	"fmt"
	"time"

	"github.com/susu3304/expensebot/internal/expense"
)

// Validation is the compliance result for one expense. Errors make the
// expense invalid; warnings only inform.
type Validation struct {
	ExpenseID        string   `json:"expenseId"`
	IsValid          bool     `json:"isValid"`
	Warnings         []string `json:"warnings"`
	Errors           []string `json:"errors"`
	RequiresApproval bool     `json:"requiresApproval"`
}

func (e *Engine) Validate(exp expense.Expense) Validation {
	v := Validation{ExpenseID: exp.ID, Warnings: []string{}, Errors: []string{}}
	p := e.policy

	if exp.Amount <= 0 {
		v.Errors = append(v.Errors, "Số tiền phải lớn hơn 0")
	}
	if p.ReceiptThreshold > 0 && exp.Amount > p.ReceiptThreshold && !exp.HasReceipt {
		v.Errors = append(v.Errors, fmt.Sprintf("Cần hóa đơn cho chi phí trên %s", FormatVND(p.ReceiptThreshold)))
	}

	if exp.Date.IsZero() {
		v.Errors = append(v.Errors, "Ngày chi phí không hợp lệ")
	} else {
		now := e.now()
		if loc := exp.Date.Location(); loc != nil {
			now = now.In(loc)
		}
		today := now.Format(expense.DateLayout)
		switch day := exp.DateKey(); {
		case day > today:
			v.Errors = append(v.Errors, "Ngày chi phí không được ở tương lai")
		case p.SubmissionDeadlineDays > 0 && daysBetween(exp, now) > p.SubmissionDeadlineDays:
			v.Warnings = append(v.Warnings, fmt.Sprintf("Đã quá hạn nộp %d ngày", p.SubmissionDeadlineDays))
		}
	}

	switch exp.Category {
	case expense.Meals:
		if limit, ok := p.dailyCap(expense.Meals); ok && exp.Amount > limit {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Vượt giới hạn ăn uống %s/ngày", FormatVND(limit)))
		}
	case expense.Office:
		if p.OfficeMonthlyLimit > 0 && exp.Amount > p.OfficeMonthlyLimit {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Vượt hạn mức văn phòng phẩm %s/tháng", FormatVND(p.OfficeMonthlyLimit)))
		}
	case expense.Accommodation:
		if p.AccommodationNightlyLimit > 0 && exp.Amount > p.AccommodationNightlyLimit {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Vượt giới hạn lưu trú %s/đêm", FormatVND(p.AccommodationNightlyLimit)))
		}
	case expense.Other:
		v.Warnings = append(v.Warnings, "Danh mục khác cần được xem xét thủ công")
	}

	v.IsValid = len(v.Errors) == 0
	v.RequiresApproval = !v.IsValid || (p.ApprovalThreshold > 0 && exp.Amount >= p.ApprovalThreshold)
	return v
}

func daysBetween(exp expense.Expense, now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	y, m, d = exp.Date.In(now.Location()).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return int(today.Sub(day).Round(time.Hour).Hours()) / 24
}
