package reimburse

import (
	"fmt"
	"time"

	"github.com/susu3304/expensebot/internal/expense"
)

type Engine struct {
	policy Policy
	now    func() time.Time
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy, now: time.Now}
}

// WithClock returns a copy of the engine that reads the current time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// LineItem is the reimbursement outcome of one expense.
type LineItem struct {
	ExpenseID            string           `json:"expenseId"`
	Category             expense.Category `json:"category"`
	Date                 string           `json:"date"`
	Description          string           `json:"description"`
	Submitted            int64            `json:"submitted"`
	Reimbursed           int64            `json:"reimbursed"`
	Excess               int64            `json:"excess"`
	CumulativeSubmitted  int64            `json:"cumulativeSubmitted"`
	CumulativeReimbursed int64            `json:"cumulativeReimbursed"`
	Note                 string           `json:"note"`
}

type CategoryTotal struct {
	Category   expense.Category `json:"category"`
	Count      int              `json:"count"`
	Submitted  int64            `json:"submitted"`
	Reimbursed int64            `json:"reimbursed"`
}

type Breakdown struct {
	Items           []LineItem      `json:"items"`
	Categories      []CategoryTotal `json:"categories"`
	TotalSubmitted  int64           `json:"totalSubmitted"`
	TotalReimbursed int64           `json:"totalReimbursed"`
	Savings         int64           `json:"savings"`
}

type dayTotal struct {
	submitted, reimbursed int64
}

// Calculate applies the policy to expenses in order. Entries sharing a date
// and a capped category each report their marginal reimbursable portion, so
// the running reimbursed total for a day never exceeds the cap.
func (e *Engine) Calculate(expenses []expense.Expense) Breakdown {
	b := Breakdown{Items: make([]LineItem, 0, len(expenses))}
	days := make(map[string]*dayTotal)
	perCategory := make(map[expense.Category]*CategoryTotal)

	for _, exp := range expenses {
		key := exp.DateKey() + "|" + string(exp.Category)
		day, ok := days[key]
		if !ok {
			day = &dayTotal{}
			days[key] = day
		}

		item := LineItem{
			ExpenseID:   exp.ID,
			Category:    exp.Category,
			Date:        exp.DateKey(),
			Description: exp.Description,
			Submitted:   exp.Amount,
		}

		prior := day.submitted
		day.submitted += exp.Amount
		if limit, capped := e.policy.dailyCap(exp.Category); capped {
			item.Reimbursed = min(day.submitted, limit) - min(prior, limit)
			item.Excess = exp.Amount - item.Reimbursed
			if item.Excess > 0 {
				item.Note = fmt.Sprintf("Vượt giới hạn %s/ngày, tự chi trả %s", FormatVND(limit), FormatVND(item.Excess))
			} else {
				item.Note = "Hoàn trả đầy đủ"
			}
		} else {
			item.Reimbursed = exp.Amount
			item.Note = "Hoàn trả đầy đủ"
		}
		day.reimbursed += item.Reimbursed
		item.CumulativeSubmitted = day.submitted
		item.CumulativeReimbursed = day.reimbursed

		ct, ok := perCategory[exp.Category]
		if !ok {
			ct = &CategoryTotal{Category: exp.Category}
			perCategory[exp.Category] = ct
		}
		ct.Count++
		ct.Submitted += item.Submitted
		ct.Reimbursed += item.Reimbursed

		b.TotalSubmitted += item.Submitted
		b.TotalReimbursed += item.Reimbursed
		b.Items = append(b.Items, item)
	}

	for _, c := range expense.Categories {
		if ct, ok := perCategory[c]; ok {
			b.Categories = append(b.Categories, *ct)
		}
	}
	b.Savings = b.TotalSubmitted - b.TotalReimbursed
	return b
}
