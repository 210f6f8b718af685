package reimburse

import "github.com/susu3304/expensebot/internal/expense"

// Policy holds the company reimbursement rules. All amounts are VND.
type Policy struct {
	// DailyCaps limits the reimbursable total per calendar day and category.
	DailyCaps map[expense.Category]int64

	ReceiptThreshold          int64
	ApprovalThreshold         int64
	OfficeMonthlyLimit        int64
	AccommodationNightlyLimit int64
	SubmissionDeadlineDays    int
}

func DefaultPolicy() Policy {
	return Policy{
		DailyCaps: map[expense.Category]int64{
			expense.Meals: 1_000_000,
		},
		ReceiptThreshold:          500_000,
		ApprovalThreshold:         5_000_000,
		OfficeMonthlyLimit:        2_000_000,
		AccommodationNightlyLimit: 4_000_000,
		SubmissionDeadlineDays:    30,
	}
}

func (p Policy) dailyCap(c expense.Category) (int64, bool) {
	limit, ok := p.DailyCaps[c]
	return limit, ok && limit > 0
}
