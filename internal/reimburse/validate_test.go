package reimburse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/susu3304/expensebot/internal/expense"
)

func fixedEngine() *Engine {
	now := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	return NewEngine(DefaultPolicy()).WithClock(func() time.Time { return now })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		exp          expense.Expense
		valid        bool
		approval     bool
		wantErrors   int
		wantWarnings int
	}{
		{
			name:  "small meal",
			exp:   expense.Expense{Amount: 150_000, Category: expense.Meals, Date: day},
			valid: true,
		},
		{
			name:       "missing receipt",
			exp:        expense.Expense{Amount: 800_000, Category: expense.Transportation, Date: day},
			approval:   true,
			wantErrors: 1,
		},
		{
			name:  "receipt attached",
			exp:   expense.Expense{Amount: 800_000, Category: expense.Transportation, Date: day, HasReceipt: true},
			valid: true,
		},
		{
			name:       "future date",
			exp:        expense.Expense{Amount: 100_000, Category: expense.Transportation, Date: day.AddDate(0, 0, 1)},
			approval:   true,
			wantErrors: 1,
		},
		{
			name:       "zero date",
			exp:        expense.Expense{Amount: 100_000, Category: expense.Transportation},
			approval:   true,
			wantErrors: 1,
		},
		{
			name:         "past deadline",
			exp:          expense.Expense{Amount: 100_000, Category: expense.Transportation, Date: day.AddDate(0, 0, -45)},
			valid:        true,
			wantWarnings: 1,
		},
		{
			name:         "large hotel",
			exp:          expense.Expense{Amount: 6_000_000, Category: expense.Accommodation, Date: day, HasReceipt: true},
			valid:        true,
			approval:     true,
			wantWarnings: 1,
		},
		{
			name:         "other needs review",
			exp:          expense.Expense{Amount: 100_000, Category: expense.Other, Date: day},
			valid:        true,
			wantWarnings: 1,
		},
	}

	e := fixedEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Validate(tt.exp)
			assert.Equal(t, tt.valid, v.IsValid)
			assert.Equal(t, tt.approval, v.RequiresApproval)
			assert.Len(t, v.Errors, tt.wantErrors)
			assert.Len(t, v.Warnings, tt.wantWarnings)
		})
	}
}

func TestReportFormats(t *testing.T) {
	e := fixedEngine()
	exps := []expense.Expense{
		meal("a", 400_000, day),
		meal("b", 400_000, day),
		meal("c", 400_000, day),
		{ID: "t", Amount: 50_000, Category: expense.Transportation, Date: day, Description: "taxi"},
	}

	detailed := e.Report("guest_1", exps, FormatDetailed)
	assert.Contains(t, detailed.Text, "BÁO CÁO CHI PHÍ - guest_1")
	assert.Contains(t, detailed.Text, "TỔNG CHI PHÍ: 1,250,000 VND")
	assert.Contains(t, detailed.Text, "SỐ TIỀN HOÀN TRẢ: 1,050,000 VND")
	assert.Len(t, detailed.Validations, 4)

	summary := e.Report("guest_1", exps, FormatSummary)
	assert.Contains(t, summary.Text, "• Ăn uống: 3 khoản - 1,200,000 VND")
	assert.Contains(t, summary.Text, "Tự túc: 200,000 VND")
}

func TestReportEmpty(t *testing.T) {
	r := fixedEngine().Report("guest_1", nil, FormatSummary)
	assert.Equal(t, EmptyReportText, r.Text)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	assert.NoError(t, err)
	assert.Equal(t, FormatDetailed, f)

	f, err = ParseFormat("SUMMARY")
	assert.NoError(t, err)
	assert.Equal(t, FormatSummary, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "1,000,000 VND", FormatVND(1_000_000))
	assert.Equal(t, "500 VND", FormatVND(500))
}
