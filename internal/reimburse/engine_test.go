package reimburse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/expensebot/internal/expense"
)

var day = time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)

func meal(id string, amount int64, date time.Time) expense.Expense {
	return expense.Expense{ID: id, Amount: amount, Category: expense.Meals, Date: date, Description: "ăn " + id}
}

func TestCalculateDailyMealCap(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	b := e.Calculate([]expense.Expense{
		meal("a", 400_000, day),
		meal("b", 400_000, day),
		meal("c", 400_000, day),
	})

	require.Len(t, b.Items, 3)
	third := b.Items[2]
	assert.Equal(t, int64(200_000), third.Reimbursed)
	assert.Equal(t, int64(200_000), third.Excess)
	assert.Equal(t, int64(1_200_000), third.CumulativeSubmitted)
	assert.Equal(t, int64(1_000_000), third.CumulativeReimbursed)
	assert.Equal(t, int64(1_200_000), b.TotalSubmitted)
	assert.Equal(t, int64(1_000_000), b.TotalReimbursed)
	assert.Equal(t, int64(200_000), b.Savings)
}

func TestCalculateCapIsPerDay(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	b := e.Calculate([]expense.Expense{
		meal("a", 900_000, day),
		meal("b", 900_000, day.AddDate(0, 0, 1)),
	})

	assert.Equal(t, int64(1_800_000), b.TotalReimbursed)
	assert.Zero(t, b.Savings)
}

func TestCalculateUncappedCategory(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	b := e.Calculate([]expense.Expense{
		{ID: "h", Amount: 3_000_000, Category: expense.Accommodation, Date: day},
		{ID: "t", Amount: 50_000, Category: expense.Transportation, Date: day},
	})

	assert.Equal(t, b.TotalSubmitted, b.TotalReimbursed)
	require.Len(t, b.Categories, 2)
	assert.Equal(t, expense.Transportation, b.Categories[0].Category)
	assert.Equal(t, expense.Accommodation, b.Categories[1].Category)
}

func TestCalculateReimbursedNeverExceedsCap(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	amounts := []int64{300_000, 150_000, 700_000, 10_000, 2_000_000, 1}
	var exps []expense.Expense
	for i, a := range amounts {
		exps = append(exps, meal(string(rune('a'+i)), a, day))
	}

	b := e.Calculate(exps)
	var sum int64
	for _, item := range b.Items {
		sum += item.Reimbursed
		assert.LessOrEqual(t, item.CumulativeReimbursed, int64(1_000_000))
		assert.Equal(t, item.Submitted, item.Reimbursed+item.Excess)
	}
	assert.Equal(t, int64(1_000_000), sum)
}

func TestCalculateIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	exps := []expense.Expense{meal("a", 600_000, day), meal("b", 600_000, day)}

	assert.Equal(t, e.Calculate(exps), e.Calculate(exps))
}

func TestCalculateEmpty(t *testing.T) {
	b := NewEngine(DefaultPolicy()).Calculate(nil)

	assert.Empty(t, b.Items)
	assert.Zero(t, b.TotalSubmitted)
}
