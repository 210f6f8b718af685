package expense

import (
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for grouping and reports.
const DateLayout = "2006-01-02"

type Category string

const (
	Meals          Category = "meals"
	Transportation Category = "transportation"
	Accommodation  Category = "accommodation"
	Office         Category = "office"
	Entertainment  Category = "entertainment"
	Shopping       Category = "shopping"
	Other          Category = "other"
)

// Categories lists every category in report order.
var Categories = []Category{Meals, Transportation, Accommodation, Office, Entertainment, Shopping, Other}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Label returns the Vietnamese display name of the category.
func (c Category) Label() string {
	switch c {
	case Meals:
		return "Ăn uống"
	case Transportation:
		return "Di chuyển"
	case Accommodation:
		return "Lưu trú"
	case Office:
		return "Văn phòng phẩm"
	case Entertainment:
		return "Tiếp khách"
	case Shopping:
		return "Mua sắm"
	default:
		return "Khác"
	}
}

// Expense is a single declared cost. Amount is in whole VND.
type Expense struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	HasReceipt  bool      `json:"hasReceipt"`
	SessionID   string    `json:"sessionId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e Expense) DateKey() string {
	return e.Date.Format(DateLayout)
}
