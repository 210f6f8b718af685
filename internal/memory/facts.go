package memory

import (
	"strings"

	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/llm"
)

const factSnippetRunes = 100

var (
	policyKeywords = []string{"chính sách", "policy", "quy định", "giới hạn", "limit", "hóa đơn", "receipt"}
	actionKeywords = []string{"kê khai", "declare", "báo cáo", "report", "hoàn trả", "reimburse"}
	reportKeywords = []string{"báo cáo", "report"}
)

// Facts are the domain details pulled out of a window of turns.
type Facts struct {
	DeclaredExpenses    []DeclaredExpense `json:"declaredExpenses"`
	PolicyQuestions     []string          `json:"policyQuestions"`
	CalculationRequests []string          `json:"calculationRequests"`
	ReportRequests      []string          `json:"reportRequests"`
}

type DeclaredExpense struct {
	Seq      int64            `json:"seq"`
	Amount   int64            `json:"amount"`
	Category expense.Category `json:"category"`
	Snippet  string           `json:"snippet"`
}

// ExtractFacts scans user turns. The facts only describe the conversation;
// the expense ledger is never rebuilt from them.
func ExtractFacts(turns []Turn, x *expense.Extractor) Facts {
	var f Facts
	for _, t := range turns {
		if t.Role != llm.RoleUser {
			continue
		}
		snippet := snip(t.Content)
		for _, e := range x.ExtractAt(t.Content, t.Timestamp) {
			f.DeclaredExpenses = append(f.DeclaredExpenses, DeclaredExpense{
				Seq:      t.Seq,
				Amount:   e.Amount,
				Category: e.Category,
				Snippet:  snippet,
			})
		}

		lower := strings.ToLower(t.Content)
		if containsAny(lower, policyKeywords) {
			f.PolicyQuestions = append(f.PolicyQuestions, snippet)
		}
		if containsAny(lower, actionKeywords) {
			if containsAny(lower, reportKeywords) {
				f.ReportRequests = append(f.ReportRequests, snippet)
			} else {
				f.CalculationRequests = append(f.CalculationRequests, snippet)
			}
		}
	}
	return f
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func snip(s string) string {
	r := []rune(s)
	if len(r) <= factSnippetRunes {
		return s
	}
	return string(r[:factSnippetRunes])
}
