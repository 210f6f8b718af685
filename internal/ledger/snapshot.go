package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/memory"
)

const snapshotVersion = 1

// Snapshot is the durable form of a ledger.
type Snapshot struct {
	Version   int                 `json:"version"`
	ID        string              `json:"id"`
	Account   string              `json:"account,omitempty"`
	Expenses  []expense.Expense   `json:"expenses"`
	Digests   []memory.Digest     `json:"digests"`
	Turns     []memory.Turn       `json:"turns"`
	Counters  Counters            `json:"counters"`
	Seen      map[string][]string `json:"seen,omitempty"`
	SeenOrder []string            `json:"seenOrder,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	Revision  uint64              `json:"-"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string][]string, len(l.seen))
	for k, v := range l.seen {
		seen[k] = append([]string(nil), v...)
	}
	return Snapshot{
		Version:   snapshotVersion,
		ID:        l.id,
		Account:   l.account,
		Expenses:  append([]expense.Expense(nil), l.expenses...),
		Digests:   append([]memory.Digest(nil), l.digests...),
		Turns:     l.buffer.Turns(),
		Counters:  l.counters,
		Seen:      seen,
		SeenOrder: append([]string(nil), l.seenOrder...),
		CreatedAt: l.createdAt,
		UpdatedAt: l.updatedAt,
		Revision:  l.revision,
	}
}

// Merge folds s into the ledger. Expenses and digests already present (by
// ID) are skipped, so merging the same snapshot twice is harmless. Turns are
// restored only into an empty buffer.
func (l *Ledger) Merge(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	have := make(map[string]bool, len(l.expenses))
	for _, e := range l.expenses {
		have[e.ID] = true
	}
	for _, e := range s.Expenses {
		if !have[e.ID] {
			l.expenses = append(l.expenses, e)
			have[e.ID] = true
		}
	}
	sort.SliceStable(l.expenses, func(i, j int) bool {
		return l.expenses[i].CreatedAt.Before(l.expenses[j].CreatedAt)
	})

	haveDigest := make(map[string]bool, len(l.digests))
	for _, d := range l.digests {
		haveDigest[d.ID] = true
	}
	for _, d := range s.Digests {
		if !haveDigest[d.ID] {
			l.digests = append(l.digests, d)
			haveDigest[d.ID] = true
		}
	}
	sort.SliceStable(l.digests, func(i, j int) bool {
		return l.digests[i].CreatedAt.Before(l.digests[j].CreatedAt)
	})
	if over := len(l.digests) - l.opts.MaxDigests; over > 0 {
		l.digests = append([]memory.Digest(nil), l.digests[over:]...)
	}

	if l.buffer.Len() == 0 && len(s.Turns) > 0 {
		l.buffer.Restore(s.Turns)
	}

	for _, key := range s.SeenOrder {
		if _, ok := l.seen[key]; !ok {
			l.remember(key, s.Seen[key])
		}
	}

	l.counters.MessageCount += s.Counters.MessageCount
	l.counters.SummariesCreated += s.Counters.SummariesCreated
	l.counters.TokensSaved += s.Counters.TokensSaved
	if !s.CreatedAt.IsZero() && s.CreatedAt.Before(l.createdAt) {
		l.createdAt = s.CreatedAt
	}
	l.touch()
}

// Stats is a point-in-time view of the ledger.
type Stats struct {
	LedgerID        string    `json:"ledgerId"`
	Account         string    `json:"account,omitempty"`
	State           string    `json:"state"`
	ActiveTurns     int       `json:"activeTurns"`
	Summaries       int       `json:"summaries"`
	ExpenseCount    int       `json:"expenseCount"`
	TotalAmount     int64     `json:"totalAmount"`
	EfficiencyRatio string    `json:"efficiencyRatio"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivity    time.Time `json:"lastActivity"`
	Counters
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stats{
		LedgerID:     l.id,
		Account:      l.account,
		State:        l.buffer.State().String(),
		ActiveTurns:  l.buffer.Len(),
		Summaries:    len(l.digests),
		ExpenseCount: len(l.expenses),
		CreatedAt:    l.createdAt,
		LastActivity: l.updatedAt,
		Counters:     l.counters,
	}
	for _, e := range l.expenses {
		st.TotalAmount += e.Amount
	}
	st.EfficiencyRatio = efficiency(l.counters.TokensSaved, l.counters.MessageCount)
	return st
}

// efficiency reports the average tokens saved per message, e.g. "12.50".
func efficiency(saved, messages int) string {
	if messages == 0 {
		return "0.00"
	}
	return decimal.NewFromInt(int64(saved)).Div(decimal.NewFromInt(int64(messages))).StringFixed(2)
}
