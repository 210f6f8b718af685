package session

import "github.com/susu3304/expensebot/internal/ledger"

// Stats aggregates over every live session.
type Stats struct {
	GuestSessions   int `json:"guestSessions"`
	AccountSessions int `json:"accountSessions"`
	Accounts        int `json:"accounts"`
	DirtyAccounts   int `json:"dirtyAccounts"`
	TotalExpenses   int `json:"totalExpenses"`
	TotalMessages   int `json:"totalMessages"`
	TotalSummaries  int `json:"totalSummaries"`
	TokensSaved     int `json:"tokensSaved"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	var st Stats
	ledgers := make(map[*ledger.Ledger]bool)
	for _, e := range s.sessions {
		if e.info.Kind == Account {
			st.AccountSessions++
		} else {
			st.GuestSessions++
		}
		ledgers[e.ledger] = true
	}
	states := make([]*accountState, 0, len(s.accounts))
	for _, a := range s.accounts {
		states = append(states, a)
	}
	s.mu.RUnlock()

	st.Accounts = len(states)
	for _, a := range states {
		if s.dirty(a) {
			st.DirtyAccounts++
		}
	}
	for l := range ledgers {
		ls := l.Stats()
		st.TotalExpenses += ls.ExpenseCount
		st.TotalMessages += ls.MessageCount
		st.TotalSummaries += ls.SummariesCreated
		st.TokensSaved += ls.TokensSaved
	}
	return st
}
