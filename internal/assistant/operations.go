package assistant

import (
	"context"

	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/ledger"
	"github.com/susu3304/expensebot/internal/reimburse"
)

// Report renders the session's expenses in the requested format.
func (s *Service) Report(ctx context.Context, sessionID, format string) (*Response, error) {
	f, err := reimburse.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var r reimburse.Report
	err = s.store.Do(ctx, sessionID, func(l *ledger.Ledger) error {
		r = s.engine.Report(sessionID, l.Expenses(), f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Success:                true,
		ResponseText:           r.Text,
		ReimbursementBreakdown: &r.Breakdown,
		Validations:            r.Validations,
		Degraded:               s.store.Degraded(sessionID),
	}, nil
}

type SessionStats struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Degraded  bool   `json:"degraded"`
	ledger.Stats
}

func (s *Service) Stats(sessionID string) (*SessionStats, error) {
	info, err := s.store.Info(sessionID)
	if err != nil {
		return nil, err
	}
	l, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionStats{
		SessionID: sessionID,
		Kind:      info.Kind.String(),
		Degraded:  s.store.Degraded(sessionID),
		Stats:     l.Stats(),
	}, nil
}

func (s *Service) Expenses(sessionID string) ([]expense.Expense, error) {
	l, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return l.Expenses(), nil
}

// SetReceipt records whether a receipt exists for an expense.
func (s *Service) SetReceipt(ctx context.Context, sessionID, expenseID string, has bool) (expense.Expense, error) {
	var updated expense.Expense
	err := s.store.Do(ctx, sessionID, func(l *ledger.Ledger) error {
		var err error
		updated, err = l.SetReceipt(expenseID, has)
		return err
	})
	return updated, err
}

func (s *Service) ResetMemory(ctx context.Context, sessionID string) error {
	return s.store.Do(ctx, sessionID, func(l *ledger.Ledger) error {
		l.ResetMemory()
		return nil
	})
}

func (s *Service) ResetExpenses(ctx context.Context, sessionID string) error {
	return s.store.Do(ctx, sessionID, func(l *ledger.Ledger) error {
		l.ResetExpenses()
		return nil
	})
}
