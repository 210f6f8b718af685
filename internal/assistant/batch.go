package assistant

import (
	"context"
	"fmt"

	"github.com/susu3304/expensebot/internal/ledger"
	"golang.org/x/sync/errgroup"
)

type BatchItem struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Batch processes several messages of one session. Expenses are captured
// in order under the session lock; the model is then asked about every item
// concurrently, each on its own copy of the conversation context, and the
// turns are recorded in order.
func (s *Service) Batch(ctx context.Context, sessionID string, items []BatchItem) ([]*Response, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	texts := make([]string, len(items))
	keys := make(map[string]bool, len(items))
	for i, item := range items {
		text, err := validateMessage(item.Message, item.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if keys[item.IdempotencyKey] {
			return nil, fmt.Errorf("item %d: %w", i, ErrDuplicateKey)
		}
		keys[item.IdempotencyKey] = true
		texts[i] = text
	}

	responses := make([]*Response, len(items))
	err := s.store.Do(ctx, sessionID, func(l *ledger.Ledger) error {
		base := l.Context(s.cfg.SystemPrompt, s.cfg.MaxSummaries)
		turns := make([]*turn, len(items))
		for i, item := range items {
			turns[i] = s.prepare(l, sessionID, texts[i], item.IdempotencyKey, base)
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.BatchConcurrency)
		for _, t := range turns {
			if t.duplicate {
				continue
			}
			t := t
			g.Go(func() error {
				t.reply = s.reply(ctx, t)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, t := range turns {
			resp, err := s.commit(ctx, l, t)
			if err != nil {
				return err
			}
			responses[i] = resp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	degraded := s.store.Degraded(sessionID)
	for _, r := range responses {
		r.Degraded = degraded
	}
	return responses, nil
}
