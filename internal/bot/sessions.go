package bot

import (
	"context"
	"sync"

	"github.com/susu3304/expensebot/internal/session"
)

// Sessions maps Discord users to account sessions. Each user is logged in
// as "discord:<userID>", so their ledger survives restarts.
type Sessions struct {
	store *session.Store

	mu   sync.Mutex
	byID map[string]string
}

func NewSessions(store *session.Store) *Sessions {
	return &Sessions{store: store, byID: make(map[string]string)}
}

func accountFor(userID string) string {
	return "discord:" + userID
}

// Resolve returns the live session for userID, logging in again when the
// previous one expired.
func (s *Sessions) Resolve(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byID[userID]; ok {
		if _, err := s.store.Info(id); err == nil {
			return id, nil
		}
		delete(s.byID, userID)
	}

	id, _, err := s.store.Login(ctx, accountFor(userID), "")
	if err != nil {
		return "", err
	}
	s.byID[userID] = id
	return id, nil
}

func (s *Sessions) Forget(userID string) {
	s.mu.Lock()
	delete(s.byID, userID)
	s.mu.Unlock()
}
