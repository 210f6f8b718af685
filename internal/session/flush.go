package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/susu3304/expensebot/internal/ledger"
)

// flush writes the account ledger and its new digests when they changed
// since the last successful write. Failures are counted; after
// MaxFlushAttempts the account is marked degraded until a write succeeds.
func (s *Store) flush(ctx context.Context, account string, st *accountState) error {
	if s.docs == nil {
		return nil
	}
	st.flushMu.Lock()
	defer st.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
	defer cancel()

	if st.needsLoad {
		if err := s.load(ctx, account, st.ledger); err != nil {
			return s.flushFailed(account, st, fmt.Errorf("reload before write: %w", err))
		}
		st.needsLoad = false
	}

	snap := st.ledger.Snapshot()
	if snap.Revision == st.flushedRev && !st.degraded {
		return nil
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return s.flushFailed(account, st, err)
	}
	if err := s.docs.Put(ctx, ledgerKey(account), body, map[string]string{"account": account, "kind": "ledger"}); err != nil {
		return s.flushFailed(account, st, err)
	}

	var written []string
	for _, d := range st.ledger.PendingDigests() {
		b, err := json.Marshal(d)
		if err == nil {
			err = s.docs.Put(ctx, digestKey(account, d.ID), b, map[string]string{"account": account, "kind": "digest"})
		}
		if err != nil {
			st.ledger.AckDigests(written)
			return s.flushFailed(account, st, err)
		}
		written = append(written, d.ID)
	}
	st.ledger.AckDigests(written)

	if st.degraded {
		s.logger.Info("ledger persisted again", "account", account)
	}
	st.flushedRev = snap.Revision
	st.attempts = 0
	st.degraded = false
	return nil
}

func (s *Store) flushFailed(account string, st *accountState, err error) error {
	st.attempts++
	if st.attempts >= s.opts.MaxFlushAttempts {
		if !st.degraded {
			s.logger.Error("ledger flush keeps failing, marking degraded", "account", account, "attempts", st.attempts, "error", err)
		}
		st.degraded = true
	} else {
		s.logger.Warn("ledger flush failed, will retry", "account", account, "attempts", st.attempts, "error", err)
	}
	return err
}

func (s *Store) dirty(st *accountState) bool {
	st.flushMu.Lock()
	defer st.flushMu.Unlock()
	return st.needsLoad || st.degraded || st.ledger.Revision() != st.flushedRev
}

// FlushPending retries every account whose last flush did not persist its
// latest state, and drops idle accounts once they are clean. It returns the
// number of accounts still dirty.
func (s *Store) FlushPending(ctx context.Context) int {
	s.mu.RLock()
	states := make(map[string]*accountState, len(s.accounts))
	for account, st := range s.accounts {
		states[account] = st
	}
	s.mu.RUnlock()

	remaining := 0
	for account, st := range states {
		if !s.dirty(st) {
			continue
		}
		st.ledger.Exclusive(func(*ledger.Ledger) error {
			return s.flush(ctx, account, st)
		})
		if s.dirty(st) {
			remaining++
		}
	}

	s.mu.Lock()
	for account, st := range s.accounts {
		if st.refs <= 0 && !s.dirty(st) {
			delete(s.accounts, account)
		}
	}
	s.mu.Unlock()
	return remaining
}

// CleanupExpired evicts sessions idle for longer than their TTL. Logged-in
// ledgers are flushed before they leave memory.
func (s *Store) CleanupExpired(ctx context.Context) int {
	now := s.opts.Now()

	s.mu.Lock()
	var expired []*entry
	for id, e := range s.sessions {
		ttl := s.opts.GuestTTL
		if e.info.Kind == Account {
			ttl = s.opts.AccountTTL
		}
		if now.Sub(e.info.LastActivity) > ttl {
			expired = append(expired, e)
			delete(s.sessions, id)
			if e.info.Kind == Account {
				if st, ok := s.accounts[e.info.Account]; ok {
					st.refs--
				}
			}
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		s.logger.Info("session expired", "session_id", e.info.ID, "kind", e.info.Kind.String())
	}
	if len(expired) > 0 {
		s.FlushPending(ctx)
	}
	return len(expired)
}

// FlushAll persists every live account ledger; used at shutdown.
func (s *Store) FlushAll(ctx context.Context) error {
	s.mu.RLock()
	states := make(map[string]*accountState, len(s.accounts))
	for account, st := range s.accounts {
		states[account] = st
	}
	s.mu.RUnlock()

	var firstErr error
	for account, st := range states {
		err := st.ledger.Exclusive(func(*ledger.Ledger) error {
			return s.flush(ctx, account, st)
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
