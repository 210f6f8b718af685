package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/susu3304/expensebot/internal/db"
	"github.com/susu3304/expensebot/internal/ledger"
	"github.com/susu3304/expensebot/internal/memory"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidAccount  = errors.New("account must not be empty")
)

// DocumentStore is the durable store for logged-in ledgers.
type DocumentStore interface {
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) (*db.Document, error)
	Query(ctx context.Context, filter map[string]string) ([]db.Document, error)
}

type Kind int

const (
	Guest Kind = iota
	Account
)

func (k Kind) String() string {
	if k == Account {
		return "account"
	}
	return "guest"
}

type Options struct {
	GuestTTL         time.Duration
	AccountTTL       time.Duration
	StoreTimeout     time.Duration
	MaxFlushAttempts int
	Ledger           ledger.Options
	Logger           *slog.Logger
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.GuestTTL <= 0 {
		o.GuestTTL = 2 * time.Hour
	}
	if o.AccountTTL <= 0 {
		o.AccountTTL = 24 * time.Hour
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.MaxFlushAttempts <= 0 {
		o.MaxFlushAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Info describes a live session.
type Info struct {
	ID           string    `json:"sessionId"`
	Kind         Kind      `json:"-"`
	Account      string    `json:"account,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type entry struct {
	info   Info
	ledger *ledger.Ledger
}

// accountState tracks one logged-in ledger shared by all of the account's sessions.
type accountState struct {
	flushMu    sync.Mutex
	ledger     *ledger.Ledger
	refs       int
	flushedRev uint64
	attempts   int
	degraded   bool
	// needsLoad is set when the persisted copy could not be read at login;
	// it must be merged before anything is written back.
	needsLoad bool
}

// Store maps session IDs to ledgers. Guests live only in process; logged-in
// ledgers are loaded from and flushed to the document store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	accounts map[string]*accountState
	docs     DocumentStore
	opts     Options
	logger   *slog.Logger
}

func NewStore(docs DocumentStore, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	window := opts.Ledger.Window
	if window == (memory.Window{}) {
		window = memory.DefaultWindow()
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		sessions: make(map[string]*entry),
		accounts: make(map[string]*accountState),
		docs:     docs,
		opts:     opts,
		logger:   opts.Logger.With("component", "session"),
	}, nil
}

func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

func ledgerKey(account string) string { return "ledger:" + account }

func digestKey(account, id string) string { return "digest:" + account + ":" + id }

// CreateGuest opens a new in-process session.
func (s *Store) CreateGuest() string {
	id := "guest_" + uuid.NewString()
	l, err := ledger.New(id, "", s.opts.Ledger)
	if err != nil {
		// The window was validated in NewStore.
		panic(err)
	}
	now := s.opts.Now()

	s.mu.Lock()
	s.sessions[id] = &entry{info: Info{ID: id, Kind: Guest, CreatedAt: now, LastActivity: now}, ledger: l}
	s.mu.Unlock()

	s.logger.Info("guest session created", "session_id", id)
	return id
}

// Login opens a session for account. An account already active in this
// process reuses its ledger; otherwise the ledger is loaded from the
// document store. A guest session passed in is merged into the account
// ledger and retired.
func (s *Store) Login(ctx context.Context, account, guestSessionID string) (string, *ledger.Ledger, error) {
	account = normalizeAccount(account)
	if account == "" {
		return "", nil, ErrInvalidAccount
	}

	var guest *entry
	if guestSessionID != "" {
		s.mu.RLock()
		e, ok := s.sessions[guestSessionID]
		s.mu.RUnlock()
		if !ok {
			return "", nil, ErrSessionNotFound
		}
		if e.info.Kind == Guest {
			guest = e
		}
	}

	st, err := s.account(ctx, account)
	if err != nil {
		return "", nil, err
	}

	id := "user_" + uuid.NewString()
	now := s.opts.Now()
	s.mu.Lock()
	st = s.attach(account, st)
	s.sessions[id] = &entry{info: Info{ID: id, Kind: Account, Account: account, CreatedAt: now, LastActivity: now}, ledger: st.ledger}
	if guest != nil {
		delete(s.sessions, guest.info.ID)
	}
	s.mu.Unlock()

	if guest != nil {
		var snap ledger.Snapshot
		guest.ledger.Exclusive(func(l *ledger.Ledger) error {
			snap = l.Snapshot()
			return nil
		})
		st.ledger.Exclusive(func(l *ledger.Ledger) error {
			l.Merge(snap)
			s.flush(ctx, account, st)
			return nil
		})
		s.logger.Info("guest session merged", "session_id", guest.info.ID, "account", account, "expenses", len(snap.Expenses))
	}

	s.logger.Info("account session created", "session_id", id, "account", account)
	return id, st.ledger, nil
}

// attach takes a reference on the registered state for account. When the
// janitor dropped st and another login registered a newer state in the
// meantime, that state wins and st is discarded. Callers hold s.mu.
func (s *Store) attach(account string, st *accountState) *accountState {
	if cur, ok := s.accounts[account]; ok {
		st = cur
	} else {
		s.accounts[account] = st
	}
	st.refs++
	return st
}

// account returns the live state for account, loading it on first use.
func (s *Store) account(ctx context.Context, account string) (*accountState, error) {
	s.mu.RLock()
	st, ok := s.accounts[account]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	l, err := ledger.New(account, account, s.opts.Ledger)
	if err != nil {
		return nil, err
	}
	fresh := &accountState{ledger: l}
	if err := s.load(ctx, account, l); err != nil {
		s.logger.Warn("failed to load ledger, continuing with an empty one", "account", account, "error", err)
		fresh.needsLoad = true
	}
	fresh.flushedRev = l.Revision()

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.accounts[account]; ok {
		// Another login loaded it first.
		return st, nil
	}
	s.accounts[account] = fresh
	return fresh, nil
}

func (s *Store) load(ctx context.Context, account string, l *ledger.Ledger) error {
	if s.docs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	doc, err := s.docs.Get(ctx, ledgerKey(account))
	if err != nil {
		return err
	}
	if doc != nil {
		var snap ledger.Snapshot
		if err := json.Unmarshal(doc.Body, &snap); err != nil {
			return fmt.Errorf("invalid ledger document: %w", err)
		}
		l.Merge(snap)
		return nil
	}

	// No ledger document yet: fall back to any digests written on their own.
	docs, err := s.docs.Query(ctx, map[string]string{"account": account, "kind": "digest"})
	if err != nil {
		return err
	}
	var snap ledger.Snapshot
	for _, d := range docs {
		var digest memory.Digest
		if err := json.Unmarshal(d.Body, &digest); err != nil {
			s.logger.Warn("skipping invalid digest document", "key", d.Key, "error", err)
			continue
		}
		snap.Digests = append(snap.Digests, digest)
	}
	if len(snap.Digests) > 0 {
		l.Merge(snap)
	}
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Get returns the ledger behind a session.
func (s *Store) Get(id string) (*ledger.Ledger, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.ledger, nil
}

func (s *Store) Info(id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return e.info, nil
}

// Do runs fn with exclusive access to the session's ledger. Logged-in
// ledgers are flushed afterwards when fn changed them.
func (s *Store) Do(ctx context.Context, id string, fn func(*ledger.Ledger) error) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		e.info.LastActivity = s.opts.Now()
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	return e.ledger.Exclusive(func(l *ledger.Ledger) error {
		err := fn(l)
		if e.info.Kind == Account {
			if st := s.accountState(e.info.Account); st != nil {
				s.flush(ctx, e.info.Account, st)
			}
		}
		return err
	})
}

func (s *Store) accountState(account string) *accountState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[account]
}

// Degraded reports whether the session's ledger has failed to persist
// MaxFlushAttempts times in a row.
func (s *Store) Degraded(id string) bool {
	e, err := s.lookup(id)
	if err != nil || e.info.Kind != Account {
		return false
	}
	st := s.accountState(e.info.Account)
	if st == nil {
		return false
	}
	st.flushMu.Lock()
	defer st.flushMu.Unlock()
	return st.degraded
}

// Logout flushes a logged-in ledger and removes the session. The ledger
// leaves memory once no session references it and it is persisted; a failed
// flush is retried by the janitor.
func (s *Store) Logout(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	if e.info.Kind == Account {
		if st := s.accountState(e.info.Account); st != nil {
			e.ledger.Exclusive(func(*ledger.Ledger) error {
				s.flush(ctx, e.info.Account, st)
				return nil
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	if e.info.Kind == Account {
		s.release(e.info.Account)
	}
	s.logger.Info("session closed", "session_id", id, "kind", e.info.Kind.String())
	return nil
}

// release drops one reference to account. Callers hold s.mu.
func (s *Store) release(account string) {
	st, ok := s.accounts[account]
	if !ok {
		return
	}
	st.refs--
	if st.refs > 0 {
		return
	}
	st.flushMu.Lock()
	clean := !st.needsLoad && st.ledger.Revision() == st.flushedRev
	st.flushMu.Unlock()
	if clean {
		delete(s.accounts, account)
	}
}
