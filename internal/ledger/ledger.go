package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/llm"
	"github.com/susu3304/expensebot/internal/memory"
)

var ErrExpenseNotFound = errors.New("expense not found")

type Options struct {
	Window     memory.Window
	Counter    memory.TokenCounter
	Extractor  *expense.Extractor
	MaxDigests int
	// IdempotencyWindow bounds how many message keys are remembered.
	IdempotencyWindow int
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Window == (memory.Window{}) {
		o.Window = memory.DefaultWindow()
	}
	if o.Counter == nil {
		o.Counter = memory.RuneEstimator{}
	}
	if o.Extractor == nil {
		o.Extractor = expense.NewExtractor(nil)
	}
	if o.MaxDigests <= 0 {
		o.MaxDigests = 20
	}
	if o.IdempotencyWindow <= 0 {
		o.IdempotencyWindow = 512
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Message is one inbound user message offered for expense capture.
type Message struct {
	SessionID  string
	Key        string
	Text       string
	ReceivedAt time.Time
}

// Ledger is the per-user state: the conversation buffer, the expense list
// and the digests. Expenses are only ever added by Capture; summarization
// never touches them.
type Ledger struct {
	// request serializes whole requests against this ledger.
	request sync.Mutex

	mu        sync.RWMutex
	id        string
	account   string
	opts      Options
	buffer    *memory.Buffer
	expenses  []expense.Expense
	digests   []memory.Digest
	pending   []memory.Digest
	seen      map[string][]string
	seenOrder []string
	counters  Counters
	revision  uint64
	createdAt time.Time
	updatedAt time.Time
}

type Counters struct {
	MessageCount     int `json:"messageCount"`
	SummariesCreated int `json:"summariesCreated"`
	TokensSaved      int `json:"tokensSaved"`
}

// New creates an empty ledger. account is empty for guests.
func New(id, account string, opts Options) (*Ledger, error) {
	opts = opts.withDefaults()
	buf, err := memory.NewBuffer(opts.Window, opts.Counter)
	if err != nil {
		return nil, err
	}
	now := opts.Now()
	return &Ledger{
		id:        id,
		account:   account,
		opts:      opts,
		buffer:    buf,
		seen:      make(map[string][]string),
		createdAt: now,
		updatedAt: now,
	}, nil
}

func (l *Ledger) ID() string      { return l.id }
func (l *Ledger) Account() string { return l.account }

// Exclusive runs fn while holding the request lock. Requests on the same
// ledger run one at a time; fn must not call Exclusive again.
func (l *Ledger) Exclusive(fn func(*Ledger) error) error {
	l.request.Lock()
	defer l.request.Unlock()
	return fn(l)
}

// Revision increases on every mutation.
func (l *Ledger) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

func (l *Ledger) touch() {
	l.revision++
	l.updatedAt = l.opts.Now()
}

// Seen reports whether a message with key was already captured.
func (l *Ledger) Seen(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[key]
	return ok
}

// Captured returns the expenses recorded for key.
func (l *Ledger) Captured(key string) []expense.Expense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byIDs(l.seen[key])
}

func (l *Ledger) byIDs(ids []string) []expense.Expense {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []expense.Expense
	for _, e := range l.expenses {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// Capture extracts expenses from msg and appends them to the ledger. A key
// that was already captured returns the earlier expenses with duplicate set
// and changes nothing.
func (l *Ledger) Capture(msg Message) (captured []expense.Expense, duplicate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.Key != "" {
		if ids, ok := l.seen[msg.Key]; ok {
			return l.byIDs(ids), true
		}
	}

	now := l.opts.Now()
	extracted := l.opts.Extractor.ExtractAt(msg.Text, msg.ReceivedAt)
	ids := make([]string, 0, len(extracted))
	for _, e := range extracted {
		e.ID = uuid.NewString()
		e.SessionID = msg.SessionID
		e.CreatedAt = now
		l.expenses = append(l.expenses, e)
		captured = append(captured, e)
		ids = append(ids, e.ID)
	}
	if msg.Key != "" {
		l.remember(msg.Key, ids)
	}
	if msg.Key != "" || len(ids) > 0 {
		l.touch()
	}
	return captured, false
}

func (l *Ledger) remember(key string, ids []string) {
	l.seen[key] = ids
	l.seenOrder = append(l.seenOrder, key)
	for len(l.seenOrder) > l.opts.IdempotencyWindow {
		delete(l.seen, l.seenOrder[0])
		l.seenOrder = l.seenOrder[1:]
	}
}

// AppendTurn adds a turn and, when the buffer reaches its threshold,
// summarizes and trims it. The model call runs without holding the state
// lock; callers hold the request lock.
func (l *Ledger) AppendTurn(ctx context.Context, role, content string, at time.Time, s *memory.Summarizer) (*memory.Digest, error) {
	l.mu.Lock()
	if _, err := l.buffer.Append(role, content, at); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.counters.MessageCount++
	l.touch()
	if l.buffer.State() != memory.Summarizing || s == nil {
		l.mu.Unlock()
		return nil, nil
	}
	due := l.buffer.Turns()
	l.mu.Unlock()

	d := s.Summarize(ctx, due)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.digests = append(l.digests, d)
	if over := len(l.digests) - l.opts.MaxDigests; over > 0 {
		l.digests = append([]memory.Digest(nil), l.digests[over:]...)
	}
	l.pending = append(l.pending, d)
	l.counters.SummariesCreated++
	l.counters.TokensSaved += d.TokensSaved()
	l.buffer.Trim()
	l.touch()
	return &d, nil
}

// ResetMemory clears turns and digests. Expenses stay.
func (l *Ledger) ResetMemory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer.Reset()
	l.digests = nil
	l.touch()
}

// ResetExpenses clears the expense list. Conversation memory stays, and
// remembered message keys keep retries from recapturing.
func (l *Ledger) ResetExpenses() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expenses = nil
	l.touch()
}

func (l *Ledger) SetReceipt(id string, has bool) (expense.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.expenses {
		if l.expenses[i].ID == id {
			l.expenses[i].HasReceipt = has
			l.touch()
			return l.expenses[i], nil
		}
	}
	return expense.Expense{}, ErrExpenseNotFound
}

func (l *Ledger) Expenses() []expense.Expense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]expense.Expense(nil), l.expenses...)
}

func (l *Ledger) Digests() []memory.Digest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]memory.Digest(nil), l.digests...)
}

func (l *Ledger) Turns() []memory.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buffer.Turns()
}

// Context rebuilds the model history from digests and recent turns.
func (l *Ledger) Context(systemPrompt string, maxSummaries int) []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return memory.BuildContext(systemPrompt, l.digests, l.buffer.Turns(), maxSummaries)
}

// PendingDigests returns digests created since they were last acknowledged.
func (l *Ledger) PendingDigests() []memory.Digest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]memory.Digest(nil), l.pending...)
}

// AckDigests drops persisted digests from the pending list.
func (l *Ledger) AckDigests(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	kept := l.pending[:0]
	for _, d := range l.pending {
		if !done[d.ID] {
			kept = append(kept, d)
		}
	}
	l.pending = kept
}
