package assistant

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/ledger"
	"github.com/susu3304/expensebot/internal/llm"
	"github.com/susu3304/expensebot/internal/memory"
	"github.com/susu3304/expensebot/internal/reimburse"
	"github.com/susu3304/expensebot/internal/session"
)

var (
	ErrEmptyMessage          = errors.New("message must not be empty")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrDuplicateKey          = errors.New("idempotency key repeated within batch")
	ErrEmptyBatch            = errors.New("batch must contain at least one item")
)

const duplicateText = "Tin nhắn này đã được xử lý trước đó."

type Config struct {
	SystemPrompt     string
	MaxSummaries     int
	ReplyTimeout     time.Duration
	BatchConcurrency int
}

// Service handles one conversational turn end to end: capture, reply,
// memory update. It holds no per-user state of its own.
type Service struct {
	store      *session.Store
	llm        llm.Completer
	summarizer *memory.Summarizer
	engine     *reimburse.Engine
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the assistant. completer may be nil, in which case
// replies are local acknowledgements.
func NewService(store *session.Store, completer llm.Completer, summarizer *memory.Summarizer, engine *reimburse.Engine, cfg Config) *Service {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt(engine.Policy())
	}
	if cfg.MaxSummaries <= 0 {
		cfg.MaxSummaries = 3
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	return &Service{
		store:      store,
		llm:        completer,
		summarizer: summarizer,
		engine:     engine,
		cfg:        cfg,
		logger:     slog.Default().With("component", "assistant"),
		now:        time.Now,
	}
}

type ChatRequest struct {
	SessionID      string `json:"sessionId"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type Response struct {
	Success                bool                   `json:"success"`
	ResponseText           string                 `json:"responseText"`
	ExpenseData            []expense.Expense      `json:"expenseData,omitempty"`
	ReimbursementBreakdown *reimburse.Breakdown   `json:"reimbursementBreakdown,omitempty"`
	Validations            []reimburse.Validation `json:"validations,omitempty"`
	Duplicate              bool                   `json:"duplicate,omitempty"`
	Summarized             bool                   `json:"summarized,omitempty"`
	Degraded               bool                   `json:"degraded,omitempty"`
}

// turn carries one message through capture, reply and commit.
type turn struct {
	text       string
	key        string
	receivedAt time.Time
	captured   []expense.Expense
	duplicate  bool
	report     *reimburse.Report
	history    []llm.Message
	reply      string
}

func validateMessage(text, key string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrMissingIdempotencyKey
	}
	return text, nil
}

// Chat processes one user message.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	text, err := validateMessage(req.Message, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = s.store.Do(ctx, req.SessionID, func(l *ledger.Ledger) error {
		t := s.prepare(l, req.SessionID, text, req.IdempotencyKey, l.Context(s.cfg.SystemPrompt, s.cfg.MaxSummaries))
		if !t.duplicate {
			t.reply = s.reply(ctx, t)
		}
		var err error
		resp, err = s.commit(ctx, l, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp.Degraded = s.store.Degraded(req.SessionID)
	return resp, nil
}

// prepare captures expenses and builds the turn's isolated prompt history.
func (s *Service) prepare(l *ledger.Ledger, sessionID, text, key string, base []llm.Message) *turn {
	t := &turn{text: text, key: key, receivedAt: s.now()}
	t.captured, t.duplicate = l.Capture(ledger.Message{SessionID: sessionID, Key: key, Text: text, ReceivedAt: t.receivedAt})
	if t.duplicate {
		return t
	}

	if IsReportRequest(text) {
		r := s.engine.Report(sessionID, l.Expenses(), reimburse.FormatDetailed)
		t.report = &r
		return t
	}

	t.history = slices.Clone(base)
	if len(t.captured) > 0 {
		t.history = append(t.history, llm.Message{Role: llm.RoleSystem, Content: capturedNote(t.captured)})
	}
	return t
}

// reply asks the model for an answer, falling back to a local
// acknowledgement when it fails or times out.
func (s *Service) reply(ctx context.Context, t *turn) string {
	if t.report != nil {
		return t.report.Text
	}
	if s.llm == nil {
		return acknowledgement(t.captured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReplyTimeout)
	defer cancel()
	out, err := s.llm.Complete(ctx, "", t.history, t.text)
	if err != nil {
		s.logger.Warn("reply collaborator failed, using local reply", "error", err)
		return acknowledgement(t.captured)
	}
	if strings.TrimSpace(out.Text) == "" {
		return acknowledgement(t.captured)
	}
	return out.Text
}

// commit records the user and assistant turns.
func (s *Service) commit(ctx context.Context, l *ledger.Ledger, t *turn) (*Response, error) {
	if t.duplicate {
		return &Response{Success: true, ResponseText: duplicateText, ExpenseData: t.captured, Duplicate: true}, nil
	}

	resp := &Response{Success: true, ResponseText: t.reply, ExpenseData: t.captured}
	if t.report != nil {
		resp.ReimbursementBreakdown = &t.report.Breakdown
		resp.Validations = t.report.Validations
	}

	for _, m := range []llm.Message{{Role: llm.RoleUser, Content: t.text}, {Role: llm.RoleAssistant, Content: t.reply}} {
		d, err := l.AppendTurn(ctx, m.Role, m.Content, s.now(), s.summarizer)
		if err != nil {
			return nil, err
		}
		if d != nil {
			resp.Summarized = true
		}
	}
	return resp, nil
}
