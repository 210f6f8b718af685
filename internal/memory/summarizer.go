package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/llm"
)

const summaryPrompt = `Bạn là chuyên gia tóm tắt hội thoại cho hệ thống báo cáo chi phí.

NHIỆM VỤ: Tóm tắt hội thoại, tập trung vào chi phí đã kê khai (số tiền, danh mục, mô tả), câu hỏi về chính sách công ty, yêu cầu tính toán hoặc báo cáo, và thông tin cần nhớ cho lượt sau.

ĐỊNH DẠNG:
CHI PHÍ: [chi phí đã kê khai]
CHÍNH SÁCH: [câu hỏi chính sách đã trả lời]
YÊU CẦU: [yêu cầu tính toán/báo cáo]
CONTEXT: [thông tin quan trọng]

Giữ tóm tắt ngắn gọn.`

type Range struct {
	FromSeq int64     `json:"fromSeq"`
	ToSeq   int64     `json:"toSeq"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Digest is the compressed form of a window of turns.
type Digest struct {
	ID           string    `json:"id"`
	Covered      Range     `json:"covered"`
	Text         string    `json:"text"`
	Facts        Facts     `json:"facts"`
	TokensBefore int       `json:"tokensBefore"`
	TokensAfter  int       `json:"tokensAfter"`
	Fallback     bool      `json:"fallback"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (d Digest) TokensSaved() int {
	return d.TokensBefore - d.TokensAfter
}

type Summarizer struct {
	client    llm.Completer
	counter   TokenCounter
	extractor *expense.Extractor
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type SummarizerOption func(*Summarizer)

func WithTimeout(d time.Duration) SummarizerOption {
	return func(s *Summarizer) { s.timeout = d }
}

func WithCounter(c TokenCounter) SummarizerOption {
	return func(s *Summarizer) { s.counter = c }
}

func WithLogger(l *slog.Logger) SummarizerOption {
	return func(s *Summarizer) { s.logger = l }
}

func WithClock(now func() time.Time) SummarizerOption {
	return func(s *Summarizer) { s.now = now }
}

// NewSummarizer builds a summarizer. A nil client always produces fallback digests.
func NewSummarizer(client llm.Completer, extractor *expense.Extractor, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		client:    client,
		counter:   RuneEstimator{},
		extractor: extractor,
		timeout:   15 * time.Second,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = expense.NewExtractor(nil)
	}
	return s
}

// Summarize compresses turns into a digest. It never fails; a model error or
// unusable answer yields the deterministic fallback. TokensAfter never
// exceeds TokensBefore.
func (s *Summarizer) Summarize(ctx context.Context, turns []Turn) Digest {
	d := Digest{
		ID:        uuid.NewString(),
		Facts:     ExtractFacts(turns, s.extractor),
		CreatedAt: s.now(),
	}
	if len(turns) > 0 {
		d.Covered = Range{
			FromSeq: turns[0].Seq,
			ToSeq:   turns[len(turns)-1].Seq,
			Start:   turns[0].Timestamp,
			End:     turns[len(turns)-1].Timestamp,
		}
	}
	for _, t := range turns {
		d.TokensBefore += s.counter.Count(t.Content)
	}

	text, err := s.complete(ctx, turns)
	if err != nil {
		s.logger.Warn("summary collaborator failed, using fallback", "component", "summarizer", "error", err)
	}
	if text == "" || s.counter.Count(text) > d.TokensBefore {
		text = fallbackText(d.Facts, len(turns))
		d.Fallback = true
	}
	d.Text = truncateToBudget(text, d.TokensBefore, s.counter)
	if d.Text == "" {
		d.Text = "…"
	}
	d.TokensAfter = min(s.counter.Count(d.Text), d.TokensBefore)
	return d
}

func (s *Summarizer) complete(ctx context.Context, turns []Turn) (string, error) {
	if s.client == nil {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(t.Role), t.Content)
	}
	out, err := s.client.Complete(ctx, summaryPrompt, nil, "Hội thoại cần tóm tắt:\n\n"+sb.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func fallbackText(f Facts, turns int) string {
	var parts []string
	if n := len(f.DeclaredExpenses); n > 0 {
		parts = append(parts, fmt.Sprintf("CHI PHÍ: %d khoản đã kê khai", n))
	}
	if n := len(f.PolicyQuestions); n > 0 {
		parts = append(parts, fmt.Sprintf("CHÍNH SÁCH: %d câu hỏi", n))
	}
	if n := len(f.ReportRequests); n > 0 {
		parts = append(parts, fmt.Sprintf("YÊU CẦU: %d yêu cầu báo cáo", n))
	}
	parts = append(parts, fmt.Sprintf("CONTEXT: %d tin nhắn đã được tóm tắt", turns))
	return strings.Join(parts, "\n")
}
