package memory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWindow = errors.New("invalid memory window")
	ErrEmptyTurn     = errors.New("turn content must not be empty")
)

type Turn struct {
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    int       `json:"tokens"`
}

type State int

const (
	Accumulating State = iota
	Summarizing
)

func (s State) String() string {
	if s == Summarizing {
		return "summarizing"
	}
	return "accumulating"
}

// Window configures when the buffer compresses. Once Threshold turns have
// accumulated, they are summarized and only KeepRecent turns remain.
type Window struct {
	MaxWindow int
	Threshold int
}

func DefaultWindow() Window {
	return Window{MaxWindow: 10, Threshold: 8}
}

func (w Window) KeepRecent() int {
	return max(2, w.MaxWindow-w.Threshold)
}

func (w Window) Validate() error {
	if w.Threshold <= 0 || w.Threshold > w.MaxWindow {
		return fmt.Errorf("%w: threshold %d must be in (0, %d]", ErrInvalidWindow, w.Threshold, w.MaxWindow)
	}
	if w.KeepRecent() >= w.Threshold {
		return fmt.Errorf("%w: keep-recent %d must be below threshold %d", ErrInvalidWindow, w.KeepRecent(), w.Threshold)
	}
	return nil
}

// Buffer is the rolling window of recent turns. It is not safe for
// concurrent use; the owning ledger serializes access.
type Buffer struct {
	window  Window
	counter TokenCounter
	turns   []Turn
	nextSeq int64
}

func NewBuffer(w Window, counter TokenCounter) (*Buffer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		counter = RuneEstimator{}
	}
	return &Buffer{window: w, counter: counter, nextSeq: 1}, nil
}

func (b *Buffer) Append(role, content string, ts time.Time) (Turn, error) {
	if content == "" {
		return Turn{}, ErrEmptyTurn
	}
	t := Turn{
		Seq:       b.nextSeq,
		Role:      role,
		Content:   content,
		Timestamp: ts,
		Tokens:    b.counter.Count(content),
	}
	b.nextSeq++
	b.turns = append(b.turns, t)
	return t, nil
}

func (b *Buffer) State() State {
	if len(b.turns) >= b.window.Threshold {
		return Summarizing
	}
	return Accumulating
}

func (b *Buffer) Window() Window { return b.window }

func (b *Buffer) Len() int { return len(b.turns) }

func (b *Buffer) Turns() []Turn {
	return append([]Turn(nil), b.turns...)
}

func (b *Buffer) Tokens() int {
	total := 0
	for _, t := range b.turns {
		total += t.Tokens
	}
	return total
}

// Trim drops everything but the KeepRecent most recent turns.
func (b *Buffer) Trim() {
	keep := b.window.KeepRecent()
	if len(b.turns) <= keep {
		return
	}
	b.turns = append([]Turn(nil), b.turns[len(b.turns)-keep:]...)
}

func (b *Buffer) Reset() {
	b.turns = nil
}

// Restore replaces the buffer content with turns, keeping at most
// Threshold-1 of the newest so the buffer comes back accumulating.
func (b *Buffer) Restore(turns []Turn) {
	if limit := b.window.Threshold - 1; len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	b.turns = append([]Turn(nil), turns...)
	for _, t := range b.turns {
		if t.Seq >= b.nextSeq {
			b.nextSeq = t.Seq + 1
		}
	}
}
