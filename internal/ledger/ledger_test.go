package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/expensebot/internal/llm"
	"github.com/susu3304/expensebot/internal/memory"
)

var t0 = time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New("guest_1", "", Options{Now: func() time.Time { return t0 }})
	require.NoError(t, err)
	return l
}

func TestCaptureStampsExpenses(t *testing.T) {
	l := newLedger(t)

	got, dup := l.Capture(Message{SessionID: "guest_1", Key: "m1", Text: "Ăn trưa 150k, taxi 50k", ReceivedAt: t0})

	assert.False(t, dup)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "guest_1", e.SessionID)
		assert.Equal(t, t0, e.CreatedAt)
	}
	assert.Len(t, l.Expenses(), 2)
}

func TestCaptureIsIdempotentPerKey(t *testing.T) {
	l := newLedger(t)
	first, _ := l.Capture(Message{Key: "m1", Text: "taxi 50k", ReceivedAt: t0})
	rev := l.Revision()

	again, dup := l.Capture(Message{Key: "m1", Text: "taxi 50k", ReceivedAt: t0})

	assert.True(t, dup)
	assert.Equal(t, first, again)
	assert.Len(t, l.Expenses(), 1)
	assert.Equal(t, rev, l.Revision())
	assert.True(t, l.Seen("m1"))
}

func TestIdempotencyWindowIsBounded(t *testing.T) {
	l, err := New("g", "", Options{IdempotencyWindow: 2})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		l.Capture(Message{Key: fmt.Sprintf("k%d", i), Text: "taxi 50k", ReceivedAt: t0})
	}

	assert.False(t, l.Seen("k0"))
	assert.True(t, l.Seen("k1"))
	assert.True(t, l.Seen("k2"))
}

func TestSummarizationNeverTouchesExpenses(t *testing.T) {
	l := newLedger(t)
	s := memory.NewSummarizer(nil, nil)
	ctx := context.Background()

	var digests int
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("ăn trưa %dk", 100+i)
		l.Capture(Message{Key: fmt.Sprintf("m%d", i), Text: text, ReceivedAt: t0})
		for _, role := range []string{llm.RoleUser, llm.RoleAssistant} {
			d, err := l.AppendTurn(ctx, role, text, t0, s)
			require.NoError(t, err)
			if d != nil {
				digests++
				assert.LessOrEqual(t, d.TokensAfter, d.TokensBefore)
			}
		}
	}

	assert.Len(t, l.Expenses(), 20)
	assert.Equal(t, digests, len(l.Digests()))
	assert.Less(t, len(l.Turns()), memory.DefaultWindow().Threshold)
	st := l.Stats()
	assert.Equal(t, 40, st.MessageCount)
	assert.Equal(t, digests, st.SummariesCreated)
}

func TestAppendTurnTrimsToKeepRecent(t *testing.T) {
	l := newLedger(t)
	s := memory.NewSummarizer(nil, nil)

	var digest *memory.Digest
	for i := 0; i < 8; i++ {
		d, err := l.AppendTurn(context.Background(), llm.RoleUser, fmt.Sprintf("tin nhắn số %d", i), t0, s)
		require.NoError(t, err)
		if d != nil {
			digest = d
		}
	}

	require.NotNil(t, digest)
	assert.Len(t, l.Turns(), 2)
	assert.Len(t, l.PendingDigests(), 1)

	l.AckDigests([]string{digest.ID})
	assert.Empty(t, l.PendingDigests())
}

func TestResetsAreIndependent(t *testing.T) {
	l := newLedger(t)
	l.Capture(Message{Key: "m1", Text: "taxi 50k", ReceivedAt: t0})
	_, err := l.AppendTurn(context.Background(), llm.RoleUser, "taxi 50k", t0, nil)
	require.NoError(t, err)

	l.ResetMemory()
	assert.Empty(t, l.Turns())
	assert.Len(t, l.Expenses(), 1)

	_, err = l.AppendTurn(context.Background(), llm.RoleUser, "xin chào", t0, nil)
	require.NoError(t, err)
	l.ResetExpenses()
	assert.Empty(t, l.Expenses())
	assert.Len(t, l.Turns(), 1)
}

func TestSetReceipt(t *testing.T) {
	l := newLedger(t)
	got, _ := l.Capture(Message{Key: "m1", Text: "khách sạn 2tr", ReceivedAt: t0})
	require.Len(t, got, 1)

	updated, err := l.SetReceipt(got[0].ID, true)
	require.NoError(t, err)
	assert.True(t, updated.HasReceipt)
	assert.True(t, l.Expenses()[0].HasReceipt)

	_, err = l.SetReceipt("missing", true)
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestMergeSnapshot(t *testing.T) {
	src := newLedger(t)
	for i := 0; i < 5; i++ {
		src.Capture(Message{Key: fmt.Sprintf("m%d", i), Text: "taxi 50k", ReceivedAt: t0})
	}
	snap := src.Snapshot()

	dst, err := New("alice", "alice", Options{})
	require.NoError(t, err)
	dst.Merge(snap)
	dst.Merge(snap)

	assert.Len(t, dst.Expenses(), 5)
	assert.True(t, dst.Seen("m3"))
	_, dup := dst.Capture(Message{Key: "m3", Text: "taxi 50k", ReceivedAt: t0})
	assert.True(t, dup)
}

func TestStatsEfficiency(t *testing.T) {
	assert.Equal(t, "0.00", efficiency(0, 0))
	assert.Equal(t, "12.50", efficiency(25, 2))
}
