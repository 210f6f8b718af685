package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/expensebot/internal/llm"
)

var t0 = time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC)

func fill(t *testing.T, b *Buffer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := llm.RoleUser
		content := fmt.Sprintf("ăn trưa %dk với đồng nghiệp ở nhà hàng gần văn phòng", 100+i)
		if i%2 == 1 {
			role = llm.RoleAssistant
			content = "Đã ghi nhận khoản chi phí ăn uống của bạn, tôi sẽ tính vào báo cáo cuối ngày."
		}
		_, err := b.Append(role, content, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, DefaultWindow().Validate())
	assert.Equal(t, 2, DefaultWindow().KeepRecent())

	for _, w := range []Window{
		{MaxWindow: 10, Threshold: 0},
		{MaxWindow: 5, Threshold: 6},
		{MaxWindow: 4, Threshold: 2},
		{MaxWindow: 20, Threshold: 8},
	} {
		assert.ErrorIs(t, w.Validate(), ErrInvalidWindow, "%+v", w)
	}
}

func TestBufferRejectsEmptyTurn(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)

	_, err = b.Append(llm.RoleUser, "", t0)
	assert.ErrorIs(t, err, ErrEmptyTurn)
}

func TestSummarizationCycle(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)

	fill(t, b, 7)
	assert.Equal(t, Accumulating, b.State())

	fill(t, b, 1)
	require.Equal(t, Summarizing, b.State())

	client := llm.CompleterFunc(func(ctx context.Context, _ string, _ []llm.Message, _ string) (*llm.Completion, error) {
		return &llm.Completion{Text: "CHI PHÍ: 4 bữa trưa"}, nil
	})
	d := NewSummarizer(client, nil).Summarize(context.Background(), b.Turns())
	b.Trim()

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, Accumulating, b.State())
	assert.False(t, d.Fallback)
	assert.Equal(t, "CHI PHÍ: 4 bữa trưa", d.Text)
	assert.Equal(t, int64(1), d.Covered.FromSeq)
	assert.Equal(t, int64(8), d.Covered.ToSeq)
	assert.LessOrEqual(t, d.TokensAfter, d.TokensBefore)
	assert.Len(t, d.Facts.DeclaredExpenses, 5)
}

func TestSummarizeFallsBackWhenCollaboratorFails(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)
	fill(t, b, 8)

	client := llm.CompleterFunc(func(ctx context.Context, _ string, _ []llm.Message, _ string) (*llm.Completion, error) {
		return nil, errors.New("connection refused")
	})
	d := NewSummarizer(client, nil).Summarize(context.Background(), b.Turns())
	b.Trim()

	assert.True(t, d.Fallback)
	assert.NotEmpty(t, d.Text)
	assert.Contains(t, d.Text, "CHI PHÍ: 4 khoản đã kê khai")
	assert.LessOrEqual(t, d.TokensAfter, d.TokensBefore)
	assert.Equal(t, 2, b.Len())
}

func TestSummarizeFallsBackOnTimeout(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)
	fill(t, b, 8)

	client := llm.CompleterFunc(func(ctx context.Context, _ string, _ []llm.Message, _ string) (*llm.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := NewSummarizer(client, nil, WithTimeout(10*time.Millisecond)).Summarize(context.Background(), b.Turns())

	assert.True(t, d.Fallback)
	assert.NotEmpty(t, d.Text)
}

func TestSummarizeReplacesOverlongDigest(t *testing.T) {
	turns := []Turn{
		{Seq: 1, Role: llm.RoleUser, Content: "taxi 50k", Timestamp: t0},
		{Seq: 2, Role: llm.RoleAssistant, Content: "ok", Timestamp: t0},
	}
	client := llm.CompleterFunc(func(ctx context.Context, _ string, _ []llm.Message, _ string) (*llm.Completion, error) {
		return &llm.Completion{Text: strings.Repeat("tóm tắt rất dài ", 50)}, nil
	})
	d := NewSummarizer(client, nil).Summarize(context.Background(), turns)

	assert.True(t, d.Fallback)
	assert.NotEmpty(t, d.Text)
	assert.LessOrEqual(t, d.TokensAfter, d.TokensBefore)
	assert.LessOrEqual(t, RuneEstimator{}.Count(d.Text), d.TokensBefore)
}

func TestSummarizeWithoutClient(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)
	fill(t, b, 8)

	d := NewSummarizer(nil, nil).Summarize(context.Background(), b.Turns())
	assert.True(t, d.Fallback)
	assert.Contains(t, d.Text, "CONTEXT: 8 tin nhắn đã được tóm tắt")
}

func TestExtractFacts(t *testing.T) {
	turns := []Turn{
		{Role: llm.RoleUser, Content: "Ăn trưa 150k, taxi 50k", Timestamp: t0},
		{Role: llm.RoleUser, Content: "Chính sách hóa đơn thế nào?", Timestamp: t0},
		{Role: llm.RoleUser, Content: "Cho tôi báo cáo chi phí", Timestamp: t0},
		{Role: llm.RoleUser, Content: "Tính hoàn trả giúp tôi", Timestamp: t0},
		{Role: llm.RoleAssistant, Content: "taxi 500k", Timestamp: t0},
	}
	f := ExtractFacts(turns, nil)

	assert.Len(t, f.DeclaredExpenses, 2)
	assert.Len(t, f.PolicyQuestions, 1)
	assert.Len(t, f.ReportRequests, 1)
	assert.Len(t, f.CalculationRequests, 1)
}

func TestBuildContext(t *testing.T) {
	digests := []Digest{{Text: "một"}, {Text: "hai"}, {Text: "ba\nbốn"}}
	turns := []Turn{{Role: llm.RoleUser, Content: "xin chào"}, {Role: llm.RoleAssistant, Content: "chào bạn"}}

	msgs := BuildContext("sys", digests, turns, 2)

	require.Len(t, msgs, 4)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.NotContains(t, msgs[1].Content, "một")
	assert.Contains(t, msgs[1].Content, "ba; bốn")
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
}

func TestBufferRestoreStaysAccumulating(t *testing.T) {
	b, err := NewBuffer(DefaultWindow(), nil)
	require.NoError(t, err)

	var turns []Turn
	for i := 1; i <= 12; i++ {
		turns = append(turns, Turn{Seq: int64(i), Role: llm.RoleUser, Content: "x"})
	}
	b.Restore(turns)

	assert.Equal(t, 7, b.Len())
	assert.Equal(t, Accumulating, b.State())
	next, err := b.Append(llm.RoleUser, "y", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(13), next.Seq)
}
