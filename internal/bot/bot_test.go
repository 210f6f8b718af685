package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/expensebot/internal/db"
	"github.com/susu3304/expensebot/internal/session"
)

func TestStripMention(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "<@123> taxi 50k", "taxi 50k"},
		{"nickname form", "<@!123>   ăn trưa 100k", "ăn trưa 100k"},
		{"other user kept", "<@999> hi", "<@999> hi"},
		{"only mention", "<@123>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMention(tt.content, "123"))
		})
	}
}

func TestMentions(t *testing.T) {
	m := &discordgo.Message{Mentions: []*discordgo.User{{ID: "1"}, {ID: "42"}}}
	assert.True(t, mentions(m, "42"))
	assert.False(t, mentions(m, "7"))
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, splitMessage("   ", 10))
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, splitMessage("aaaa\nbbbb\ncccc", 10))

	long := strings.Repeat("đ", 25)
	chunks := splitMessage(long, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type fakeSender struct {
	errs  []error
	calls int
	sent  []string
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestSendWithRetry(t *testing.T) {
	retryDelay = func() time.Duration { return 0 }
	ctx := context.Background()

	t.Run("retries timeouts", func(t *testing.T) {
		f := &fakeSender{errs: []error{timeoutErr{}}}
		require.NoError(t, sendWithRetry(ctx, f, "c", "hello"))
		assert.Equal(t, 2, f.calls)
		assert.Equal(t, []string{"hello"}, f.sent)
	})

	t.Run("gives up on permanent errors", func(t *testing.T) {
		perm := errors.New("403 forbidden")
		f := &fakeSender{errs: []error{perm}}
		assert.ErrorIs(t, sendWithRetry(ctx, f, "c", "hello"), perm)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("stops after two attempts", func(t *testing.T) {
		f := &fakeSender{errs: []error{timeoutErr{}, timeoutErr{}, nil}}
		assert.Error(t, sendWithRetry(ctx, f, "c", "hello"))
		assert.Equal(t, 2, f.calls)
	})
}

func TestSessionsResolve(t *testing.T) {
	store, err := session.NewStore(db.NewMemoryStore(), session.Options{})
	require.NoError(t, err)
	sessions := NewSessions(store)
	ctx := context.Background()

	id, err := sessions.Resolve(ctx, "42")
	require.NoError(t, err)
	info, err := store.Info(id)
	require.NoError(t, err)
	assert.Equal(t, session.Account, info.Kind)
	assert.Equal(t, "discord:42", info.Account)

	again, err := sessions.Resolve(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, store.Logout(ctx, id))
	fresh, err := sessions.Resolve(ctx, "42")
	require.NoError(t, err)
	assert.NotEqual(t, id, fresh)

	sessions.Forget("42")
	other, err := sessions.Resolve(ctx, "42")
	require.NoError(t, err)
	assert.NotEqual(t, fresh, other)
}
