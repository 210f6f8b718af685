package commands

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/ledger"
)

func TestGetCommands(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range GetCommands() {
		assert.False(t, seen[cmd.Name], "duplicate command %s", cmd.Name)
		seen[cmd.Name] = true
		assert.NotEmpty(t, cmd.Description)
	}
	for _, name := range []string{"report", "stats", "reset-memory", "reset-expenses"} {
		assert.True(t, seen[name], name)
	}
}

func TestInteractionUserID(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "1"}},
	}}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "2"},
	}}
	empty := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	assert.Equal(t, "1", InteractionUserID(guild))
	assert.Equal(t, "2", InteractionUserID(dm))
	assert.Equal(t, "", InteractionUserID(empty))
}

func TestStringOption(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "format", Type: discordgo.ApplicationCommandOptionString, Value: "summary"},
		},
	}
	assert.Equal(t, "summary", stringOption(data, "format"))
	assert.Equal(t, "", stringOption(data, "missing"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "ngắn", clip("ngắn"))

	long := strings.Repeat("ồ", maxContentLen+10)
	got := clip(long)
	assert.Equal(t, maxContentLen, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestFormatStats(t *testing.T) {
	st := &assistant.SessionStats{
		SessionID: "user_1",
		Kind:      "account",
		Degraded:  true,
		Stats: ledger.Stats{
			Counters:        ledger.Counters{MessageCount: 12, SummariesCreated: 1, TokensSaved: 300},
			ActiveTurns:     2,
			Summaries:       1,
			ExpenseCount:    3,
			TotalAmount:     1500000,
			EfficiencyRatio: "0.75",
		},
	}

	out := formatStats(st)
	assert.Contains(t, out, "Tin nhắn: 12")
	assert.Contains(t, out, "Token tiết kiệm: 300 (tỉ lệ 0.75)")
	assert.Contains(t, out, "1,500,000 VND")
	assert.Contains(t, out, "chưa được lưu")
}
