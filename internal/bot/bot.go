package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/commands"
	"github.com/susu3304/expensebot/internal/session"
)

const chatTimeout = 90 * time.Second

type Bot struct {
	session   *discordgo.Session
	assistant *assistant.Service
	sessions  *Sessions
	logger    *slog.Logger
}

func New(token string, store *session.Store, svc *assistant.Service) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:   dg,
		assistant: svc,
		sessions:  NewSessions(store),
		logger:    slog.Default().With("component", "bot"),
	}

	// Register event handlers
	dg.AddHandler(bot.onReady)
	dg.AddHandler(bot.onGuildCreate)
	dg.AddHandler(bot.onMessageCreate)
	dg.AddHandler(bot.onInteractionCreate)

	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.logger.Info("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("connected", "user", event.User.Username)

	// Global commands cover direct messages
	if err := b.registerCommands(""); err != nil {
		b.logger.Error("failed to register global commands", "error", err)
	}
	for _, guild := range event.Guilds {
		if err := b.registerCommands(guild.ID); err != nil {
			b.logger.Error("failed to register guild commands", "guild", guild.ID, "error", err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	if err := b.registerCommands(event.ID); err != nil {
		b.logger.Error("failed to register guild commands", "guild", event.ID, "error", err)
	}
}

func (b *Bot) registerCommands(guildID string) error {
	// Delete existing commands and register new ones
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, commands.GetCommands())
	return err
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author == nil || m.Author.Bot {
		return
	}

	botID := s.State.User.ID
	if m.GuildID != "" && !mentions(m.Message, botID) {
		return
	}
	text := stripMention(m.Content, botID)
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	sessionID, err := b.sessions.Resolve(ctx, m.Author.ID)
	if err != nil {
		b.logger.Error("failed to resolve session", "user", m.Author.ID, "error", err)
		return
	}

	s.ChannelTyping(m.ChannelID)
	resp, err := b.assistant.Chat(ctx, assistant.ChatRequest{
		SessionID:      sessionID,
		Message:        text,
		IdempotencyKey: "discord:" + m.ID,
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		// The janitor retired the session between resolve and chat.
		b.sessions.Forget(m.Author.ID)
		return
	}
	if err != nil {
		b.logger.Error("chat failed", "user", m.Author.ID, "error", err)
		resp = &assistant.Response{ResponseText: "Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại."}
	}

	for _, chunk := range splitMessage(resp.ResponseText, maxMessageLen) {
		if err := sendWithRetry(ctx, s, m.ChannelID, chunk); err != nil {
			b.logger.Error("failed to send reply", "channel", m.ChannelID, "error", err)
			return
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "report":
		commands.HandleReport(s, i, b.assistant, b.sessions)
	case "stats":
		commands.HandleStats(s, i, b.assistant, b.sessions)
	case "reset-memory":
		commands.HandleResetMemory(s, i, b.assistant, b.sessions)
	case "reset-expenses":
		commands.HandleResetExpenses(s, i, b.assistant, b.sessions)
	}
}

func mentions(m *discordgo.Message, userID string) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// stripMention removes both mention forms of userID from content.
func stripMention(content, userID string) string {
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}
