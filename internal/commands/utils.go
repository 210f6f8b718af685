package commands

import (
	"context"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const maxContentLen = 2000

// SessionResolver maps a Discord user to a live session ID.
type SessionResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// InteractionUserID returns the invoking user for guild and DM interactions.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// clip shortens content to what a single interaction reply accepts.
func clip(content string) string {
	if utf8.RuneCountInString(content) <= maxContentLen {
		return content
	}
	r := []rune(content)
	return string(r[:maxContentLen-1]) + "…"
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: clip(content)}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}
