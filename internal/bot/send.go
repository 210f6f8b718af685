package bot

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const maxMessageLen = 2000

// messageSender is the part of discordgo.Session used to post replies.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var retryDelay = func() time.Duration {
	return time.Duration(300+rand.Intn(500)) * time.Millisecond
}

func sendWithRetry(ctx context.Context, s messageSender, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := s.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(retryDelay())
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var buffer strings.Builder
	n := 0
	flush := func() {
		if buffer.Len() > 0 {
			chunks = append(chunks, buffer.String())
			buffer.Reset()
			n = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
		}
		size := utf8.RuneCountInString(line)
		if n > 0 && n+1+size > limit {
			flush()
		}
		if n > 0 {
			buffer.WriteString("\n")
			n++
		}
		buffer.WriteString(line)
		n += size
	}
	flush()
	return chunks
}
