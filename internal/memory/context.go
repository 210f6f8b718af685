package memory

import (
	"strings"

	"github.com/susu3304/expensebot/internal/llm"
)

// BuildContext assembles the prompt history: the system prompt, the newest
// maxSummaries digests and the turns still in the buffer.
func BuildContext(systemPrompt string, digests []Digest, turns []Turn, maxSummaries int) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+2)
	if systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}

	if maxSummaries > 0 && len(digests) > maxSummaries {
		digests = digests[len(digests)-maxSummaries:]
	}
	if maxSummaries > 0 && len(digests) > 0 {
		var sb strings.Builder
		sb.WriteString("LỊCH SỬ HỘI THOẠI ĐÃ TÓM TẮT:")
		for _, d := range digests {
			sb.WriteString("\n• ")
			sb.WriteString(strings.ReplaceAll(d.Text, "\n", "; "))
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	}

	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
