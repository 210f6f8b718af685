package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyCompletion = errors.New("completion returned no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type Completion struct {
	Text  string
	Usage Usage
}

// Completer is the language model collaborator. history is sent between the
// system prompt and userText; either may be empty.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, userText string) (*Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt string, history []Message, userText string) (*Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt string, history []Message, userText string) (*Completion, error) {
	return f(ctx, systemPrompt, history, userText)
}
