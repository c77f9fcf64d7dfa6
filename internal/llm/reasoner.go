package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/averbier/go-topic-bot/internal/config"
	"github.com/averbier/go-topic-bot/internal/domain"
)

// ErrEmptyAnalysis indicates the reasoning model returned no choices.
var ErrEmptyAnalysis = errors.New("reasoner returned no completion")

// chatCompleter is the slice of the OpenAI client the reasoner needs.
// Narrowing the dependency keeps tests free of network access.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Reasoner analyzes compiled conversation history with an OpenAI chat model.
type Reasoner struct {
	client chatCompleter
	model  string
}

// NewReasoner builds a Reasoner from configuration.
func NewReasoner(cfg config.OpenAIConfig) *Reasoner {
	return &Reasoner{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

// Analyze sends the compiled turns to the chat model and returns its reply.
func (r *Reasoner) Analyze(ctx context.Context, turns []domain.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openAIRole(t.Role),
			Content: t.Content,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnalysis
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role string) string {
	switch role {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
