package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/kbukum/graphflow/errors"
)

// OpenAI is a Completer backed by the OpenAI chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI provider. BaseURL may point at any compatible
// endpoint.
func NewOpenAI(pc ProviderConfig, model string, maxTokens int) (*OpenAI, error) {
	if pc.APIKey == "" {
		return nil, missingKey(ProviderOpenAI)
	}
	cfg := openai.DefaultConfig(pc.APIKey)
	if pc.BaseURL != "" {
		cfg.BaseURL = pc.BaseURL
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func newOpenAIFromConfig(cfg *Config) (Completer, error) {
	return NewOpenAI(cfg.OpenAI, cfg.modelFor(ProviderOpenAI, cfg.OpenAI, DefaultOpenAIModel), cfg.MaxTokens)
}

// Name implements Completer.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1),
	}
	if req.Model != "" {
		chat.Model = req.Model
	}
	if req.SystemPrompt != "" {
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content})
	}
	if req.Temperature != nil {
		chat.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		chat.MaxCompletionTokens = req.MaxTokens
	} else if o.maxTokens > 0 {
		chat.MaxCompletionTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Upstream(ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Upstream(ProviderOpenAI, fmt.Errorf("response contained no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
