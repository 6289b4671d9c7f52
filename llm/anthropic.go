package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/kbukum/graphflow/errors"
)

// Anthropic is a Completer backed by the Anthropic messages API.
type Anthropic struct {
	llm       *anthropic.LLM
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(pc ProviderConfig, model string, maxTokens int) (*Anthropic, error) {
	if pc.APIKey == "" {
		return nil, missingKey(ProviderAnthropic)
	}
	opts := []anthropic.Option{
		anthropic.WithToken(pc.APIKey),
		anthropic.WithModel(model),
	}
	if pc.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
	}
	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: creating anthropic client: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicTokens
	}
	return &Anthropic{llm: client, model: model, maxTokens: maxTokens}, nil
}

func newAnthropicFromConfig(cfg *Config) (Completer, error) {
	return NewAnthropic(cfg.Anthropic, cfg.modelFor(ProviderAnthropic, cfg.Anthropic, DefaultModel), cfg.MaxTokens)
}

// Name implements Completer.
func (a *Anthropic) Name() string { return ProviderAnthropic }

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(langchainRole(m.Role), m.Content))
	}

	model := a.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := a.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	opts := []llms.CallOption{llms.WithModel(model), llms.WithMaxTokens(maxTokens)}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}

	resp, err := a.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Upstream(ProviderAnthropic, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Upstream(ProviderAnthropic, fmt.Errorf("response contained no choices"))
	}
	return resp.Choices[0].Content, nil
}

func langchainRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
