// Package llm routes model-completion requests from agent nodes to a
// provider.
//
// Providers implement Completer. Three are built in:
//
//   - openai, backed by github.com/sashabaranov/go-openai
//   - anthropic, backed by github.com/tmc/langchaingo
//   - echo, an offline provider that replies with the last message
//
// A Router builds providers lazily from Config and decorates them with a
// per-call timeout, a shared rate limiter and retries:
//
//	router := llm.NewRouter(cfg)
//	text, err := router.Complete(ctx, "openai", llm.CompletionRequest{
//		SystemPrompt: "You are terse.",
//		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
//	})
//
// Provider failures are returned as UPSTREAM_ERROR AppErrors.
package llm
