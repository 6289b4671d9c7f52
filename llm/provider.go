package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Completer produces a completion for a request.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Factory builds a provider from the routing configuration.
type Factory func(cfg *Config) (Completer, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		ProviderOpenAI:    newOpenAIFromConfig,
		ProviderAnthropic: newAnthropicFromConfig,
		ProviderEcho:      func(*Config) (Completer, error) { return Echo{}, nil },
	}
)

// RegisterProvider makes a provider available to every Router under name.
func RegisterProvider(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names in lexical order.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Echo replies with the last user message, or the system prompt when there
// is none. It never calls the network.
type Echo struct{}

// Name implements Completer.
func (Echo) Name() string { return ProviderEcho }

// Complete implements Completer.
func (Echo) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg := req.LastUserMessage(); msg != "" {
		return msg, nil
	}
	return req.SystemPrompt, nil
}

func missingKey(provider string) error {
	return fmt.Errorf("llm: %s api key is not configured", provider)
}
