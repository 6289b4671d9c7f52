package llm

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/resilience"
)

// Router selects and lazily builds providers by name.
type Router struct {
	cfg     Config
	limiter *resilience.Limiter
	log     *logger.Logger

	mu        sync.Mutex
	providers map[string]Completer
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithProvider installs a ready-made provider under its name, bypassing the
// registered factory.
func WithProvider(c Completer) RouterOption {
	return func(r *Router) { r.providers[c.Name()] = r.decorate(c) }
}

// WithLogger sets the router logger.
func WithLogger(log *logger.Logger) RouterOption {
	return func(r *Router) { r.log = log }
}

// NewRouter creates a router. cfg is copied and defaulted.
func NewRouter(cfg Config, opts ...RouterOption) *Router {
	cfg.ApplyDefaults()
	r := &Router{
		cfg:       cfg,
		limiter:   resilience.NewLimiter(cfg.RateLimit),
		log:       logger.WithComponent("llm"),
		providers: make(map[string]Completer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultProvider returns the provider used when a request names none.
func (r *Router) DefaultProvider() string { return r.cfg.Provider }

// Completer returns the decorated provider for name. An empty name selects
// the default provider.
func (r *Router) Completer(name string) (Completer, error) {
	if name == "" {
		name = r.cfg.Provider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.providers[name]; ok {
		return c, nil
	}

	factory, ok := lookupFactory(name)
	if !ok {
		return nil, errors.InvalidInput("provider", "unknown model provider "+name)
	}
	c, err := factory(&r.cfg)
	if err != nil {
		unavailable := errors.Upstream(name, err)
		unavailable.Retryable = false
		return nil, unavailable
	}
	decorated := r.decorate(c)
	r.providers[name] = decorated
	r.log.Debug("model provider initialized", map[string]interface{}{logger.FieldProvider: name})
	return decorated, nil
}

// Complete routes req to the named provider.
func (r *Router) Complete(ctx context.Context, provider string, req CompletionRequest) (string, error) {
	c, err := r.Completer(provider)
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, req)
}

func (r *Router) decorate(c Completer) Completer {
	retryCfg := r.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		r.log.Warn("model call failed, retrying", map[string]interface{}{
			logger.FieldProvider: c.Name(),
			"attempt":            attempt,
			"backoff":            backoff.String(),
			logger.FieldError:    err.Error(),
		})
	}
	return WithRetry(WithRateLimit(WithTimeout(c, r.cfg.Timeout), r.limiter), retryCfg)
}

// WithTimeout bounds each call to c by d. Zero disables the bound.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return &timeoutCompleter{inner: c, timeout: d}
}

type timeoutCompleter struct {
	inner   Completer
	timeout time.Duration
}

func (t *timeoutCompleter) Name() string { return t.inner.Name() }

// Complete reports its own deadline as a retryable TIMEOUT; a done parent
// context is returned unchanged.
func (t *timeoutCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	text, err := t.inner.Complete(callCtx, req)
	if err != nil && ctx.Err() == nil && callCtx.Err() != nil {
		return "", errors.Timeout("model call", "").WithDetail(logger.FieldProvider, t.inner.Name())
	}
	return text, err
}

// WithRateLimit makes every call to c wait for the limiter.
func WithRateLimit(c Completer, l *resilience.Limiter) Completer {
	return &limitedCompleter{inner: c, limiter: l}
}

type limitedCompleter struct {
	inner   Completer
	limiter *resilience.Limiter
}

func (l *limitedCompleter) Name() string { return l.inner.Name() }

func (l *limitedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Complete(ctx, req)
}

// WithRetry retries retryable failures of c.
func WithRetry(c Completer, cfg resilience.RetryConfig) Completer {
	return &retryCompleter{inner: c, cfg: cfg}
}

type retryCompleter struct {
	inner Completer
	cfg   resilience.RetryConfig
}

func (r *retryCompleter) Name() string { return r.inner.Name() }

func (r *retryCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return resilience.Retry(ctx, r.cfg, func() (string, error) {
		return r.inner.Complete(ctx, req)
	})
}
