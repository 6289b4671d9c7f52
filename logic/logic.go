package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/expr"
	"github.com/kbukum/graphflow/state"
)

// Schemes understood by the resolver.
const (
	SchemeGo   = "go"
	SchemeExpr = "expr"
)

// DefaultRef is used when a function node names no logic.
const DefaultRef = SchemeGo + ":" + BuiltinConst

// Call carries the arguments of one logic invocation.
type Call struct {
	// Node is the name of the invoking node.
	Node string
	// OutputKey is the output key the logic should write.
	OutputKey string
	// Value is the static value configured on the node.
	Value any
	// State is a read-only snapshot of the run state.
	State *state.GraphState
}

// Func is resolved node logic. It must not modify call.State.
type Func func(ctx context.Context, call Call) (state.Delta, error)

// Resolver maps logic references to executable functions.
type Resolver interface {
	Resolve(ref string) (Func, error)
}

// ParseRef splits a reference into scheme and body. An empty reference is
// DefaultRef.
func ParseRef(ref string) (scheme, body string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultRef
	}
	scheme, body, ok := strings.Cut(ref, ":")
	if !ok || scheme == "" || strings.TrimSpace(body) == "" {
		return "", "", fmt.Errorf("logic reference %q must have the form scheme:body", ref)
	}
	return scheme, body, nil
}

// Policy lists the schemes a resolver may serve.
type Policy struct {
	AllowedSchemes []string `yaml:"allowed_schemes" mapstructure:"allowed_schemes"`
}

// DefaultPolicy allows go and expr logic.
func DefaultPolicy() Policy {
	return Policy{AllowedSchemes: []string{SchemeGo, SchemeExpr}}
}

// Allows reports whether scheme is permitted.
func (p Policy) Allows(scheme string) bool {
	for _, s := range p.AllowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Validate checks that the policy only names known schemes.
func (p Policy) Validate() error {
	for _, s := range p.AllowedSchemes {
		if s != SchemeGo && s != SchemeExpr {
			return fmt.Errorf("logic.allowed_schemes: unknown scheme %q", s)
		}
	}
	return nil
}

// ScopedResolver resolves references against a Registry under a Policy.
type ScopedResolver struct {
	registry *Registry
	policy   Policy
}

var _ Resolver = (*ScopedResolver)(nil)

// NewResolver creates a resolver. A nil registry means NewBuiltins().
func NewResolver(registry *Registry, policy Policy) *ScopedResolver {
	if registry == nil {
		registry = NewBuiltins()
	}
	return &ScopedResolver{registry: registry, policy: policy}
}

// Resolve returns the function for ref. Errors are LOGIC_NOT_FOUND; failures
// of the returned function are wrapped as LOGIC_ERROR.
func (r *ScopedResolver) Resolve(ref string) (Func, error) {
	scheme, body, err := ParseRef(ref)
	if err != nil {
		return nil, errors.LogicNotFound(ref, err.Error())
	}
	if ref == "" {
		ref = DefaultRef
	}
	if !r.policy.Allows(scheme) {
		return nil, errors.LogicNotFound(ref, fmt.Sprintf("scheme %q is not allowed", scheme))
	}

	var fn Func
	switch scheme {
	case SchemeGo:
		registered, ok := r.registry.Get(body)
		if !ok {
			return nil, errors.LogicNotFound(ref, "function is not registered")
		}
		fn = registered
	case SchemeExpr:
		e, err := expr.Parse(body)
		if err != nil {
			return nil, errors.LogicNotFound(ref, err.Error())
		}
		fn = expressionFunc(e)
	default:
		return nil, errors.LogicNotFound(ref, fmt.Sprintf("scheme %q is not supported", scheme))
	}
	return wrapErrors(ref, fn), nil
}

func expressionFunc(e *expr.Expression) Func {
	return func(_ context.Context, call Call) (state.Delta, error) {
		v, err := e.Evaluate(call.State)
		if err != nil {
			return state.Delta{}, err
		}
		return state.Output(call.OutputKey, v), nil
	}
}

func wrapErrors(ref string, fn Func) Func {
	return func(ctx context.Context, call Call) (state.Delta, error) {
		delta, err := fn(ctx, call)
		if err != nil {
			return state.Delta{}, errors.LogicError(ref, err)
		}
		return delta, nil
	}
}
