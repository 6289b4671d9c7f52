package logic

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/state"
)

func run(t *testing.T, r Resolver, ref string, call Call) (state.Delta, error) {
	t.Helper()
	fn, err := r.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", ref, err)
	}
	if call.State == nil {
		call.State = state.New()
	}
	return fn(context.Background(), call)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref, scheme, body string
		wantErr           bool
	}{
		{"", SchemeGo, BuiltinConst, false},
		{"go:echo", SchemeGo, "echo", false},
		{"expr:upper(input[0])", SchemeExpr, "upper(input[0])", false},
		{"expr:a ? b : c", SchemeExpr, "a ? b : c", false},
		{"echo", "", "", true},
		{"go:", "", "", true},
		{":x", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			scheme, body, err := ParseRef(tc.ref)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if scheme != tc.scheme || body != tc.body {
				t.Fatalf("expected %q/%q, got %q/%q", tc.scheme, tc.body, scheme, body)
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	r := NewResolver(nil, DefaultPolicy())
	st := state.New("x", "y")

	tests := []struct {
		name string
		ref  string
		call Call
		want state.Delta
	}{
		{"default const", "", Call{OutputKey: "A", Value: "hello"}, state.Output("A", "hello")},
		{"const nil", "go:const", Call{OutputKey: "A"}, state.Output("A", nil)},
		{"echo", "go:echo", Call{OutputKey: "B", State: st}, state.Output("B", "y")},
		{"emit scalar", "go:emit", Call{Value: "z"}, state.Delta{Input: []any{"z"}}},
		{"emit list", "go:emit", Call{Value: []any{1, 2}}, state.Delta{Input: []any{1, 2}}},
		{"concat", "go:concat", Call{OutputKey: "C", State: st}, state.Output("C", "x y")},
		{"concat sep", "go:concat", Call{OutputKey: "C", Value: ",", State: st}, state.Output("C", "x,y")},
		{"expr", "expr:upper(join(\"-\", input))", Call{OutputKey: "E", State: st}, state.Output("E", "X-Y")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := run(t, r, tc.ref, tc.call)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		ref    string
	}{
		{"unregistered", DefaultPolicy(), "go:missing"},
		{"malformed", DefaultPolicy(), "nocolon"},
		{"unknown scheme", Policy{AllowedSchemes: []string{"go", "py"}}, "py:print(1)"},
		{"scheme denied", Policy{AllowedSchemes: []string{SchemeGo}}, "expr:1 + 1"},
		{"bad expression", DefaultPolicy(), "expr:upper("},
		{"expression variable", DefaultPolicy(), "expr:env.HOME"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewResolver(nil, tc.policy).Resolve(tc.ref)
			if !errors.HasCode(err, errors.ErrCodeLogicNotFound) {
				t.Fatalf("expected LOGIC_NOT_FOUND, got %v", err)
			}
		})
	}
}

func TestResolve_WrapsFailures(t *testing.T) {
	reg := NewBuiltins()
	boom := stderrors.New("boom")
	reg.Register("fail", func(context.Context, Call) (state.Delta, error) {
		return state.Delta{}, boom
	})
	r := NewResolver(reg, DefaultPolicy())

	_, err := run(t, r, "go:fail", Call{})
	if !errors.HasCode(err, errors.ErrCodeLogicError) {
		t.Fatalf("expected LOGIC_ERROR, got %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Fatal("expected cause to be preserved")
	}

	_, err = run(t, r, "go:emit", Call{})
	if !errors.HasCode(err, errors.ErrCodeLogicError) {
		t.Fatalf("expected LOGIC_ERROR for emit without value, got %v", err)
	}

	_, err = run(t, r, "expr:input[3]", Call{OutputKey: "k"})
	if !errors.HasCode(err, errors.ErrCodeLogicError) {
		t.Fatalf("expected LOGIC_ERROR for failing expression, got %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	got := NewBuiltins().List()
	want := []string{BuiltinChunk, BuiltinConcat, BuiltinConst, BuiltinEcho, BuiltinEmit}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	if !p.Allows(SchemeGo) || !p.Allows(SchemeExpr) || p.Allows("py") {
		t.Fatalf("unexpected policy %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected default policy to validate: %v", err)
	}
	if err := (Policy{AllowedSchemes: []string{"sh"}}).Validate(); err == nil {
		t.Fatal("expected unknown scheme to fail validation")
	}
}

func TestChunk(t *testing.T) {
	r := NewResolver(nil, DefaultPolicy())
	text := "alpha beta gamma delta epsilon zeta eta theta"
	got, err := run(t, r, "go:chunk", Call{
		OutputKey: "chunks",
		Value:     map[string]any{"size": 12, "overlap": 0},
		State:     state.New(text),
	})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	chunks, ok := got.Output["chunks"].([]any)
	if !ok || len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %#v", got.Output["chunks"])
	}
	for _, c := range chunks {
		if s, _ := c.(string); len(s) == 0 || len(s) > 12 {
			t.Fatalf("unexpected chunk %q", c)
		}
	}

	if _, err := run(t, r, "go:chunk", Call{State: state.New(42)}); err == nil {
		t.Fatal("expected error for non-text input")
	}
	if _, err := run(t, r, "go:chunk", Call{
		Value: map[string]any{"size": 5, "overlap": 5},
		State: state.New(text),
	}); err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}

func TestChunk_InvalidOptions(t *testing.T) {
	r := NewResolver(nil, DefaultPolicy())
	tests := []struct {
		name string
		opts map[string]any
	}{
		{"negative size and overlap", map[string]any{"size": -1, "overlap": -5}},
		{"zero size", map[string]any{"size": 0}},
		{"negative overlap", map[string]any{"size": 10, "overlap": -1}},
		{"fractional size", map[string]any{"size": 12.5, "overlap": 0}},
		{"fractional overlap", map[string]any{"size": 12, "overlap": 0.5}},
		{"text size", map[string]any{"size": "12"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, r, "go:chunk", Call{Value: tc.opts, State: state.New("alpha beta gamma")})
			if err == nil {
				t.Fatalf("expected error for options %v", tc.opts)
			}
		})
	}

	got, err := run(t, r, "go:chunk", Call{
		OutputKey: "chunks",
		Value:     map[string]any{"size": float64(12), "overlap": float64(0)},
		State:     state.New("alpha beta gamma delta"),
	})
	if err != nil {
		t.Fatalf("whole float options: %v", err)
	}
	if _, ok := got.Output["chunks"].([]any); !ok {
		t.Fatalf("expected chunks, got %#v", got.Output["chunks"])
	}
}
