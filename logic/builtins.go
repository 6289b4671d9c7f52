package logic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/kbukum/graphflow/state"
)

// Built-in function names.
const (
	BuiltinConst  = "const"
	BuiltinEcho   = "echo"
	BuiltinEmit   = "emit"
	BuiltinConcat = "concat"
	BuiltinChunk  = "chunk"
)

// Chunking defaults for BuiltinChunk.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// NewBuiltins returns a registry holding the built-in functions.
func NewBuiltins() *Registry {
	r := NewRegistry()
	r.Register(BuiltinConst, constFunc)
	r.Register(BuiltinEcho, echoFunc)
	r.Register(BuiltinEmit, emitFunc)
	r.Register(BuiltinConcat, concatFunc)
	r.Register(BuiltinChunk, chunkFunc)
	return r
}

// constFunc writes the configured value.
func constFunc(_ context.Context, call Call) (state.Delta, error) {
	return state.Output(call.OutputKey, call.Value), nil
}

// echoFunc writes the latest input value.
func echoFunc(_ context.Context, call Call) (state.Delta, error) {
	return state.Output(call.OutputKey, call.State.Last()), nil
}

// emitFunc appends the configured value to input. A list value is appended
// element by element.
func emitFunc(_ context.Context, call Call) (state.Delta, error) {
	switch v := call.Value.(type) {
	case nil:
		return state.Delta{}, fmt.Errorf("emit requires a value")
	case []any:
		return state.Delta{Input: append([]any(nil), v...)}, nil
	default:
		return state.Delta{Input: []any{v}}, nil
	}
}

// concatFunc joins the input values, separated by the configured value or a
// single space.
func concatFunc(_ context.Context, call Call) (state.Delta, error) {
	sep := " "
	if s, ok := call.Value.(string); ok {
		sep = s
	}
	parts := make([]string, len(call.State.Input))
	for i, v := range call.State.Input {
		parts[i] = fmt.Sprint(v)
	}
	return state.Output(call.OutputKey, strings.Join(parts, sep)), nil
}

// chunkFunc splits the latest input text into overlapping chunks. Value may
// set "size" and "overlap".
func chunkFunc(_ context.Context, call Call) (state.Delta, error) {
	text, ok := call.State.Last().(string)
	if !ok {
		return state.Delta{}, fmt.Errorf("chunk requires the latest input to be text, got %T", call.State.Last())
	}
	size, overlap := DefaultChunkSize, DefaultChunkOverlap
	if opts, ok := call.Value.(map[string]any); ok {
		var err error
		if size, err = intOption(opts, "size", size); err != nil {
			return state.Delta{}, err
		}
		if overlap, err = intOption(opts, "overlap", overlap); err != nil {
			return state.Delta{}, err
		}
	}
	if size <= 0 {
		return state.Delta{}, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return state.Delta{}, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return state.Delta{}, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return state.Delta{}, err
	}
	out := make([]any, len(chunks))
	for i, c := range chunks {
		out[i] = c
	}
	return state.Output(call.OutputKey, out), nil
}

func intOption(opts map[string]any, key string, def int) (int, error) {
	switch v := opts[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("chunk %s must be a whole number, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("chunk %s must be a number, got %T", key, v)
	}
}
