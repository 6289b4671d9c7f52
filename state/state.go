package state

import "maps"

// GraphState is the accumulated state of one graph run.
type GraphState struct {
	Input  []any          `json:"input" yaml:"input"`
	Output map[string]any `json:"output" yaml:"output"`
}

// New creates a GraphState whose input is a copy of seed and whose output is empty.
func New(seed ...any) *GraphState {
	input := make([]any, len(seed))
	copy(input, seed)
	return &GraphState{Input: input, Output: make(map[string]any)}
}

// Clone returns a copy that can be read concurrently while the original is
// merged into. Values themselves are shared.
func (s *GraphState) Clone() *GraphState {
	if s == nil {
		return New()
	}
	input := make([]any, len(s.Input))
	copy(input, s.Input)
	output := make(map[string]any, len(s.Output))
	maps.Copy(output, s.Output)
	return &GraphState{Input: input, Output: output}
}

// Last returns the most recent input value, or nil when input is empty.
func (s *GraphState) Last() any {
	if len(s.Input) == 0 {
		return nil
	}
	return s.Input[len(s.Input)-1]
}

// Delta is the partial update returned by a single node.
type Delta struct {
	Input  []any          `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`
}

// IsEmpty reports whether the delta carries no update.
func (d Delta) IsEmpty() bool {
	return len(d.Input) == 0 && len(d.Output) == 0
}

// Output returns a delta that writes a single output key.
func Output(key string, value any) Delta {
	return Delta{Output: map[string]any{key: value}}
}
