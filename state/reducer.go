package state

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kbukum/graphflow/errors"
)

// Kind names a reducer strategy.
type Kind string

const (
	// KindAppend concatenates sequences in merge order.
	KindAppend Kind = "append"
	// KindReplace keeps the last non-empty update.
	KindReplace Kind = "replace"
	// KindMerge overlays mappings; later keys win.
	KindMerge Kind = "merge"
)

// Field names of GraphState.
const (
	FieldInput  = "input"
	FieldOutput = "output"
)

// Field declares the reducer used for one state field.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Schema is the declared reducer set for a run.
type Schema struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// DefaultSchema appends to input and merges output.
func DefaultSchema() Schema {
	return Schema{Fields: []Field{
		{Name: FieldInput, Kind: KindAppend},
		{Name: FieldOutput, Kind: KindMerge},
	}}
}

var allowedKinds = map[string][]Kind{
	FieldInput:  {KindAppend, KindReplace},
	FieldOutput: {KindMerge, KindReplace},
}

// Validate checks that every field is known, declared once, and uses a kind
// that fits its shape.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		kinds, ok := allowedKinds[f.Name]
		if !ok {
			return errors.InvalidInput("schema", fmt.Sprintf("unknown state field %q", f.Name))
		}
		if seen[f.Name] {
			return errors.InvalidInput("schema", fmt.Sprintf("field %q declared twice", f.Name))
		}
		seen[f.Name] = true
		if !slices.Contains(kinds, f.Kind) {
			return errors.InvalidInput("schema",
				fmt.Sprintf("reducer %q does not apply to field %q", f.Kind, f.Name))
		}
	}
	return nil
}

// kind returns the reducer declared for field, falling back to the default.
func (s Schema) kind(field string) Kind {
	for _, f := range s.Fields {
		if f.Name == field {
			return f.Kind
		}
	}
	if field == FieldInput {
		return KindAppend
	}
	return KindMerge
}

// Reducer merges deltas into a state according to a Schema.
type Reducer struct {
	schema Schema
}

// NewReducer validates schema and returns a Reducer for it.
func NewReducer(schema Schema) (*Reducer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Reducer{schema: schema}, nil
}

// Schema returns the schema the reducer was built from.
func (r *Reducer) Schema() Schema { return r.schema }

// Apply merges deltas into base in the given order and returns the new state.
// base is not modified.
func (r *Reducer) Apply(base *GraphState, deltas ...Delta) *GraphState {
	next := base.Clone()
	for _, d := range deltas {
		switch r.schema.kind(FieldInput) {
		case KindReplace:
			if len(d.Input) > 0 {
				next.Input = slices.Clone(d.Input)
			}
		default:
			next.Input = AppendList(next.Input, d.Input)
		}
		switch r.schema.kind(FieldOutput) {
		case KindReplace:
			if len(d.Output) > 0 {
				next.Output = maps.Clone(d.Output)
			}
		default:
			next.Output = UpdateDict(next.Output, d.Output)
		}
	}
	return next
}

// AppendList returns the concatenation of a and b without modifying either.
func AppendList(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// UpdateDict returns a overlaid with b without modifying either. Keys present
// in both take the value from b.
func UpdateDict(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
