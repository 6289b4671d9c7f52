package expr

import (
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/kbukum/graphflow/state"
)

// Variable names visible to expressions.
const (
	VarInput  = "input"
	VarOutput = "output"
)

var functions = map[string]function.Function{
	"upper":      stdlib.UpperFunc,
	"lower":      stdlib.LowerFunc,
	"trimspace":  stdlib.TrimSpaceFunc,
	"replace":    stdlib.ReplaceFunc,
	"split":      stdlib.SplitFunc,
	"join":       stdlib.JoinFunc,
	"format":     stdlib.FormatFunc,
	"substr":     stdlib.SubstrFunc,
	"strlen":     stdlib.StrlenFunc,
	"length":     stdlib.LengthFunc,
	"concat":     stdlib.ConcatFunc,
	"element":    stdlib.ElementFunc,
	"reverse":    stdlib.ReverseListFunc,
	"keys":       stdlib.KeysFunc,
	"values":     stdlib.ValuesFunc,
	"lookup":     stdlib.LookupFunc,
	"merge":      stdlib.MergeFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"max":        stdlib.MaxFunc,
	"min":        stdlib.MinFunc,
	"abs":        stdlib.AbsoluteFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
}

// Functions returns the names of the available functions in lexical order.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Expression is a parsed expression.
type Expression struct {
	src  string
	expr hclsyntax.Expression
}

// Parse parses src and checks that it only references input and output.
func Parse(src string) (*Expression, error) {
	e, diags := hclsyntax.ParseExpression([]byte(src), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expr: %s", diags.Error())
	}
	if err := checkReferences(e); err != nil {
		return nil, err
	}
	return &Expression{src: src, expr: e}, nil
}

// String returns the source text.
func (e *Expression) String() string { return e.src }

// Evaluate computes the expression against st and returns a Go value.
func (e *Expression) Evaluate(st *state.GraphState) (any, error) {
	ctx, err := evalContext(st)
	if err != nil {
		return nil, err
	}
	v, diags := e.expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expr: %s", diags.Error())
	}
	return FromValue(v)
}

// Template is a parsed string template such as "Hello ${input[0]}".
type Template struct {
	src  string
	expr hclsyntax.Expression
}

// ParseTemplate parses src as an HCL template.
func ParseTemplate(src string) (*Template, error) {
	e, diags := hclsyntax.ParseTemplate([]byte(src), "template", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expr: %s", diags.Error())
	}
	if err := checkReferences(e); err != nil {
		return nil, err
	}
	return &Template{src: src, expr: e}, nil
}

// Render evaluates the template against st. A null result renders as "".
func (t *Template) Render(st *state.GraphState) (string, error) {
	ctx, err := evalContext(st)
	if err != nil {
		return "", err
	}
	v, diags := t.expr.Value(ctx)
	if diags.HasErrors() {
		return "", fmt.Errorf("expr: %s", diags.Error())
	}
	if v.IsNull() {
		return "", nil
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("expr: template result is not a string: %w", err)
	}
	return s.AsString(), nil
}

// Evaluate parses and evaluates src in one step.
func Evaluate(src string, st *state.GraphState) (any, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(st)
}

// Render parses and renders a template in one step.
func Render(src string, st *state.GraphState) (string, error) {
	t, err := ParseTemplate(src)
	if err != nil {
		return "", err
	}
	return t.Render(st)
}

func checkReferences(e hclsyntax.Expression) error {
	for _, traversal := range e.Variables() {
		root := traversal.RootName()
		if root != VarInput && root != VarOutput {
			return fmt.Errorf("expr: unknown variable %q, only %s and %s are available", root, VarInput, VarOutput)
		}
	}
	return nil
}

func evalContext(st *state.GraphState) (*hcl.EvalContext, error) {
	if st == nil {
		st = state.New()
	}
	input, err := ToValue(st.Input)
	if err != nil {
		return nil, fmt.Errorf("expr: converting input: %w", err)
	}
	output, err := ToValue(st.Output)
	if err != nil {
		return nil, fmt.Errorf("expr: converting output: %w", err)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			VarInput:  input,
			VarOutput: output,
		},
		Functions: functions,
	}, nil
}
