package expr

import (
	"reflect"
	"strings"
	"testing"

	"github.com/kbukum/graphflow/state"
)

func sampleState() *state.GraphState {
	st := state.New("hello world", "second")
	st.Output["draft"] = "v1"
	st.Output["scores"] = map[string]any{"a": 1, "b": 2.5}
	st.Output["tags"] = []any{"x", "y"}
	return st
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"literal", `"x"`, "x"},
		{"index", `input[0]`, "hello world"},
		{"upper", `upper(input[1])`, "SECOND"},
		{"join", `join("+", input)`, "hello world+second"},
		{"length", `length(input)`, 2},
		{"attribute", `output.draft`, "v1"},
		{"nested", `output.scores.b`, 2.5},
		{"arithmetic", `output.scores.a + 1`, 2},
		{"conditional", `length(output.tags) > 1 ? "many" : "few"`, "many"},
		{"template", `"${output.draft}-final"`, "v1-final"},
		{"tuple", `[for s in output.tags : upper(s)]`, []any{"X", "Y"}},
		{"object", `{ n = length(input) }`, map[string]any{"n": 2}},
		{"split", `split(" ", input[0])`, []any{"hello", "world"}},
		{"json", `jsonencode(output.tags)`, `["x","y"]`},
		{"null", `null`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.src, sampleState())
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tc.src, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `upper(`, "expr:"},
		{"unknown variable", `env.HOME`, "unknown variable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluate_RuntimeErrors(t *testing.T) {
	for _, src := range []string{`file("/etc/passwd")`, `input[5]`, `output.missing`} {
		t.Run(src, func(t *testing.T) {
			if _, err := Evaluate(src, sampleState()); err == nil {
				t.Fatalf("expected error for %q", src)
			}
		})
	}
}

func TestExpression_Reusable(t *testing.T) {
	e, err := Parse(`length(input)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.String() != `length(input)` {
		t.Fatalf("unexpected source %q", e.String())
	}
	for i, st := range []*state.GraphState{state.New(), state.New("a"), state.New("a", "b")} {
		got, err := e.Evaluate(st)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != i {
			t.Fatalf("expected %d, got %v", i, got)
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain", "You are a helpful assistant.", "You are a helpful assistant."},
		{"interpolation", "Summarise ${input[0]}", "Summarise hello world"},
		{"number", "Count: ${length(input)}", "Count: 2"},
		{"directive", `%{ for t in output.tags }${t};%{ endfor }`, "x;y;"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.src, sampleState())
			if err != nil {
				t.Fatalf("Render(%q): %v", tc.src, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRender_NilState(t *testing.T) {
	got, err := Render("items: ${length(input)}", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "items: 0" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestParseTemplate_UnknownVariable(t *testing.T) {
	if _, err := ParseTemplate("${secrets.key}"); err == nil {
		t.Fatal("expected error for unknown variable")
	}
}

func TestFunctions_Sorted(t *testing.T) {
	names := Functions()
	if len(names) == 0 {
		t.Fatal("expected functions")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("expected lexical order, got %v", names)
		}
	}
}

func TestValueConversion(t *testing.T) {
	in := map[string]any{
		"s":    "x",
		"b":    true,
		"i":    3,
		"f":    0.5,
		"list": []string{"a"},
		"m":    map[string]string{"k": "v"},
		"nil":  nil,
		"deep": map[string]any{"l": []any{1, "two"}},
	}
	v, err := ToValue(in)
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}
	got, err := FromValue(v)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	want := map[string]any{
		"s":    "x",
		"b":    true,
		"i":    3,
		"f":    0.5,
		"list": []any{"a"},
		"m":    map[string]any{"k": "v"},
		"nil":  nil,
		"deep": map[string]any{"l": []any{1, "two"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestToValue_StructViaJSON(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}
	v, err := ToValue(point{X: 4})
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}
	got, _ := FromValue(v)
	if !reflect.DeepEqual(got, map[string]any{"x": 4}) {
		t.Fatalf("unexpected value %#v", got)
	}
}
