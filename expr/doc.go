// Package expr evaluates restricted HCL expressions and templates against a
// graph state.
//
// Expressions see two variables, input (a tuple) and output (an object), and
// a fixed library of pure functions. Nothing in the library performs I/O.
//
//	e, _ := expr.Parse(`upper(join(" ", input))`)
//	v, _ := e.Evaluate(st)
//
//	tpl, _ := expr.ParseTemplate("Summarise ${output.draft}")
//	s, _ := tpl.Render(st)
package expr
