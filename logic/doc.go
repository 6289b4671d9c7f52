// Package logic resolves the executable logic of function nodes.
//
// A logic reference has the form "scheme:body". Two schemes exist:
//
//   - go:<name> runs a trusted Go function registered in a Registry.
//   - expr:<expression> evaluates a restricted HCL expression (see package
//     expr) and writes the result to the node's output key.
//
// A Policy lists the schemes a Resolver may serve. References to other
// schemes resolve to LOGIC_NOT_FOUND. The policy is the only isolation
// between graph authors and the process; expression logic cannot perform
// I/O, while go logic runs with full process privileges.
package logic
