// Package graph models workflow graph definitions and the structural
// operations that edit them.
//
// A Definition owns a set of named nodes and a set of directed edges. Every
// mutation either applies fully or leaves the definition untouched; edges
// that would introduce a cycle are rejected and rolled back.
//
// Positional insertion splices a node between two neighbours:
//
//	d.AddNode(spec, graph.Position{BeforeNode: "A", AfterNode: "B"})
//
// adds A → new → B and removes a direct A → B edge if one exists.
//
// The reserved names "start" and "end" may appear as edge endpoints to
// designate entry and terminal nodes.
package graph
