// Package state holds the execution-time state of a graph run and the
// reducers that merge per-node deltas into it.
//
// A GraphState has two fields: an ordered input sequence and a keyed output
// mapping. The default schema appends to input and merges output with
// right-biased overwrite; a Schema can declare other reducer kinds, and is
// validated before a run starts.
package state
