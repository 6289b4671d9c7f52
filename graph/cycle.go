package graph

import (
	"maps"
	"slices"
)

const (
	white = iota
	grey
	black
)

// findCycle walks the graph depth-first in lexical order and returns the
// first cycle found as a path whose last element repeats the first, or nil.
// Marker edges cannot take part in a cycle and are skipped.
func (d *Definition) findCycle() []string {
	adj := make(map[string][]string, len(d.nodes))
	for e := range d.edges {
		if e.IsMarker() {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
	}
	for _, next := range adj {
		slices.Sort(next)
	}

	color := make(map[string]int, len(d.nodes))
	var stack []string

	var visit func(string) []string
	visit = func(n string) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, m := range adj[n] {
			switch color[m] {
			case grey:
				i := slices.Index(stack, m)
				path := slices.Clone(stack[i:])
				return append(path, m)
			case white:
				if path := visit(m); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for _, n := range slices.Sorted(maps.Keys(d.nodes)) {
		if color[n] == white {
			if path := visit(n); path != nil {
				return path
			}
		}
	}
	return nil
}
