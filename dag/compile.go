package dag

import (
	"slices"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/state"
)

// Plan is the compiled, immutable run order of a graph snapshot.
type Plan struct {
	GraphID string
	Version uint64
	// Stages lists node names per stage, each stage sorted lexically. Nodes of
	// stage i depend only on nodes of earlier stages.
	Stages [][]string
	// Nodes holds the NodeSpec of every planned node.
	Nodes map[string]graph.NodeSpec
	// Predecessors lists the planned direct predecessors of each node, sorted.
	Predecessors map[string][]string
	Schema       state.Schema
}

// Size returns the number of planned nodes.
func (p *Plan) Size() int { return len(p.Nodes) }

// StageOf returns the stage index of node, or -1.
func (p *Plan) StageOf(node string) int {
	for i, stage := range p.Stages {
		if _, found := slices.BinarySearch(stage, node); found {
			return i
		}
	}
	return -1
}

// Compile layers snap into stages with Kahn's algorithm. When the snapshot
// designates entry nodes only the nodes reachable from them are planned;
// otherwise every node is. Marker edges never constrain the order.
func Compile(snap *graph.Snapshot, schema state.Schema) (*Plan, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	included := plannedNodes(snap)

	inDegree := make(map[string]int, len(included))
	dependents := make(map[string][]string)
	predecessors := make(map[string][]string, len(included))
	for name := range included {
		inDegree[name] = 0
	}
	for _, e := range snap.Edges {
		if e.IsMarker() || !included[e.From] || !included[e.To] {
			continue
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
		predecessors[e.To] = append(predecessors[e.To], e.From)
	}
	for name := range predecessors {
		slices.Sort(predecessors[name])
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var stages [][]string
	visited := 0
	for len(queue) > 0 {
		slices.Sort(queue)
		stages = append(stages, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(included) {
		return nil, errors.CycleDetected(residualCycle(inDegree, predecessors))
	}

	nodes := make(map[string]graph.NodeSpec, len(included))
	for name := range included {
		nodes[name] = snap.Nodes[name].Clone()
	}
	return &Plan{
		GraphID:      snap.ID,
		Version:      snap.Version,
		Stages:       stages,
		Nodes:        nodes,
		Predecessors: predecessors,
		Schema:       schema,
	}, nil
}

func plannedNodes(snap *graph.Snapshot) map[string]bool {
	included := make(map[string]bool, len(snap.Nodes))
	entries := snap.Entries()
	if len(entries) == 0 {
		for name := range snap.Nodes {
			included[name] = true
		}
		return included
	}

	successors := make(map[string][]string)
	for _, e := range snap.Edges {
		if !e.IsMarker() {
			successors[e.From] = append(successors[e.From], e.To)
		}
	}
	stack := slices.Clone(entries)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if included[name] {
			continue
		}
		included[name] = true
		stack = append(stack, successors[name]...)
	}
	return included
}

// residualCycle extracts one cycle from the nodes Kahn's algorithm could not
// release. Each of them still has an unreleased predecessor, so walking
// predecessors from any of them must revisit a node.
func residualCycle(inDegree map[string]int, predecessors map[string][]string) []string {
	var start string
	for name, deg := range inDegree {
		if deg > 0 && (start == "" || name < start) {
			start = name
		}
	}

	seen := make(map[string]int)
	var walk []string
	for cur := start; ; {
		if at, ok := seen[cur]; ok {
			cycle := slices.Clone(walk[at:])
			slices.Reverse(cycle)
			return append(cycle, cycle[0])
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)
		for _, p := range predecessors[cur] {
			if inDegree[p] > 0 {
				cur = p
				break
			}
		}
	}
}
