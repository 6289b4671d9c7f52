// Package visualize renders graph snapshots as deterministic text.
package visualize

import (
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/state"
)

const arrow = " ──▶ "

// Render returns the text depiction of snap: a header, the node table, the
// stage layout, the edge list and the isolated nodes. Equal snapshots render
// identically.
func Render(snap *graph.Snapshot) string {
	var b strings.Builder
	_ = Write(&b, snap)
	return b.String()
}

// Write renders snap to w.
func Write(w io.Writer, snap *graph.Snapshot) error {
	p := &printer{w: w}

	title := snap.Name
	if title == "" {
		title = "(unnamed)"
	}
	p.printf("Graph %s [%s] v%d\n", title, snap.ID, snap.Version)
	if snap.Description != "" {
		p.printf("%s\n", snap.Description)
	}
	p.printf("%d nodes, %d edges\n", len(snap.Nodes), len(snap.Edges))

	names := snap.NodeNames()
	p.section("Nodes", len(names), func(i int) string {
		return describe(snap.Nodes[names[i]])
	})

	plan, err := dag.Compile(snap, state.DefaultSchema())
	if err != nil {
		p.section("Stages", 1, func(int) string { return "unavailable: " + err.Error() })
	} else {
		p.section("Stages", len(plan.Stages), func(i int) string {
			return fmt.Sprintf("%d: %s", i, strings.Join(plan.Stages[i], ", "))
		})
	}

	p.section("Edges", len(snap.Edges), func(i int) string {
		return snap.Edges[i].From + arrow + snap.Edges[i].To
	})

	isolated := isolatedNodes(snap, names)
	p.section("Isolated", len(isolated), func(i int) string { return isolated[i] })

	return p.err
}

func describe(spec graph.NodeSpec) string {
	switch {
	case spec.Kind == graph.KindFunction && spec.Function != nil:
		ref := spec.Function.Logic
		if ref == "" {
			ref = "go:const"
		}
		return fmt.Sprintf("%s (function %s)", spec.Name, ref)
	case spec.Kind == graph.KindAgent && spec.Agent != nil:
		provider := spec.Agent.Provider
		if provider == "" {
			provider = "default"
		}
		return fmt.Sprintf("%s (agent %s)", spec.Name, provider)
	default:
		return fmt.Sprintf("%s (%s)", spec.Name, spec.Kind)
	}
}

func isolatedNodes(snap *graph.Snapshot, names []string) []string {
	touched := make(map[string]bool)
	for _, e := range snap.Edges {
		touched[e.From] = true
		touched[e.To] = true
	}
	var out []string
	for _, n := range names {
		if !touched[n] {
			out = append(out, n)
		}
	}
	return out
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// section prints a titled tree. Empty sections are omitted.
func (p *printer) section(title string, n int, line func(int) string) {
	if n == 0 {
		return
	}
	p.printf("\n%s\n", title)
	for i := range n {
		prefix := "├──"
		if i == n-1 {
			prefix = "└──"
		}
		p.printf("   %s %s\n", prefix, line(i))
	}
}
