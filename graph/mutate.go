package graph

import (
	"fmt"
	"time"

	"github.com/kbukum/graphflow/errors"
)

// Position holds optional placement hints for a new node.
//
// BeforeNode names the node the new node runs after (edge BeforeNode → new).
// AfterNode names the node the new node runs before (edge new → AfterNode).
type Position struct {
	BeforeNode string `json:"before_node,omitempty"`
	AfterNode  string `json:"after_node,omitempty"`
}

// EdgeUpdate moves one or both endpoints of the existing edge From → To.
type EdgeUpdate struct {
	From    string `json:"source"`
	To      string `json:"target"`
	NewFrom string `json:"new_source,omitempty"`
	NewTo   string `json:"new_target,omitempty"`
}

// txn records edge and node changes so a failed mutation can be undone.
type txn struct {
	d       *Definition
	node    string
	added   []Edge
	removed []Edge
}

func (t *txn) addEdge(e Edge) {
	if _, ok := t.d.edges[e]; ok {
		return
	}
	t.d.edges[e] = struct{}{}
	t.added = append(t.added, e)
}

func (t *txn) removeEdge(e Edge) {
	if _, ok := t.d.edges[e]; !ok {
		return
	}
	delete(t.d.edges, e)
	t.removed = append(t.removed, e)
}

func (t *txn) changed() bool {
	return t.node != "" || len(t.added) > 0 || len(t.removed) > 0
}

func (t *txn) rollback() {
	for _, e := range t.added {
		delete(t.d.edges, e)
	}
	for _, e := range t.removed {
		t.d.edges[e] = struct{}{}
	}
	if t.node != "" {
		delete(t.d.nodes, t.node)
	}
}

// commit verifies acyclicity, rolling back on failure, and bumps the version.
func (t *txn) commit() error {
	if len(t.added) > 0 {
		if path := t.d.findCycle(); path != nil {
			t.rollback()
			return errors.CycleDetected(path)
		}
	}
	if t.changed() {
		t.d.touch()
	}
	return nil
}

func (d *Definition) touch() {
	d.version++
	d.updatedAt = time.Now().UTC()
}

func (d *Definition) hasNode(name string) bool {
	_, ok := d.nodes[name]
	return ok
}

// AddNode inserts spec and wires it according to pos. With both hints set,
// a direct BeforeNode → AfterNode edge is replaced by the path through the
// new node; no other edge is touched.
func (d *Definition) AddNode(spec NodeSpec, pos Position) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasNode(spec.Name) {
		return errors.DuplicateNode(spec.Name)
	}
	if err := d.checkHint(pos.BeforeNode, End); err != nil {
		return err
	}
	if err := d.checkHint(pos.AfterNode, Start); err != nil {
		return err
	}

	d.nodes[spec.Name] = spec.Clone()
	t := &txn{d: d, node: spec.Name}
	if pos.BeforeNode != "" {
		t.addEdge(Edge{From: pos.BeforeNode, To: spec.Name})
	}
	if pos.AfterNode != "" {
		t.addEdge(Edge{From: spec.Name, To: pos.AfterNode})
	}
	if pos.BeforeNode != "" && pos.AfterNode != "" {
		t.removeEdge(Edge{From: pos.BeforeNode, To: pos.AfterNode})
	}
	return t.commit()
}

// checkHint validates a positional hint; forbidden is the marker that cannot
// appear on that side.
func (d *Definition) checkHint(name, forbidden string) error {
	switch {
	case name == "":
		return nil
	case name == forbidden:
		return errors.InvalidInput("position", fmt.Sprintf("%q cannot be used as this hint", name))
	case IsMarker(name), d.hasNode(name):
		return nil
	}
	return errors.UnknownReference(name)
}

// UpdateNode replaces the payload of an existing node. Edges are untouched.
func (d *Definition) UpdateNode(name string, spec NodeSpec) error {
	if spec.Name == "" {
		spec.Name = name
	}
	if spec.Name != name {
		return errors.InvalidInput("name", "node name cannot be changed")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasNode(name) {
		return errors.UnknownNode(name)
	}
	d.nodes[name] = spec.Clone()
	d.touch()
	return nil
}

// RemoveNode deletes a node and every edge incident to it. Former neighbours
// are not reconnected.
func (d *Definition) RemoveNode(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasNode(name) {
		return errors.UnknownNode(name)
	}
	delete(d.nodes, name)
	for e := range d.edges {
		if e.From == name || e.To == name {
			delete(d.edges, e)
		}
	}
	d.touch()
	return nil
}

// AddEdge inserts e. Adding an existing edge is a no-op.
func (d *Definition) AddEdge(e Edge) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkEdge(e); err != nil {
		return err
	}
	t := &txn{d: d}
	t.addEdge(e)
	return t.commit()
}

// UpdateEdge replaces the edge From → To with one whose endpoints are taken
// from NewFrom and NewTo where set.
func (d *Definition) UpdateEdge(u EdgeUpdate) error {
	if u.NewFrom == "" && u.NewTo == "" {
		return errors.InvalidInput("edge", "a new source or target is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := Edge{From: u.From, To: u.To}
	if _, ok := d.edges[old]; !ok {
		return errors.UnknownEdge(u.From, u.To)
	}
	next := old
	if u.NewFrom != "" {
		next.From = u.NewFrom
	}
	if u.NewTo != "" {
		next.To = u.NewTo
	}
	if next == old {
		return nil
	}
	if err := d.checkEdge(next); err != nil {
		return err
	}

	t := &txn{d: d}
	t.removeEdge(old)
	t.addEdge(next)
	return t.commit()
}

// RemoveEdge deletes e. Removing a missing edge is a no-op.
func (d *Definition) RemoveEdge(e Edge) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := &txn{d: d}
	t.removeEdge(e)
	return t.commit()
}

func (d *Definition) checkEdge(e Edge) error {
	switch {
	case e.From == "" || e.To == "":
		return errors.InvalidInput("edge", "source and target are required")
	case e.From == End:
		return errors.InvalidInput("source", fmt.Sprintf("%q can only be a target", End))
	case e.To == Start:
		return errors.InvalidInput("target", fmt.Sprintf("%q can only be a source", Start))
	case e.From == Start && e.To == End:
		return errors.InvalidInput("edge", "an edge must touch at least one node")
	case e.From == e.To:
		return errors.CycleDetected([]string{e.From, e.To})
	}
	for _, name := range []string{e.From, e.To} {
		if !IsMarker(name) && !d.hasNode(name) {
			return errors.UnknownReference(name)
		}
	}
	return nil
}
