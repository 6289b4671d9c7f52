package graph

import (
	"fmt"

	"github.com/kbukum/graphflow/errors"
)

// Document is the persisted layout of a definition: metadata, a node table
// and an edge set. Derived data such as stages and versions is not stored.
type Document struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges       []Edge     `json:"edges" yaml:"edges"`
}

// Document returns the persisted layout of the snapshot with nodes and edges
// in lexical order.
func (s *Snapshot) Document() *Document {
	doc := &Document{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Nodes:       make([]NodeSpec, 0, len(s.Nodes)),
		Edges:       append([]Edge(nil), s.Edges...),
	}
	for _, name := range s.NodeNames() {
		doc.Nodes = append(doc.Nodes, s.Nodes[name].Clone())
	}
	return doc
}

// FromDocument builds a definition with the given id by replaying the
// document through AddNode and AddEdge, so every structural rule is checked.
func FromDocument(id string, doc *Document) (*Definition, error) {
	if doc == nil {
		return nil, errors.InvalidInput("document", "document is required")
	}
	d := NewDefinition(id, doc.Name, doc.Description)
	for i, spec := range doc.Nodes {
		if err := d.AddNode(spec, Position{}); err != nil {
			return nil, wrapDocumentError(err, fmt.Sprintf("nodes[%d]", i))
		}
	}
	for i, e := range doc.Edges {
		if err := d.AddEdge(e); err != nil {
			return nil, wrapDocumentError(err, fmt.Sprintf("edges[%d]", i))
		}
	}
	return d, nil
}

func wrapDocumentError(err error, path string) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.WithDetail("path", path)
	}
	return err
}
