package graph

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/graphflow/errors"
)

// Reserved edge endpoints.
const (
	Start = "start"
	End   = "end"
)

// IsMarker reports whether name is a reserved edge endpoint.
func IsMarker(name string) bool {
	return name == Start || name == End
}

// NodeKind tags the payload of a NodeSpec.
type NodeKind string

const (
	KindFunction NodeKind = "function"
	KindAgent    NodeKind = "agent"
)

// FunctionSpec configures a node that runs resolved logic.
type FunctionSpec struct {
	// Logic is a "scheme:body" reference. Empty means "go:const".
	Logic string `json:"logic,omitempty" yaml:"logic,omitempty"`
	// OutputKey is the output key the logic writes. Empty means the node name.
	OutputKey string `json:"output_key,omitempty" yaml:"output_key,omitempty"`
	// Value is the static value emitted by "go:const".
	Value any `json:"value,omitempty" yaml:"value,omitempty"`
}

// AgentSpec configures a node that calls a model-completion provider.
type AgentSpec struct {
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// NodeSpec is the configuration of a single node.
type NodeSpec struct {
	Name     string        `json:"name" yaml:"name"`
	Kind     NodeKind      `json:"type" yaml:"type"`
	Function *FunctionSpec `json:"function,omitempty" yaml:"function,omitempty"`
	Agent    *AgentSpec    `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// Validate checks the name and that exactly one payload matching Kind is set.
func (s NodeSpec) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	switch s.Kind {
	case KindFunction:
		if s.Function == nil || s.Agent != nil {
			return errors.InvalidInput("type", "function node requires a function payload only")
		}
	case KindAgent:
		if s.Agent == nil || s.Function != nil {
			return errors.InvalidInput("type", "agent node requires an agent payload only")
		}
		if s.Agent.MaxTokens < 0 {
			return errors.InvalidInput("max_tokens", "must not be negative")
		}
	default:
		return errors.InvalidInput("type", fmt.Sprintf("unknown node type %q", s.Kind))
	}
	return nil
}

// Clone returns a copy of s that shares no pointers with it.
func (s NodeSpec) Clone() NodeSpec {
	out := s
	if s.Function != nil {
		f := *s.Function
		out.Function = &f
	}
	if s.Agent != nil {
		a := *s.Agent
		if a.Temperature != nil {
			t := *a.Temperature
			a.Temperature = &t
		}
		out.Agent = &a
	}
	return out
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.InvalidInput("name", "node name is required")
	case IsMarker(name):
		return errors.InvalidInput("name", fmt.Sprintf("%q is a reserved name", name))
	}
	return nil
}

// Edge is a directed dependency: To runs after From.
type Edge struct {
	From string `json:"source" yaml:"source"`
	To   string `json:"target" yaml:"target"`
}

func (e Edge) String() string { return e.From + " -> " + e.To }

// IsMarker reports whether either endpoint is a reserved name.
func (e Edge) IsMarker() bool { return IsMarker(e.From) || IsMarker(e.To) }

// Definition is a mutable workflow graph. It is safe for concurrent use.
type Definition struct {
	mu          sync.RWMutex
	id          string
	name        string
	description string
	nodes       map[string]NodeSpec
	edges       map[Edge]struct{}
	createdAt   time.Time
	updatedAt   time.Time
	version     uint64
}

// NewDefinition creates an empty definition.
func NewDefinition(id, name, description string) *Definition {
	now := time.Now().UTC()
	return &Definition{
		id:          id,
		name:        name,
		description: description,
		nodes:       make(map[string]NodeSpec),
		edges:       make(map[Edge]struct{}),
		createdAt:   now,
		updatedAt:   now,
	}
}

// ID returns the definition identifier.
func (d *Definition) ID() string { return d.id }

// Name returns the human-readable name.
func (d *Definition) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// CreatedAt returns the creation timestamp.
func (d *Definition) CreatedAt() time.Time { return d.createdAt }

// Version returns the structural version, bumped by every effective mutation.
func (d *Definition) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Node returns a copy of the named node spec.
func (d *Definition) Node(name string) (NodeSpec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	spec, ok := d.nodes[name]
	if !ok {
		return NodeSpec{}, false
	}
	return spec.Clone(), true
}

// Snapshot is an immutable copy of a Definition.
type Snapshot struct {
	ID          string
	Name        string
	Description string
	Nodes       map[string]NodeSpec
	Edges       []Edge
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     uint64
}

// Snapshot copies the definition under its read lock.
func (d *Definition) Snapshot() *Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes := make(map[string]NodeSpec, len(d.nodes))
	for name, spec := range d.nodes {
		nodes[name] = spec.Clone()
	}
	return &Snapshot{
		ID:          d.id,
		Name:        d.name,
		Description: d.description,
		Nodes:       nodes,
		Edges:       sortedEdges(d.edges),
		CreatedAt:   d.createdAt,
		UpdatedAt:   d.updatedAt,
		Version:     d.version,
	}
}

// NodeNames returns the node names in lexical order.
func (s *Snapshot) NodeNames() []string {
	return slices.Sorted(maps.Keys(s.Nodes))
}

// Entries returns the nodes designated by start edges, in lexical order.
func (s *Snapshot) Entries() []string {
	var out []string
	for _, e := range s.Edges {
		if e.From == Start {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// Terminals returns the nodes designated by end edges, in lexical order.
func (s *Snapshot) Terminals() []string {
	var out []string
	for _, e := range s.Edges {
		if e.To == End {
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

// HasEdge reports whether the snapshot contains e.
func (s *Snapshot) HasEdge(e Edge) bool {
	_, found := slices.BinarySearchFunc(s.Edges, e, compareEdges)
	return found
}

func sortedEdges(set map[Edge]struct{}) []Edge {
	edges := make([]Edge, 0, len(set))
	for e := range set {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, compareEdges)
	return edges
}

func compareEdges(a, b Edge) int {
	if c := strings.Compare(a.From, b.From); c != 0 {
		return c
	}
	return strings.Compare(a.To, b.To)
}
