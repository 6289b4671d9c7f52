package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/graphflow/component"
	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/logger"
)

const resourceGraph = "graph"

// Registry owns graph definitions by identifier.
type Registry interface {
	Create(name, description string) *graph.Definition
	Get(id string) (*graph.Definition, error)
	Delete(id string) error
	List() []*graph.Definition
	Import(doc *graph.Document) (*graph.Definition, error)
}

// Memory is an in-memory Registry. It is also a lifecycle component: Stop
// drops every stored graph.
type Memory struct {
	mu      sync.RWMutex
	graphs  map[string]*graph.Definition
	seedDir string
	log     *logger.Logger
}

var (
	_ Registry            = (*Memory)(nil)
	_ component.Component = (*Memory)(nil)
)

// Option configures a Memory registry.
type Option func(*Memory)

// WithSeedDir imports every document found in dir when the registry starts.
func WithSeedDir(dir string) Option {
	return func(m *Memory) { m.seedDir = dir }
}

// WithLogger sets the registry logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Memory) { m.log = log }
}

// NewMemory creates an empty registry.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{graphs: make(map[string]*graph.Definition)}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.GetGlobalLogger().WithComponent("registry")
	}
	return m
}

// Create stores a new empty definition under a fresh UUID.
func (m *Memory) Create(name, description string) *graph.Definition {
	d := graph.NewDefinition(uuid.NewString(), name, description)

	m.mu.Lock()
	m.graphs[d.ID()] = d
	m.mu.Unlock()

	m.log.Debug("graph created", map[string]interface{}{
		logger.FieldGraphID: d.ID(),
		"name":              name,
	})
	return d
}

// Get returns the definition stored under id.
func (m *Memory) Get(id string) (*graph.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.graphs[id]
	if !ok {
		return nil, errors.NotFound(resourceGraph, id)
	}
	return d, nil
}

// Delete removes the definition stored under id.
func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.graphs[id]; !ok {
		return errors.NotFound(resourceGraph, id)
	}
	delete(m.graphs, id)
	m.log.Debug("graph deleted", map[string]interface{}{logger.FieldGraphID: id})
	return nil
}

// List returns every definition ordered by creation time, then id.
func (m *Memory) List() []*graph.Definition {
	m.mu.RLock()
	out := make([]*graph.Definition, 0, len(m.graphs))
	for _, d := range m.graphs {
		out = append(out, d)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *graph.Definition) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// Import builds a definition from doc and stores it. The document id is kept
// when set; otherwise a fresh UUID is assigned.
func (m *Memory) Import(doc *graph.Document) (*graph.Definition, error) {
	if doc == nil {
		return nil, errors.InvalidInput("document", "document is required")
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	d, err := graph.FromDocument(id, doc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.graphs[id]; exists {
		return nil, errors.AlreadyExists(resourceGraph, id)
	}
	m.graphs[id] = d
	m.log.Debug("graph imported", map[string]interface{}{
		logger.FieldGraphID: id,
		"nodes":             len(doc.Nodes),
		"edges":             len(doc.Edges),
	})
	return d, nil
}

// Len returns the number of stored definitions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.graphs)
}

// Name implements component.Component.
func (m *Memory) Name() string { return "graph-registry" }

// Start imports seed documents when a seed directory is configured.
func (m *Memory) Start(_ context.Context) error {
	if m.seedDir == "" {
		return nil
	}
	docs, err := graph.NewFileLoader(m.seedDir).LoadAll()
	if err != nil {
		return fmt.Errorf("registry: loading seed graphs: %w", err)
	}
	for _, doc := range docs {
		d, err := m.Import(doc)
		if err != nil {
			return fmt.Errorf("registry: importing seed graph %q: %w", doc.Name, err)
		}
		m.log.Info("seed graph imported", map[string]interface{}{
			logger.FieldGraphID: d.ID(),
			"name":              doc.Name,
		})
	}
	return nil
}

// Stop drops every stored definition.
func (m *Memory) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.graphs)
	m.graphs = make(map[string]*graph.Definition)
	m.log.Info("graph registry cleared", map[string]interface{}{"graphs": n})
	return nil
}

// Health reports the number of stored definitions.
func (m *Memory) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    m.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d graphs", m.Len()),
	}
}

// Describe implements component.Describable.
func (m *Memory) Describe() component.Description {
	details := "in-memory"
	if m.seedDir != "" {
		details += " seed=" + m.seedDir
	}
	return component.Description{Name: "Graph Registry", Type: "registry", Details: details}
}
