package service

import (
	"context"
	"fmt"

	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/observability"
	"github.com/kbukum/graphflow/registry"
	"github.com/kbukum/graphflow/state"
	"github.com/kbukum/graphflow/validation"
	"github.com/kbukum/graphflow/visualize"
)

// Mutation operation names used in logs and metrics.
const (
	OpAddNode    = "add_node"
	OpUpdateNode = "update_node"
	OpDeleteNode = "delete_node"
	OpAddEdge    = "add_edge"
	OpUpdateEdge = "update_edge"
	OpDeleteEdge = "delete_edge"
)

// Service exposes the graph operations consumed by the HTTP adapter and the CLI.
type Service struct {
	graphs  registry.Registry
	engine  *dag.Engine
	schema  state.Schema
	metrics *observability.Metrics
	log     *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSchema sets the state schema runs are compiled against.
func WithSchema(schema state.Schema) Option {
	return func(s *Service) { s.schema = schema }
}

// WithMetrics records mutation counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a Service over a registry and an engine.
func New(graphs registry.Registry, engine *dag.Engine, opts ...Option) *Service {
	s := &Service{graphs: graphs, engine: engine, schema: state.DefaultSchema()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetGlobalLogger().WithComponent("service")
	}
	return s
}

// CreateGraph registers an empty graph.
func (s *Service) CreateGraph(ctx context.Context, req CreateGraphRequest) (*CreateGraphResponse, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	d := s.graphs.Create(req.Name, req.Description)
	s.log.WithContext(ctx).Info("graph created", logger.Fields(logger.FieldGraphID, d.ID()))
	return &CreateGraphResponse{GraphID: d.ID()}, nil
}

// ListGraphs returns every graph in creation order.
func (s *Service) ListGraphs(_ context.Context) []GraphSummary {
	defs := s.graphs.List()
	out := make([]GraphSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summarize(d.Snapshot()))
	}
	return out
}

// GetGraph returns the structure and text visualization of a graph.
func (s *Service) GetGraph(_ context.Context, id string) (*GraphView, error) {
	d, err := s.graphs.Get(id)
	if err != nil {
		return nil, err
	}
	snap := d.Snapshot()
	doc := snap.Document()
	view := &GraphView{
		GraphSummary: summarize(snap),
		Graph:        visualize.Render(snap),
		NodeSpecs:    doc.Nodes,
		EdgeList:     doc.Edges,
		Entries:      snap.Entries(),
		Terminals:    snap.Terminals(),
	}
	if plan, err := dag.Compile(snap, s.schema); err == nil {
		view.Stages = plan.Stages
	}
	return view, nil
}

// DeleteGraph removes a graph.
func (s *Service) DeleteGraph(ctx context.Context, id string) error {
	if err := s.graphs.Delete(id); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("graph deleted", logger.Fields(logger.FieldGraphID, id))
	return nil
}

// ExportGraph returns the persisted document of a graph.
func (s *Service) ExportGraph(_ context.Context, id string) (*graph.Document, error) {
	d, err := s.graphs.Get(id)
	if err != nil {
		return nil, err
	}
	return d.Snapshot().Document(), nil
}

// ImportGraph registers a graph from a document.
func (s *Service) ImportGraph(ctx context.Context, doc *graph.Document) (*CreateGraphResponse, error) {
	d, err := s.graphs.Import(doc)
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("graph imported", logger.Fields(logger.FieldGraphID, d.ID()))
	return &CreateGraphResponse{GraphID: d.ID()}, nil
}

// RunGraph compiles the current structure of a graph and executes it. A
// failed run returns the AppError with run_id and partial_state details.
func (s *Service) RunGraph(ctx context.Context, id string, req RunRequest) (*RunResponse, error) {
	seed, err := req.Seed()
	if err != nil {
		return nil, err
	}
	d, err := s.graphs.Get(id)
	if err != nil {
		return nil, err
	}
	plan, err := dag.Compile(d.Snapshot(), s.schema)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Execute(ctx, plan, seed)
	if err != nil {
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Internal(err)
		}
		return runResponse(res), appErr.WithDetails(map[string]any{
			"run_id":        res.RunID,
			"partial_state": res.State,
		})
	}
	return runResponse(res), nil
}

// AddNode inserts a node, splicing it between the hinted neighbours.
func (s *Service) AddNode(ctx context.Context, id string, req AddNodeRequest) (*MutationResponse, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, OpAddNode, func(d *graph.Definition) (string, error) {
		if err := d.AddNode(req.Config.Spec(), req.Position()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Node %s added to graph %s", req.Config.Name, id), nil
	})
}

// UpdateNode replaces the configuration of a node and keeps its edges. The
// name defaults to the addressed node.
func (s *Service) UpdateNode(ctx context.Context, id, name string, cfg NodeConfig) (*MutationResponse, error) {
	if cfg.Name == "" {
		cfg.Name = name
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, OpUpdateNode, func(d *graph.Definition) (string, error) {
		if err := d.UpdateNode(name, cfg.Spec()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Node %s of graph %s updated", name, id), nil
	})
}

// DeleteNode removes a node and its edges.
func (s *Service) DeleteNode(ctx context.Context, id, name string) (*MutationResponse, error) {
	return s.mutate(ctx, id, OpDeleteNode, func(d *graph.Definition) (string, error) {
		if err := d.RemoveNode(name); err != nil {
			return "", err
		}
		return fmt.Sprintf("Node %s deleted from graph %s", name, id), nil
	})
}

// AddEdge inserts an edge.
func (s *Service) AddEdge(ctx context.Context, id string, req EdgeRequest) (*MutationResponse, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, OpAddEdge, func(d *graph.Definition) (string, error) {
		if err := d.AddEdge(req.Edge()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Edge %s to %s added", req.Source, req.Target), nil
	})
}

// UpdateEdge moves the endpoints of an edge.
func (s *Service) UpdateEdge(ctx context.Context, id string, req UpdateEdgeRequest) (*MutationResponse, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, OpUpdateEdge, func(d *graph.Definition) (string, error) {
		u := req.Update()
		if err := d.UpdateEdge(u); err != nil {
			return "", err
		}
		return fmt.Sprintf("Edge %s to %s updated", u.From, u.To), nil
	})
}

// DeleteEdge removes an edge.
func (s *Service) DeleteEdge(ctx context.Context, id string, req EdgeRequest) (*MutationResponse, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, OpDeleteEdge, func(d *graph.Definition) (string, error) {
		if err := d.RemoveEdge(req.Edge()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Edge %s to %s removed", req.Source, req.Target), nil
	})
}

func (s *Service) mutate(ctx context.Context, id, op string, apply func(*graph.Definition) (string, error)) (*MutationResponse, error) {
	log := s.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldGraphID, id,
		logger.FieldOperation, op,
	))

	d, err := s.graphs.Get(id)
	if err != nil {
		s.recordMutation(ctx, op, err)
		return nil, err
	}
	msg, err := apply(d)
	s.recordMutation(ctx, op, err)
	if err != nil {
		log.Debug("mutation rejected", logger.Fields(logger.FieldError, err.Error()))
		return nil, err
	}
	version := d.Version()
	log.Debug("mutation applied", logger.Fields("version", version))
	return &MutationResponse{Message: msg, GraphID: id, Version: version}, nil
}

func (s *Service) recordMutation(ctx context.Context, op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = string(errors.ErrCodeInternal)
		if appErr, ok := errors.AsAppError(err); ok {
			status = string(appErr.Code)
		}
	}
	s.metrics.RecordMutation(ctx, op, status)
}
