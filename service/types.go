package service

import (
	"time"

	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/state"
)

// CreateGraphRequest is the body of POST /graph. Both fields are optional.
type CreateGraphRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// CreateGraphResponse returns the id of a new graph.
type CreateGraphResponse struct {
	GraphID string `json:"graph_id"`
}

// NodeConfig describes a node. Without an explicit type, a config carrying a
// prompt, provider or model is an agent and anything else a function.
type NodeConfig struct {
	Name string         `json:"name" validate:"required,nodename"`
	Type graph.NodeKind `json:"type,omitempty" validate:"omitempty,oneof=function agent"`

	// Output is the static value emitted by a function node without logic.
	Output    any    `json:"output,omitempty"`
	Logic     string `json:"logic,omitempty" validate:"max=4096"`
	OutputKey string `json:"output_key,omitempty" validate:"max=128"`

	Prompt      *string  `json:"prompt,omitempty"`
	Provider    string   `json:"provider,omitempty" validate:"omitempty,oneof=openai anthropic echo"`
	Model       string   `json:"model,omitempty" validate:"max=200"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens,omitempty" validate:"gte=0"`
}

// Kind returns the declared or inferred node kind.
func (c NodeConfig) Kind() graph.NodeKind {
	if c.Type != "" {
		return c.Type
	}
	if c.Prompt != nil || c.Provider != "" || c.Model != "" {
		return graph.KindAgent
	}
	return graph.KindFunction
}

// Spec converts the config into a node spec.
func (c NodeConfig) Spec() graph.NodeSpec {
	spec := graph.NodeSpec{Name: c.Name, Kind: c.Kind()}
	if spec.Kind == graph.KindAgent {
		a := &graph.AgentSpec{
			Provider:    c.Provider,
			Model:       c.Model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		}
		if c.Prompt != nil {
			a.Prompt = *c.Prompt
		}
		spec.Agent = a
		return spec
	}
	spec.Function = &graph.FunctionSpec{Logic: c.Logic, OutputKey: c.OutputKey, Value: c.Output}
	return spec
}

// AddNodeRequest is the body of POST /graph/:id/node.
type AddNodeRequest struct {
	Config     NodeConfig `json:"config" validate:"required"`
	BeforeNode string     `json:"before_node,omitempty" validate:"max=128"`
	AfterNode  string     `json:"after_node,omitempty" validate:"max=128"`
}

// Position returns the placement hints of the request.
func (r AddNodeRequest) Position() graph.Position {
	return graph.Position{BeforeNode: r.BeforeNode, AfterNode: r.AfterNode}
}

// EdgeRequest is the body of POST and DELETE /graph/:id/edge.
type EdgeRequest struct {
	Source string `json:"source" validate:"required,max=128"`
	Target string `json:"target" validate:"required,max=128"`
}

// Edge returns the requested edge.
func (r EdgeRequest) Edge() graph.Edge {
	return graph.Edge{From: r.Source, To: r.Target}
}

// UpdateEdgeRequest is the body of PUT /graph/:id/edge.
type UpdateEdgeRequest struct {
	Source    string `json:"source" validate:"required,max=128"`
	Target    string `json:"target" validate:"required,max=128"`
	NewSource string `json:"new_source,omitempty" validate:"max=128"`
	NewTarget string `json:"new_target,omitempty" validate:"max=128"`
}

// Update returns the requested edge update.
func (r UpdateEdgeRequest) Update() graph.EdgeUpdate {
	return graph.EdgeUpdate{From: r.Source, To: r.Target, NewFrom: r.NewSource, NewTo: r.NewTarget}
}

// RunRequest is the body of POST /graph/:id/run. Text seeds a single input
// value; Input seeds several and wins over Text.
type RunRequest struct {
	Text  *string `json:"text,omitempty"`
	Input []any   `json:"input,omitempty"`
}

// Seed returns the initial input values.
func (r RunRequest) Seed() ([]any, error) {
	switch {
	case len(r.Input) > 0:
		return r.Input, nil
	case r.Text != nil:
		return []any{*r.Text}, nil
	}
	return nil, errors.InvalidInput("text", "text or input is required")
}

// MutationResponse acknowledges a structural change.
type MutationResponse struct {
	Message string `json:"message"`
	GraphID string `json:"graph_id"`
	Version uint64 `json:"version"`
}

// GraphSummary lists a graph without its structure.
type GraphSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Version     uint64    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GraphView is a graph with its structure, stages and rendering.
type GraphView struct {
	GraphSummary
	// Graph is the text visualization.
	Graph     string           `json:"graph"`
	NodeSpecs []graph.NodeSpec `json:"node_specs"`
	EdgeList  []graph.Edge     `json:"edge_list"`
	Entries   []string         `json:"entries,omitempty"`
	Terminals []string         `json:"terminals,omitempty"`
	// Stages is empty when the graph does not compile.
	Stages [][]string `json:"stages,omitempty"`
}

// NodeRun is the outcome of one node of a run.
type NodeRun struct {
	Name       string `json:"name"`
	Stage      int    `json:"stage"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunResponse is the outcome of a completed run.
type RunResponse struct {
	RunID      string            `json:"run_id"`
	GraphID    string            `json:"graph_id"`
	Version    uint64            `json:"version"`
	Status     string            `json:"status"`
	Result     *state.GraphState `json:"result"`
	Stages     [][]string        `json:"stages"`
	Nodes      []NodeRun         `json:"nodes"`
	DurationMs int64             `json:"duration_ms"`
}

func summarize(snap *graph.Snapshot) GraphSummary {
	edges := 0
	for _, e := range snap.Edges {
		if !e.IsMarker() {
			edges++
		}
	}
	return GraphSummary{
		ID:          snap.ID,
		Name:        snap.Name,
		Description: snap.Description,
		Nodes:       len(snap.Nodes),
		Edges:       edges,
		Version:     snap.Version,
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
	}
}

func runResponse(res *dag.Result) *RunResponse {
	resp := &RunResponse{
		RunID:      res.RunID,
		GraphID:    res.GraphID,
		Version:    res.Version,
		Status:     string(res.Status),
		Result:     res.State,
		Stages:     res.Stages,
		DurationMs: res.Duration.Milliseconds(),
	}
	for i, stage := range res.Stages {
		for _, name := range stage {
			nr, ok := res.NodeResults[name]
			if !ok {
				continue
			}
			run := NodeRun{
				Name:       name,
				Stage:      i,
				Status:     string(nr.Status),
				DurationMs: nr.Duration.Milliseconds(),
			}
			if nr.Error != nil {
				run.Error = nr.Error.Error()
			}
			resp.Nodes = append(resp.Nodes, run)
		}
	}
	return resp
}
