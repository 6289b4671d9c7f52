package dag

import (
	"time"

	"github.com/kbukum/graphflow/state"
)

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// NodeStatus is the outcome of one node in a run.
type NodeStatus string

const (
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	// NodeSkipped marks nodes of stages that never ran.
	NodeSkipped NodeStatus = "skipped"
)

// Result holds the outcome of a graph run. On failure State is the state
// accumulated by the stages that completed.
type Result struct {
	RunID       string
	GraphID     string
	Version     uint64
	Status      RunStatus
	State       *state.GraphState
	Stages      [][]string
	NodeResults map[string]NodeResult
	Duration    time.Duration
	Err         error
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Stage    int
	Status   NodeStatus
	Duration time.Duration
	Error    error
}

// Failed returns the results of failed nodes in stage then name order.
func (r *Result) Failed() []NodeResult {
	var out []NodeResult
	for _, stage := range r.Stages {
		for _, name := range stage {
			if nr, ok := r.NodeResults[name]; ok && nr.Status == NodeFailed {
				out = append(out, nr)
			}
		}
	}
	return out
}
