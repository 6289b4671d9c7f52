package dag

import (
	"context"
	"fmt"

	"github.com/kbukum/graphflow/expr"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/llm"
	"github.com/kbukum/graphflow/logic"
	"github.com/kbukum/graphflow/state"
)

// Node is the execution unit of a plan. Run receives a snapshot of the run
// state that it must not modify and returns its contribution as a delta.
type Node interface {
	Name() string
	Run(ctx context.Context, st *state.GraphState) (state.Delta, error)
}

// NodeFunc adapts a function to the Node interface.
func NodeFunc(name string, fn func(ctx context.Context, st *state.GraphState) (state.Delta, error)) Node {
	return &funcNode{name: name, fn: fn}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, st *state.GraphState) (state.Delta, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	return n.fn(ctx, st)
}

// functionNode runs resolved logic.
type functionNode struct {
	name string
	spec graph.FunctionSpec
	fn   logic.Func
}

func (n *functionNode) Name() string { return n.name }

func (n *functionNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	key := n.spec.OutputKey
	if key == "" {
		key = n.name
	}
	return n.fn(ctx, logic.Call{
		Node:      n.name,
		OutputKey: key,
		Value:     n.spec.Value,
		State:     st,
	})
}

// Models resolves the provider an agent node calls. An empty name selects
// the default provider. *llm.Router implements it.
type Models interface {
	Completer(provider string) (llm.Completer, error)
}

// agentNode renders its prompt, gathers the outputs of its direct
// predecessors as conversation and writes the model reply to output[name].
type agentNode struct {
	name         string
	spec         graph.AgentSpec
	prompt       *expr.Template
	predecessors []string
	model        llm.Completer
}

func (n *agentNode) Name() string { return n.name }

func (n *agentNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	var system string
	if n.prompt != nil {
		rendered, err := n.prompt.Render(st)
		if err != nil {
			return state.Delta{}, err
		}
		system = rendered
	}

	reply, err := n.model.Complete(ctx, llm.CompletionRequest{
		Model:        n.spec.Model,
		SystemPrompt: system,
		Messages:     n.messages(st),
		Temperature:  n.spec.Temperature,
		MaxTokens:    n.spec.MaxTokens,
	})
	if err != nil {
		return state.Delta{}, err
	}
	return state.Output(n.name, reply), nil
}

// messages builds one user message per predecessor output, in predecessor
// order, falling back to the latest input value.
func (n *agentNode) messages(st *state.GraphState) []llm.Message {
	var msgs []llm.Message
	for _, p := range n.predecessors {
		if v, ok := st.Output[p]; ok && v != nil {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text(v)})
		}
	}
	if len(msgs) == 0 {
		if last := st.Last(); last != nil {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text(last)})
		}
	}
	return msgs
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
