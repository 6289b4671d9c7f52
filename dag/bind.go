package dag

import (
	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/expr"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/logic"
)

// Binder turns planned node specs into executable nodes.
type Binder struct {
	// Logic resolves function node references.
	Logic logic.Resolver
	// Models serves agent nodes. Plans with agent nodes fail to bind without it.
	Models Models
}

// Bind binds every node of plan. A failure is reported as a
// NODE_EXECUTION_ERROR for the lexically first node that cannot be bound.
func (b Binder) Bind(plan *Plan) (map[string]Node, error) {
	nodes := make(map[string]Node, len(plan.Nodes))
	for _, stage := range plan.Stages {
		for _, name := range stage {
			node, err := b.bindNode(plan, name)
			if err != nil {
				return nil, errors.NodeExecution(name, err)
			}
			nodes[name] = node
		}
	}
	return nodes, nil
}

func (b Binder) bindNode(plan *Plan, name string) (Node, error) {
	spec := plan.Nodes[name]
	switch spec.Kind {
	case graph.KindFunction:
		var fs graph.FunctionSpec
		if spec.Function != nil {
			fs = *spec.Function
		}
		if b.Logic == nil {
			return nil, errors.LogicNotFound(fs.Logic, "no logic resolver configured")
		}
		fn, err := b.Logic.Resolve(fs.Logic)
		if err != nil {
			return nil, err
		}
		return &functionNode{name: name, spec: fs, fn: fn}, nil

	case graph.KindAgent:
		var as graph.AgentSpec
		if spec.Agent != nil {
			as = *spec.Agent
		}
		if b.Models == nil {
			return nil, errors.InvalidInput("agent", "no model collaborator configured")
		}
		model, err := b.Models.Completer(as.Provider)
		if err != nil {
			return nil, err
		}
		node := &agentNode{
			name:         name,
			spec:         as,
			predecessors: plan.Predecessors[name],
			model:        model,
		}
		if as.Prompt != "" {
			tmpl, err := expr.ParseTemplate(as.Prompt)
			if err != nil {
				return nil, errors.InvalidInput("prompt", err.Error())
			}
			node.prompt = tmpl
		}
		return node, nil

	default:
		return nil, errors.InvalidInput("type", "unknown node type "+string(spec.Kind))
	}
}
