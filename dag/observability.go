package dag

import (
	"context"
	"time"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/observability"
	"github.com/kbukum/graphflow/state"
)

// WithTracing wraps a Node with a graph.node span.
func WithTracing(node Node, kind graph.NodeKind) Node {
	return &tracingNode{inner: node, kind: kind}
}

type tracingNode struct {
	inner Node
	kind  graph.NodeKind
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphNode)
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrNode, n.inner.Name())
	observability.SetSpanAttribute(ctx, observability.AttrNodeKind, string(n.kind))

	delta, err := n.inner.Run(ctx, st)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return delta, err
}

// WithMetrics wraps a Node with duration and error recording.
func WithMetrics(node Node, kind graph.NodeKind, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, kind: string(kind), metrics: metrics}
}

type metricsNode struct {
	inner   Node
	kind    string
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	start := time.Now()
	delta, err := n.inner.Run(ctx, st)
	duration := time.Since(start)

	status := NodeCompleted
	if err != nil {
		status = NodeFailed
		code := string(errors.ErrCodeInternal)
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		n.metrics.RecordNodeError(ctx, n.kind, code)
	}
	n.metrics.RecordNode(ctx, n.kind, string(status), duration)

	return delta, err
}

// WithLogging wraps a Node with execution logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, st *state.GraphState) (state.Delta, error) {
	start := time.Now()
	delta, err := n.inner.Run(ctx, st)

	fields := logger.DurationFields("node.run", time.Since(start))
	fields[logger.FieldNode] = n.inner.Name()
	if err != nil {
		fields[logger.FieldError] = err.Error()
		n.log.Warn("node failed", fields)
	} else {
		n.log.Debug("node completed", fields)
	}
	return delta, err
}
