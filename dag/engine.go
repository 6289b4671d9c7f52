package dag

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/observability"
	"github.com/kbukum/graphflow/state"
)

// Engine executes compiled plans stage by stage.
type Engine struct {
	cfg     Config
	binder  Binder
	log     *logger.Logger
	metrics *observability.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithEngineMetrics records run and node metrics.
func WithEngineMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine binding nodes through binder.
func NewEngine(cfg Config, binder Binder, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:    cfg,
		binder: binder,
		log:    logger.GetGlobalLogger().WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Execute runs plan against seed. Every node is bound before the first stage.
// The returned Result is never nil; on failure it carries the state produced
// by the completed stages and the error is also stored in Result.Err.
func (e *Engine) Execute(ctx context.Context, plan *Plan, seed []any) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:       uuid.NewString(),
		GraphID:     plan.GraphID,
		Version:     plan.Version,
		Stages:      plan.Stages,
		State:       state.New(seed...),
		NodeResults: make(map[string]NodeResult, plan.Size()),
	}
	log := e.log.WithFields(map[string]interface{}{
		logger.FieldRunID:   result.RunID,
		logger.FieldGraphID: plan.GraphID,
	})

	ctx = logger.ContextWithRunID(ctx, result.RunID)
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrGraphID, plan.GraphID)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, result.RunID)

	reducer, err := state.NewReducer(plan.Schema)
	if err != nil {
		return e.finish(ctx, log, result, start, err)
	}
	nodes, err := e.bind(plan, log)
	if err != nil {
		e.skip(result, 0)
		return e.finish(ctx, log, result, start, err)
	}

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	log.Debug("run started", map[string]interface{}{
		"stages": len(plan.Stages),
		"nodes":  plan.Size(),
	})

	for i, stage := range plan.Stages {
		if err := ctx.Err(); err != nil {
			e.skip(result, i)
			return e.finish(ctx, log, result, start, contextError(err, i, ""))
		}

		deltas, err := e.executeStage(ctx, i, stage, nodes, result)
		if err != nil {
			e.skip(result, i+1)
			return e.finish(ctx, log, result, start, err)
		}
		result.State = reducer.Apply(result.State, deltas...)
	}

	return e.finish(ctx, log, result, start, nil)
}

func (e *Engine) bind(plan *Plan, log *logger.Logger) (map[string]Node, error) {
	nodes, err := e.binder.Bind(plan)
	if err != nil {
		return nil, err
	}
	for name, node := range nodes {
		kind := plan.Nodes[name].Kind
		if e.cfg.Tracing {
			node = WithTracing(node, kind)
		}
		if e.metrics != nil {
			node = WithMetrics(node, kind, e.metrics)
		}
		nodes[name] = WithLogging(node, log)
	}
	return nodes, nil
}

type nodeOutcome struct {
	delta    state.Delta
	err      error
	duration time.Duration
}

// executeStage runs the nodes of one stage against one shared snapshot and
// returns their deltas in stage order. It waits for every node before
// reporting the failure of the lexically first failed node.
func (e *Engine) executeStage(ctx context.Context, index int, stage []string, nodes map[string]Node, result *Result) ([]state.Delta, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanGraphStage)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrStage, index)

	snapshot := result.State.Clone()
	outcomes := make([]nodeOutcome, len(stage))

	var g errgroup.Group
	if e.cfg.MaxParallel > 0 {
		g.SetLimit(e.cfg.MaxParallel)
	}
	for i, name := range stage {
		g.Go(func() error {
			outcomes[i] = e.executeNode(ctx, index, nodes[name], snapshot)
			return nil
		})
	}
	_ = g.Wait()

	var (
		deltas   []state.Delta
		firstErr error
	)
	for i, name := range stage {
		out := outcomes[i]
		nr := NodeResult{Name: name, Stage: index, Status: NodeCompleted, Duration: out.duration}
		if out.err != nil {
			nr.Status = NodeFailed
			nr.Error = out.err
			if firstErr == nil {
				firstErr = out.err
			}
		}
		result.NodeResults[name] = nr
		deltas = append(deltas, out.delta)
	}
	if firstErr != nil {
		observability.SetSpanError(ctx, firstErr)
		return nil, firstErr
	}
	return deltas, nil
}

func (e *Engine) executeNode(ctx context.Context, stage int, node Node, snapshot *state.GraphState) (out nodeOutcome) {
	name := node.Name()
	nctx := ctx
	if e.cfg.NodeTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, e.cfg.NodeTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.err = errors.NodeExecution(name, errors.Internal(fmt.Errorf("panic: %v", r)))
		}
		out.duration = time.Since(start)
	}()

	delta, err := node.Run(nctx, snapshot)
	if err == nil {
		return nodeOutcome{delta: delta}
	}

	switch {
	case ctx.Err() != nil:
		err = contextError(ctx.Err(), stage, name).WithCause(err)
	case stderrors.Is(nctx.Err(), context.DeadlineExceeded):
		err = errors.Timeout("node", name).WithCause(err)
	default:
		err = errors.NodeExecution(name, err)
	}
	return nodeOutcome{err: err}
}

// skip marks every node from stage from onwards as skipped.
func (e *Engine) skip(result *Result, from int) {
	for i := from; i < len(result.Stages); i++ {
		for _, name := range result.Stages[i] {
			result.NodeResults[name] = NodeResult{Name: name, Stage: i, Status: NodeSkipped}
		}
	}
}

func (e *Engine) finish(ctx context.Context, log *logger.Logger, result *Result, start time.Time, err error) (*Result, error) {
	result.Duration = time.Since(start)
	result.Status = RunCompleted
	if err != nil {
		result.Status = RunFailed
		result.Err = err
		observability.SetSpanError(ctx, err)
	}
	if e.metrics != nil {
		e.metrics.RecordRun(context.WithoutCancel(ctx), string(result.Status), result.Duration)
	}

	fields := logger.DurationFields("graph.run", result.Duration)
	fields[logger.FieldStatus] = string(result.Status)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		log.Warn("run failed", fields)
		return result, err
	}
	log.Info("run completed", fields)
	return result, nil
}

// contextError maps a done context to TIMEOUT (run scope) or CANCELED.
func contextError(err error, stage int, node string) *errors.AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("run", node)
	}
	return errors.Canceled(stage)
}
