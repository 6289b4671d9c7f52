// Package dag compiles graph snapshots into staged plans and executes them.
//
// Compile layers the nodes of a graph.Snapshot with Kahn's algorithm into
// stages sorted lexically. The Engine binds every planned node (function
// nodes through a logic.Resolver, agent nodes through the model router),
// then runs stage after stage: the nodes of one stage run concurrently on a
// bounded pool against the same snapshot of the state, and their deltas are
// merged through the plan's reducer schema in stage order.
//
//	plan, err := dag.Compile(def.Snapshot(), state.DefaultSchema())
//	engine := dag.NewEngine(cfg, dag.Binder{Logic: resolver, Models: router})
//	result, err := engine.Execute(ctx, plan, []any{"hello"})
package dag
