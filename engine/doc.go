// Package engine implements the parallel execution engine: it accepts a
// batch of interdependent tasks, builds and validates a dependency graph,
// computes a leveled topological order, and runs each task with variable
// substitution between tasks, per-task timeout enforcement, and configurable
// retry with backoff — while bounding total concurrency and producing a
// complete per-task report even under partial failure.
//
// Tasks reference the results of their dependencies with ${taskId.path...}
// placeholders inside their parameters. Tool invocations are delegated to an
// Invoker; the engine treats tools as opaque asynchronous work.
//
// Timeouts are best-effort: when a task's timeout elapses the engine stops
// waiting and records a failure, but the underlying tool invocation is not
// guaranteed to halt.
package engine
