package engine

import (
	"math"
	"time"
)

// Task status values. Terminal once assigned to a TaskResult.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Overall report status values.
const (
	ReportSuccess = "success"
	ReportPartial = "partial"
	ReportFailure = "failure"
)

// Failure modes controlling how the orchestrator reacts to a failed task.
const (
	// FailureContinue records the failure, skips transitive dependents, and
	// lets unaffected branches run to completion.
	FailureContinue = "continue"
	// FailureStop marks all not-yet-started tasks skipped after the first
	// failure and starts no further levels.
	FailureStop = "stop"
	// FailureRollback behaves like FailureStop. A compensation-action model
	// is not defined; the mode is accepted so callers can opt in once one
	// exists.
	FailureRollback = "rollback"
)

// Backoff strategies for retry delays.
const (
	BackoffExponential = "exponential"
	BackoffLinear      = "linear"
)

// Task is a unit of work requested by the caller.
type Task struct {
	// ID is unique within one execution request.
	ID string `json:"id" validate:"required"`
	// Tool names the external executor to invoke.
	Tool string `json:"tool" validate:"required"`
	// Params are the tool parameters. String values may embed ${taskId.path}
	// references to dependency results.
	Params map[string]any `json:"params,omitempty"`
	// DependsOn lists task ids that must succeed before this task runs.
	DependsOn []string `json:"dependsOn,omitempty"`
	// Priority (1-10) orders admission among ready tasks when concurrency is
	// saturated. Higher runs first.
	Priority int `json:"priority,omitempty" validate:"omitempty,min=1,max=10"`
	// TimeoutMs overrides the default per-task timeout, in milliseconds.
	TimeoutMs int64 `json:"timeout,omitempty" validate:"omitempty,min=0"`
	// Retry overrides the default retry policy.
	Retry *RetryPolicy `json:"retryPolicy,omitempty"`
}

// Timeout returns the task-level timeout, or zero if none is set.
func (t *Task) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// RetryPolicy configures retry behavior for a task.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Zero or one means run once, no retry.
	MaxAttempts int `json:"maxAttempts" validate:"omitempty,min=0"`
	// Backoff is the delay strategy: "exponential" or "linear".
	Backoff string `json:"backoff,omitempty" validate:"omitempty,oneof=exponential linear"`
	// InitialDelayMs is the base delay between attempts, in milliseconds.
	InitialDelayMs int64 `json:"initialDelay,omitempty" validate:"omitempty,min=0"`
}

// Delay returns the backoff delay after the given zero-based failed attempt.
// Exponential: initial * 2^attempt. Linear: initial * (attempt+1). The
// exponential product saturates instead of overflowing, so the delay is never
// negative no matter the attempt count or initial delay.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	initial := time.Duration(p.InitialDelayMs) * time.Millisecond
	switch p.Backoff {
	case BackoffLinear:
		return initial * time.Duration(attempt+1)
	default:
		if initial <= 0 {
			return 0
		}
		if attempt >= 63 || initial > time.Duration(math.MaxInt64)>>attempt {
			return time.Duration(math.MaxInt64)
		}
		return initial << attempt
	}
}

// ExecutionConfig controls one execution request.
type ExecutionConfig struct {
	// MaxConcurrent bounds globally in-flight tasks. Default 10.
	MaxConcurrent int `json:"maxConcurrent,omitempty" validate:"omitempty,min=0"`
	// FailureMode is "continue" (default), "stop", or "rollback".
	FailureMode string `json:"failureMode,omitempty" validate:"omitempty,oneof=continue stop rollback"`
	// TimeoutMs is an overall budget in milliseconds, checked between levels.
	// It does not preempt in-flight tasks.
	TimeoutMs int64 `json:"timeout,omitempty" validate:"omitempty,min=0"`
	// EnableRollback is accepted for compatibility; rollback currently
	// behaves like stop.
	EnableRollback bool `json:"enableRollback,omitempty"`
}

// Timeout returns the overall execution budget, or zero if none is set.
func (c *ExecutionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// applyDefaults fills unset fields from engine defaults.
func (c *ExecutionConfig) applyDefaults(defaults Config) {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaults.MaxConcurrent
	}
	if c.FailureMode == "" {
		c.FailureMode = FailureContinue
	}
}

// TaskError is the normalized error recorded on a failed TaskResult.
type TaskError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	// DurationMs is the wall time spent executing, in milliseconds.
	DurationMs int64 `json:"duration"`
	// Result is the tool payload, present only on success.
	Result any `json:"result,omitempty"`
	// Error is present only on failure.
	Error     *TaskError `json:"error,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
}

// Summary counts task outcomes for a report.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Edge is a dependency edge from a task to one of its dependents.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphDiagnostics exposes the computed graph structure on a report.
type GraphDiagnostics struct {
	Levels [][]string `json:"levels"`
	Edges  []Edge     `json:"edges"`
}

// Report is the complete outcome of one execution request. Every submitted
// task appears exactly once in Results.
type Report struct {
	ExecutionID string                 `json:"executionId"`
	Status      string                 `json:"status"`
	StartTime   time.Time              `json:"startTime"`
	EndTime     time.Time              `json:"endTime"`
	DurationMs  int64                  `json:"duration"`
	Results     map[string]*TaskResult `json:"results"`
	Summary     Summary                `json:"summary"`
	Graph       *GraphDiagnostics      `json:"graph,omitempty"`
}
