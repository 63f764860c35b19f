package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/dwasnwk/oktyv/errors"
	"github.com/dwasnwk/oktyv/logger"
	"github.com/dwasnwk/oktyv/observability"
)

// Invoker executes named tools. The engine treats invocations as opaque
// asynchronous work; what a tool does and whether it is concurrency-safe is
// the tool's responsibility.
type Invoker interface {
	Invoke(ctx context.Context, tool string, params map[string]any) (any, error)
}

// Config holds engine-wide defaults applied when an execution request leaves
// a field unset.
type Config struct {
	// MaxConcurrent bounds globally in-flight tasks. Default 10.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// DefaultTaskTimeout is the per-task timeout in seconds when a task sets
	// none. Default 30.
	DefaultTaskTimeout int `yaml:"default_task_timeout" mapstructure:"default_task_timeout"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.DefaultTaskTimeout <= 0 {
		c.DefaultTaskTimeout = 30
	}
}

// Request is one execution request: a batch of tasks plus optional config.
type Request struct {
	Tasks  []Task           `json:"tasks" validate:"required,min=1,dive"`
	Config *ExecutionConfig `json:"config,omitempty"`
}

// Orchestrator drives execution requests level by level. A single
// Orchestrator serves concurrent requests; all per-request state lives in the
// execution, never on the receiver.
type Orchestrator struct {
	invoker Invoker
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches task metrics recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator executing tools through the given invoker.
func New(invoker Invoker, cfg Config, log *logger.Logger, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	o := &Orchestrator{
		invoker: invoker,
		cfg:     cfg,
		log:     log.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// execution is the per-request state: the validated graph, the accumulating
// result map, and the concurrency gate shared by all levels.
type execution struct {
	id      string
	graph   *Graph
	levels  [][]string
	config  ExecutionConfig
	sem     chan struct{}
	mu      sync.Mutex
	results map[string]*TaskResult
}

// Execute validates the request, runs it level by level, and returns the
// report. Validation failures (empty request, duplicate ids, missing
// dependencies, cycles) return an error and no report: no task has run.
// Once validation passes, Execute itself does not fail; every task outcome
// is in the report.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Report, error) {
	if len(req.Tasks) == 0 {
		return nil, apperrors.Validation("execution request contains no tasks")
	}

	graph, levels, err := ValidateAndBuild(req.Tasks)
	if err != nil {
		return nil, err
	}

	config := ExecutionConfig{}
	if req.Config != nil {
		config = *req.Config
	}
	config.applyDefaults(o.cfg)

	exec := &execution{
		id:      uuid.NewString(),
		graph:   graph,
		levels:  levels,
		config:  config,
		sem:     make(chan struct{}, config.MaxConcurrent),
		results: make(map[string]*TaskResult, graph.Len()),
	}

	ctx, span := observability.StartSpan(ctx, "engine.execute")
	defer span.End()
	observability.SetSpanAttribute(ctx, "execution.id", exec.id)
	observability.SetSpanAttribute(ctx, "execution.tasks", graph.Len())

	o.log.Info("execution started", logger.Fields(
		logger.FieldExecution, exec.id,
		"tasks", graph.Len(),
		"levels", len(levels),
		"max_concurrent", config.MaxConcurrent,
	))

	start := time.Now()
	o.runLevels(ctx, exec, start)
	end := time.Now()

	report := o.assembleReport(exec, start, end)

	o.log.Info("execution completed", logger.Fields(
		logger.FieldExecution, exec.id,
		logger.FieldStatus, report.Status,
		logger.FieldDuration, report.DurationMs,
		"succeeded", report.Summary.Succeeded,
		"failed", report.Summary.Failed,
		"skipped", report.Summary.Skipped,
	))
	observability.SetSpanAttribute(ctx, "execution.status", report.Status)
	if o.metrics != nil {
		o.metrics.RecordExecution(ctx, report.Status)
	}

	return report, nil
}

// runLevels iterates levels in ascending order with a hard barrier: level
// N+1 never starts before every task in level N reached a terminal state.
func (o *Orchestrator) runLevels(ctx context.Context, exec *execution, start time.Time) {
	abort := false

	for levelIdx, level := range exec.levels {
		if abort || o.budgetExhausted(exec, start) {
			o.skipRemaining(exec, level)
			continue
		}

		// Snapshot settled results before the level starts. Dependencies of
		// every task here are terminal, so the snapshot is complete for them
		// and immune to sibling writes during the level.
		snapshot := exec.snapshot()

		toRun := o.admissionOrder(exec, level)

		var wg sync.WaitGroup
		for _, id := range toRun {
			task := exec.graph.Task(id)

			if reason := o.skipReason(exec, snapshot, id); reason != "" {
				exec.record(skippedResult(id))
				o.log.Debug("task skipped", logger.Fields(
					logger.FieldExecution, exec.id,
					logger.FieldTask, id,
					"reason", reason,
				))
				continue
			}

			// The slot is acquired here, in the scheduling loop, so that
			// admission under a saturated gate follows admissionOrder instead
			// of goroutine arrival order.
			exec.sem <- struct{}{}
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()
				defer func() { <-exec.sem }()

				result := o.runTask(ctx, exec, t, snapshot)
				exec.record(result)
			}(task)
		}
		wg.Wait()

		if exec.config.FailureMode != FailureContinue && exec.anyFailed() {
			o.log.Warn("stopping after failed level", logger.Fields(
				logger.FieldExecution, exec.id,
				logger.FieldLevel, levelIdx,
				"failure_mode", exec.config.FailureMode,
			))
			abort = true
		}
	}
}

// admissionOrder sorts a level's tasks by descending priority so that when
// the concurrency gate is saturated, higher priority tasks acquire slots
// first. The sort is stable: equal priorities keep submission order.
func (o *Orchestrator) admissionOrder(exec *execution, level []string) []string {
	ordered := make([]string, len(level))
	copy(ordered, level)
	sort.SliceStable(ordered, func(i, j int) bool {
		return exec.graph.Task(ordered[i]).Priority > exec.graph.Task(ordered[j]).Priority
	})
	return ordered
}

// skipReason returns a non-empty reason if the task must be skipped because a
// dependency did not succeed. Dependency results are all terminal by the
// level barrier.
func (o *Orchestrator) skipReason(exec *execution, snapshot map[string]*TaskResult, id string) string {
	for _, dep := range exec.graph.Dependencies(id) {
		result, ok := snapshot[dep]
		if !ok {
			return "dependency " + dep + " was not executed"
		}
		if result.Status != StatusSuccess {
			return "dependency " + dep + " " + result.Status
		}
	}
	return ""
}

// runTask resolves the task's params, applies effective timeout and retry
// policy, and invokes the tool. All errors are caught at this boundary and
// normalized onto the result; nothing propagates.
func (o *Orchestrator) runTask(ctx context.Context, exec *execution, task *Task, snapshot map[string]*TaskResult) *TaskResult {
	ctx, span := observability.StartSpan(ctx, "engine.task")
	defer span.End()
	observability.SetSpanAttribute(ctx, "task.id", task.ID)
	observability.SetSpanAttribute(ctx, "task.tool", task.Tool)

	started := time.Now()
	result := &TaskResult{TaskID: task.ID, StartTime: started}

	finish := func(status string, payload any, err error) *TaskResult {
		result.EndTime = time.Now()
		result.DurationMs = result.EndTime.Sub(started).Milliseconds()
		result.Status = status
		if err != nil {
			result.Error = NormalizeError(err)
			observability.SetSpanError(ctx, err)
			o.log.Error("task failed", logger.Fields(
				logger.FieldExecution, exec.id,
				logger.FieldTask, task.ID,
				logger.FieldTool, task.Tool,
				logger.FieldDuration, result.DurationMs,
				logger.FieldError, result.Error.Message,
				"error_code", result.Error.Code,
			))
		} else {
			result.Result = payload
			o.log.Debug("task completed", logger.Fields(
				logger.FieldExecution, exec.id,
				logger.FieldTask, task.ID,
				logger.FieldTool, task.Tool,
				logger.FieldDuration, result.DurationMs,
			))
		}
		if o.metrics != nil {
			o.metrics.RecordTask(ctx, task.Tool, status, result.EndTime.Sub(started))
		}
		return result
	}

	resolved, err := ResolveParams(task.Params, snapshot)
	if err != nil {
		return finish(StatusFailed, nil, err)
	}

	timeout := task.Timeout()
	if timeout <= 0 {
		timeout = time.Duration(o.cfg.DefaultTaskTimeout) * time.Second
	}

	payload, err := RunWithRetry(ctx, func(ctx context.Context) (any, error) {
		return RunWithTimeout(ctx, func(ctx context.Context) (out any, opErr error) {
			defer func() {
				if r := recover(); r != nil {
					opErr = capturePanic(r)
				}
			}()
			return o.invoker.Invoke(ctx, task.Tool, resolved)
		}, timeout, task.ID)
	}, task.Retry, task.ID)

	if err != nil {
		return finish(StatusFailed, nil, err)
	}
	return finish(StatusSuccess, payload, nil)
}

// budgetExhausted checks the overall execution budget between levels. It is
// a budget, not a preemption: in-flight tasks are never interrupted by it.
func (o *Orchestrator) budgetExhausted(exec *execution, start time.Time) bool {
	budget := exec.config.Timeout()
	return budget > 0 && time.Since(start) >= budget
}

// skipRemaining records a skipped result for every task in the level that
// does not have one yet.
func (o *Orchestrator) skipRemaining(exec *execution, level []string) {
	for _, id := range level {
		exec.mu.Lock()
		_, done := exec.results[id]
		exec.mu.Unlock()
		if !done {
			exec.record(skippedResult(id))
		}
	}
}

// assembleReport computes the summary and overall status. Every submitted
// task is accounted for exactly once.
func (o *Orchestrator) assembleReport(exec *execution, start, end time.Time) *Report {
	summary := Summary{Total: exec.graph.Len()}
	for _, result := range exec.results {
		switch result.Status {
		case StatusSuccess:
			summary.Succeeded++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
	}

	attempted := summary.Total - summary.Skipped
	status := ReportPartial
	switch {
	case summary.Succeeded == summary.Total:
		status = ReportSuccess
	case attempted == 0 || summary.Succeeded == 0:
		status = ReportFailure
	}

	return &Report{
		ExecutionID: exec.id,
		Status:      status,
		StartTime:   start,
		EndTime:     end,
		DurationMs:  end.Sub(start).Milliseconds(),
		Results:     exec.results,
		Summary:     summary,
		Graph: &GraphDiagnostics{
			Levels: exec.levels,
			Edges:  exec.graph.Edges(),
		},
	}
}

// skippedResult builds a terminal skipped result stamped with the skip time
// so report timestamps are meaningful for every status.
func skippedResult(id string) *TaskResult {
	now := time.Now()
	return &TaskResult{TaskID: id, Status: StatusSkipped, StartTime: now, EndTime: now}
}

// snapshot copies the settled result map for lock-free reads during a level.
func (e *execution) snapshot() map[string]*TaskResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*TaskResult, len(e.results))
	for id, result := range e.results {
		out[id] = result
	}
	return out
}

// record appends a terminal result. Results are append-only; a task's status
// is assigned exactly once.
func (e *execution) record(result *TaskResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[result.TaskID] = result
}

func (e *execution) anyFailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, result := range e.results {
		if result.Status == StatusFailed {
			return true
		}
	}
	return false
}
