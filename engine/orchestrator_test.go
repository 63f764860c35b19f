package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dwasnwk/oktyv/logger"
)

// funcInvoker dispatches invocations to per-tool functions.
type funcInvoker struct {
	mu    sync.Mutex
	fns   map[string]func(ctx context.Context, params map[string]any) (any, error)
	calls []string
}

func newFuncInvoker() *funcInvoker {
	return &funcInvoker{fns: make(map[string]func(ctx context.Context, params map[string]any) (any, error))}
}

func (f *funcInvoker) on(tool string, fn func(ctx context.Context, params map[string]any) (any, error)) {
	f.fns[tool] = fn
}

func (f *funcInvoker) Invoke(ctx context.Context, tool string, params map[string]any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tool)
	f.mu.Unlock()
	fn, ok := f.fns[tool]
	if !ok {
		return nil, fmt.Errorf("no handler for tool %q", tool)
	}
	return fn(ctx, params)
}

func newTestOrchestrator(invoker Invoker) *Orchestrator {
	return New(invoker, Config{}, logger.NewDefault("test"))
}

func TestExecute_DiamondSuccess(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("noop", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"ok": true}, nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		task("a"),
		task("b", "a"),
		task("c", "a"),
		task("d", "b", "c"),
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != ReportSuccess {
		t.Fatalf("expected success, got %s", report.Status)
	}
	want := Summary{Total: 4, Succeeded: 4}
	if report.Summary != want {
		t.Fatalf("expected %+v, got %+v", want, report.Summary)
	}
	if len(report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.Results))
	}
	if report.ExecutionID == "" {
		t.Fatal("expected a non-empty execution id")
	}
	if report.Graph == nil || len(report.Graph.Levels) != 3 {
		t.Fatalf("expected 3 levels in diagnostics, got %+v", report.Graph)
	}
}

func TestExecute_EmptyRequest(t *testing.T) {
	orch := newTestOrchestrator(newFuncInvoker())
	_, err := orch.Execute(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestExecute_CycleRejectedBeforeRun(t *testing.T) {
	invoker := newFuncInvoker()
	orch := newTestOrchestrator(invoker)

	_, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		task("a", "b"),
		task("b", "a"),
	}})
	var circ *CircularDependencyError
	if !errors.As(err, &circ) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("no task should run on a cyclic request, got %d calls", len(invoker.calls))
	}
}

func TestExecute_ContinueSkipsDependents(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return "fine", nil
	})
	invoker.on("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "ok"},
		{ID: "b", Tool: "boom", DependsOn: []string{"a"}},
		{ID: "c", Tool: "ok", DependsOn: []string{"a"}},
		{ID: "d", Tool: "ok", DependsOn: []string{"b"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Status != ReportPartial {
		t.Fatalf("expected partial, got %s", report.Status)
	}
	want := Summary{Total: 4, Succeeded: 2, Failed: 1, Skipped: 1}
	if report.Summary != want {
		t.Fatalf("expected %+v, got %+v", want, report.Summary)
	}
	if report.Results["d"].Status != StatusSkipped {
		t.Fatalf("expected d skipped, got %s", report.Results["d"].Status)
	}
	if report.Results["b"].Error == nil || report.Results["b"].Error.Message != "exploded" {
		t.Fatalf("expected normalized error on b, got %+v", report.Results["b"].Error)
	}
}

func TestExecute_SkippedResultsAreTimestamped(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})
	invoker.on("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	before := time.Now()
	report, err := orch.Execute(context.Background(), Request{
		Tasks: []Task{
			{ID: "a", Tool: "boom"},
			{ID: "b", Tool: "ok", DependsOn: []string{"a"}},
			{ID: "c", Tool: "ok", DependsOn: []string{"b"}},
		},
		Config: &ExecutionConfig{FailureMode: FailureStop},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"b", "c"} {
		r := report.Results[id]
		if r.Status != StatusSkipped {
			t.Fatalf("expected %s skipped, got %s", id, r.Status)
		}
		if r.StartTime.Before(before) || r.StartTime.IsZero() {
			t.Fatalf("expected %s stamped with skip time, got %s", id, r.StartTime)
		}
		if r.EndTime.Before(r.StartTime) {
			t.Fatalf("expected %s end >= start, got %s < %s", id, r.EndTime, r.StartTime)
		}
	}
}

func TestExecute_StopHaltsFollowingLevels(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return "fine", nil
	})
	invoker.on("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{
		Tasks: []Task{
			{ID: "a", Tool: "boom"},
			{ID: "b", Tool: "ok"},
			{ID: "c", Tool: "ok", DependsOn: []string{"b"}},
		},
		Config: &ExecutionConfig{FailureMode: FailureStop},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a and b share level 0; b still runs. c's level never starts.
	if report.Results["b"].Status != StatusSuccess {
		t.Fatalf("expected b success, got %s", report.Results["b"].Status)
	}
	if report.Results["c"].Status != StatusSkipped {
		t.Fatalf("expected c skipped, got %s", report.Results["c"].Status)
	}
	if report.Status != ReportPartial {
		t.Fatalf("expected partial, got %s", report.Status)
	}
}

func TestExecute_AllFailedIsFailure(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "boom"},
		{ID: "b", Tool: "boom"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != ReportFailure {
		t.Fatalf("expected failure, got %s", report.Status)
	}
}

func TestExecute_VariableFlowBetweenLevels(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("produce", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"userId": float64(42)}, nil
	})
	var got any
	invoker.on("consume", func(ctx context.Context, params map[string]any) (any, error) {
		got = params["id"]
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "produce"},
		{ID: "b", Tool: "consume", DependsOn: []string{"a"}, Params: map[string]any{"id": "${a.result.userId}"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != ReportSuccess {
		t.Fatalf("expected success, got %s", report.Status)
	}
	if got != float64(42) {
		t.Fatalf("expected resolved 42, got %T %v", got, got)
	}
}

func TestExecute_ResolutionFailureFailsTask(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("produce", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"present": 1}, nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "produce"},
		{ID: "b", Tool: "produce", DependsOn: []string{"a"}, Params: map[string]any{"v": "${a.result.absent}"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := report.Results["b"]
	if b.Status != StatusFailed {
		t.Fatalf("expected b failed, got %s", b.Status)
	}
	if b.Error.Code != "VARIABLE_RESOLUTION_ERROR" {
		t.Fatalf("expected VARIABLE_RESOLUTION_ERROR, got %s", b.Error.Code)
	}
	if len(invoker.calls) != 1 {
		t.Fatalf("tool should not be invoked for b, got %d calls", len(invoker.calls))
	}
}

func TestExecute_ConcurrencyBound(t *testing.T) {
	var inFlight, peak int32
	invoker := newFuncInvoker()
	invoker.on("slow", func(ctx context.Context, params map[string]any) (any, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	tasks := make([]Task, 6)
	for i := range tasks {
		tasks[i] = Task{ID: fmt.Sprintf("t%d", i), Tool: "slow"}
	}

	_, err := orch.Execute(context.Background(), Request{
		Tasks:  tasks,
		Config: &ExecutionConfig{MaxConcurrent: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", p)
	}
}

func TestExecute_PriorityAdmission(t *testing.T) {
	var order []string
	var mu sync.Mutex
	invoker := newFuncInvoker()
	invoker.on("record", func(ctx context.Context, params map[string]any) (any, error) {
		mu.Lock()
		order = append(order, params["who"].(string))
		mu.Unlock()
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	_, err := orch.Execute(context.Background(), Request{
		Tasks: []Task{
			{ID: "low", Tool: "record", Priority: 1, Params: map[string]any{"who": "low"}},
			{ID: "high", Tool: "record", Priority: 10, Params: map[string]any{"who": "high"}},
			{ID: "mid", Tool: "record", Priority: 5, Params: map[string]any{"who": "mid"}},
		},
		Config: &ExecutionConfig{MaxConcurrent: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "high" {
		t.Fatalf("expected high first, got %v", order)
	}
}

// Admission order must be deterministic under a saturated gate, not merely
// spawn-ordered: with a single slot, tasks must start in strictly descending
// priority every run.
func TestExecute_PriorityAdmissionDeterministic(t *testing.T) {
	const ntasks = 16
	for run := 0; run < 20; run++ {
		var order []int
		var mu sync.Mutex
		invoker := newFuncInvoker()
		invoker.on("record", func(ctx context.Context, params map[string]any) (any, error) {
			mu.Lock()
			order = append(order, int(params["prio"].(float64)))
			mu.Unlock()
			return nil, nil
		})
		orch := newTestOrchestrator(invoker)

		tasks := make([]Task, ntasks)
		for i := range tasks {
			// Submission order is ascending priority, the worst case for
			// spawn-order admission.
			prio := i%10 + 1
			tasks[i] = Task{
				ID:       fmt.Sprintf("t%02d", i),
				Tool:     "record",
				Priority: prio,
				Params:   map[string]any{"prio": float64(prio)},
			}
		}

		_, err := orch.Execute(context.Background(), Request{
			Tasks:  tasks,
			Config: &ExecutionConfig{MaxConcurrent: 1},
		})
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}

		mu.Lock()
		if len(order) != ntasks {
			mu.Unlock()
			t.Fatalf("run %d: expected %d invocations, got %d", run, ntasks, len(order))
		}
		for i := 1; i < len(order); i++ {
			if order[i] > order[i-1] {
				mu.Unlock()
				t.Fatalf("run %d: priority inversion at position %d: %v", run, i, order)
			}
		}
		mu.Unlock()
	}
}

func TestExecute_TaskTimeoutRecorded(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("hang", func(ctx context.Context, params map[string]any) (any, error) {
		time.Sleep(300 * time.Millisecond)
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "hang", TimeoutMs: 20},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := report.Results["a"]
	if a.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", a.Status)
	}
	if a.Error.Code != "TASK_TIMEOUT" {
		t.Fatalf("expected TASK_TIMEOUT, got %s", a.Error.Code)
	}
}

func TestExecute_PanicNormalized(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("panic", func(ctx context.Context, params map[string]any) (any, error) {
		panic("boom")
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "panic"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := report.Results["a"]
	if a.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", a.Status)
	}
	if a.Error.Message != "boom" {
		t.Fatalf("expected panic message preserved, got %q", a.Error.Message)
	}
	if a.Error.Stack == "" {
		t.Fatal("expected a stack on a panic error")
	}
}

func TestExecute_BudgetSkipsLaterLevels(t *testing.T) {
	invoker := newFuncInvoker()
	invoker.on("slow", func(ctx context.Context, params map[string]any) (any, error) {
		time.Sleep(60 * time.Millisecond)
		return nil, nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{
		Tasks: []Task{
			{ID: "a", Tool: "slow"},
			{ID: "b", Tool: "slow", DependsOn: []string{"a"}},
		},
		Config: &ExecutionConfig{TimeoutMs: 30},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Results["a"].Status != StatusSuccess {
		t.Fatalf("expected a to finish, got %s", report.Results["a"].Status)
	}
	if report.Results["b"].Status != StatusSkipped {
		t.Fatalf("expected b skipped on exhausted budget, got %s", report.Results["b"].Status)
	}
}

func TestExecute_RetryOnFlakyTool(t *testing.T) {
	var calls int32
	invoker := newFuncInvoker()
	invoker.on("flaky", func(ctx context.Context, params map[string]any) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})
	orch := newTestOrchestrator(invoker)

	report, err := orch.Execute(context.Background(), Request{Tasks: []Task{
		{ID: "a", Tool: "flaky", Retry: &RetryPolicy{MaxAttempts: 3, InitialDelayMs: 1}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Results["a"].Status != StatusSuccess {
		t.Fatalf("expected success after retries, got %s", report.Results["a"].Status)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
