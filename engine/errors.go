package engine

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

// DuplicateTaskIDError reports two tasks sharing an id. Pre-execution, fatal
// for the whole request.
type DuplicateTaskIDError struct {
	TaskID string
}

func (e *DuplicateTaskIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.TaskID)
}

// MissingDependencyError reports a dependency on a task id that does not
// exist in the request. Pre-execution, fatal.
type MissingDependencyError struct {
	TaskID    string
	MissingID string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.MissingID)
}

// CircularDependencyError reports a dependency cycle. Cycle is an ordered
// list of task ids whose first and last elements are equal; a self-dependency
// yields [A, A]. Pre-execution, fatal.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// VariableResolutionError reports a ${...} reference that could not be
// resolved. Recorded as the owning task's failure, never process-fatal.
type VariableResolutionError struct {
	Reference string
	Reason    string
}

func (e *VariableResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Reference, e.Reason)
}

// TaskTimeoutError reports a task that exceeded its timeout. The underlying
// tool invocation may still be running; the engine only stops waiting.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %q timed out after %s", e.TaskID, e.Timeout)
}

// panicError carries a recovered panic value across the task boundary.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// NormalizeError maps any error reaching the task boundary to the TaskError
// recorded on the TaskResult.
func NormalizeError(err error) *TaskError {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *VariableResolutionError:
		return &TaskError{Code: string(apperrors.ErrCodeVariableResolution), Message: e.Error()}
	case *TaskTimeoutError:
		return &TaskError{Code: string(apperrors.ErrCodeTaskTimeout), Message: e.Error()}
	case *panicError:
		if msg, ok := e.value.(string); ok {
			return &TaskError{Code: "ERROR", Message: msg, Stack: string(e.stack)}
		}
		if inner, ok := e.value.(error); ok {
			te := NormalizeError(inner)
			te.Stack = string(e.stack)
			return te
		}
		return &TaskError{
			Code:    string(apperrors.ErrCodeUnknown),
			Message: fmt.Sprintf("%v", e.value),
			Stack:   string(e.stack),
		}
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return &TaskError{Code: string(appErr.Code), Message: appErr.Message}
	}
	return &TaskError{Code: "ERROR", Message: err.Error()}
}

// AsAppError converts engine validation errors to AppErrors for the
// transport layer. Returns nil for errors that are not engine-typed.
func AsAppError(err error) *apperrors.AppError {
	switch e := err.(type) {
	case *DuplicateTaskIDError:
		return apperrors.New(apperrors.ErrCodeDuplicateTask, e.Error(), 400).
			WithDetail("taskId", e.TaskID)
	case *MissingDependencyError:
		return apperrors.New(apperrors.ErrCodeMissingDependency, e.Error(), 400).
			WithDetail("taskId", e.TaskID).
			WithDetail("missingId", e.MissingID)
	case *CircularDependencyError:
		return apperrors.New(apperrors.ErrCodeCircularDependency, e.Error(), 400).
			WithDetail("cycle", e.Cycle)
	}
	return nil
}

// capturePanic converts a recovered panic value into a panicError.
func capturePanic(v any) error {
	return &panicError{value: v, stack: debug.Stack()}
}
