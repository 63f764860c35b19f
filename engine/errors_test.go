package engine

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

func TestNormalizeError_TypedErrors(t *testing.T) {
	te := NormalizeError(&VariableResolutionError{Reference: "a.result", Reason: "gone"})
	if te.Code != "VARIABLE_RESOLUTION_ERROR" {
		t.Fatalf("expected VARIABLE_RESOLUTION_ERROR, got %s", te.Code)
	}

	te = NormalizeError(&TaskTimeoutError{TaskID: "a", Timeout: time.Second})
	if te.Code != "TASK_TIMEOUT" {
		t.Fatalf("expected TASK_TIMEOUT, got %s", te.Code)
	}
}

func TestNormalizeError_AppErrorPassthrough(t *testing.T) {
	te := NormalizeError(apperrors.ToolNotFound("ghost"))
	if te.Code != "TOOL_NOT_FOUND" {
		t.Fatalf("expected TOOL_NOT_FOUND, got %s", te.Code)
	}
}

func TestNormalizeError_PlainError(t *testing.T) {
	te := NormalizeError(errors.New("something broke"))
	if te.Code != "ERROR" {
		t.Fatalf("expected ERROR, got %s", te.Code)
	}
	if te.Message != "something broke" {
		t.Fatalf("unexpected message: %s", te.Message)
	}
}

func TestNormalizeError_PanicValues(t *testing.T) {
	// A string panic keeps the string as the message.
	te := NormalizeError(capturePanic("oops"))
	if te.Code != "ERROR" || te.Message != "oops" {
		t.Fatalf("unexpected: %+v", te)
	}
	if te.Stack == "" {
		t.Fatal("expected stack")
	}

	// An error panic is normalized like the error itself.
	te = NormalizeError(capturePanic(&TaskTimeoutError{TaskID: "a", Timeout: time.Second}))
	if te.Code != "TASK_TIMEOUT" {
		t.Fatalf("expected TASK_TIMEOUT, got %s", te.Code)
	}

	// Arbitrary values are rendered with the unknown code.
	te = NormalizeError(capturePanic(map[string]int{"n": 1}))
	if te.Code != "UNKNOWN_ERROR" {
		t.Fatalf("expected UNKNOWN_ERROR, got %s", te.Code)
	}
}

func TestAsAppError_GraphErrors(t *testing.T) {
	appErr := AsAppError(&DuplicateTaskIDError{TaskID: "a"})
	if appErr == nil || appErr.Code != apperrors.ErrCodeDuplicateTask {
		t.Fatalf("unexpected: %+v", appErr)
	}
	if appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400, got %d", appErr.HTTPStatus)
	}

	appErr = AsAppError(&CircularDependencyError{Cycle: []string{"a", "b", "a"}})
	if appErr == nil || appErr.Code != apperrors.ErrCodeCircularDependency {
		t.Fatalf("unexpected: %+v", appErr)
	}

	if AsAppError(errors.New("plain")) != nil {
		t.Fatal("expected nil for a non-engine error")
	}
}
