package validation

import (
	"strings"
	"testing"

	"github.com/dwasnwk/oktyv/engine"
	apperrors "github.com/dwasnwk/oktyv/errors"
)

func TestValidate_Passes(t *testing.T) {
	req := engine.Request{Tasks: []engine.Task{{ID: "a", Tool: "noop"}}}
	if err := Validate(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_EmptyTasks(t *testing.T) {
	err := Validate(&engine.Request{})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if !strings.Contains(appErr.Message, "tasks") {
		t.Fatalf("expected message naming the tasks field, got %q", appErr.Message)
	}
}

func TestValidate_MissingTool(t *testing.T) {
	err := Validate(&engine.Request{Tasks: []engine.Task{{ID: "a"}}})
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	appErr, _ := apperrors.AsAppError(err)
	if appErr.Details == nil {
		t.Fatal("expected field details on the error")
	}
}

func TestValidate_PriorityRange(t *testing.T) {
	err := Validate(&engine.Request{Tasks: []engine.Task{{ID: "a", Tool: "noop", Priority: 11}}})
	if err == nil {
		t.Fatal("expected error for out-of-range priority")
	}
}

func TestValidate_FailureModeValues(t *testing.T) {
	req := engine.Request{
		Tasks:  []engine.Task{{ID: "a", Tool: "noop"}},
		Config: &engine.ExecutionConfig{FailureMode: "explode"},
	}
	if err := Validate(&req); err == nil {
		t.Fatal("expected error for unknown failure mode")
	}

	req.Config.FailureMode = engine.FailureStop
	if err := Validate(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
