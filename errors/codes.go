package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Execution plan errors (pre-execution, fatal for the whole request)
const (
	// ErrCodeDuplicateTask indicates two tasks share the same id.
	ErrCodeDuplicateTask ErrorCode = "DUPLICATE_TASK_ID"
	// ErrCodeMissingDependency indicates a task depends on an unknown task id.
	ErrCodeMissingDependency ErrorCode = "MISSING_DEPENDENCY"
	// ErrCodeCircularDependency indicates the dependency graph contains a cycle.
	ErrCodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
)

// Per-task errors (recorded on the task result, never fatal by themselves)
const (
	// ErrCodeTaskTimeout indicates a task exceeded its timeout.
	ErrCodeTaskTimeout ErrorCode = "TASK_TIMEOUT"
	// ErrCodeVariableResolution indicates a ${...} reference could not be resolved.
	ErrCodeVariableResolution ErrorCode = "VARIABLE_RESOLUTION_ERROR"
	// ErrCodeToolNotFound indicates the named tool is not registered.
	ErrCodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	// ErrCodeToolFailed indicates a tool invocation returned an error.
	ErrCodeToolFailed ErrorCode = "TOOL_FAILED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the authentication token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Resource and internal errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeUnknown indicates an error that could not be classified.
	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeTaskTimeout:        true,
	ErrCodeToolFailed:         true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
