// Package errors provides unified error handling for the oktyv server.
// It implements structured error types with machine-readable codes, HTTP
// status mapping, and retryable detection. Every error that crosses the
// protocol boundary is an *AppError.
package errors
