// Package errors provides the structured error type shared by every graphflow
// package. Each failure carries a machine-readable code, an HTTP status for the
// API layer, a retryable flag and free-form details, and keeps its cause
// reachable through errors.Is / errors.As.
package errors
