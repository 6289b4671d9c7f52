package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry errors
const (
	// ErrCodeNotFound indicates an unknown graph identifier.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a graph identifier is already taken.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Structural errors raised by graph mutations. They never leave a graph
// partially mutated.
const (
	// ErrCodeDuplicateNode indicates a node name collision.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"
	// ErrCodeUnknownNode indicates the addressed node does not exist.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"
	// ErrCodeUnknownReference indicates a hint or edge endpoint names a missing node,
	// or an edge to update does not exist.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"
	// ErrCodeCycleDetected indicates the change would make the graph cyclic.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Execution errors
const (
	// ErrCodeNodeExecution wraps a failure raised while invoking a node.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION_ERROR"
	// ErrCodeTimeout indicates a run or node deadline was exceeded.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the run was canceled at a stage boundary.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeLogicNotFound indicates a logic reference could not be resolved.
	ErrCodeLogicNotFound ErrorCode = "LOGIC_NOT_FOUND"
	// ErrCodeLogicError indicates resolved logic failed while running.
	ErrCodeLogicError ErrorCode = "LOGIC_ERROR"
	// ErrCodeUpstream indicates the model-completion provider failed.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeRateLimited indicates the client exceeded its request rate.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:     true,
	ErrCodeUpstream:    true,
	ErrCodeRateLimited: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
