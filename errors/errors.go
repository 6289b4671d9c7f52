package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// statusClientClosedRequest is reported when the caller abandons a run.
const statusClientClosedRequest = 499

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Registry ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// AlreadyExists creates a new AppError for a resource id that is already taken.
func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("A %s with id %q already exists.", resource, id),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource, "id": id},
	}
}

// --- Structure ---

// DuplicateNode reports a node name collision inside one graph.
func DuplicateNode(name string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateNode, Message: fmt.Sprintf("Node %q already exists.", name),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"node": name},
	}
}

// UnknownNode reports an operation addressed to a node that does not exist.
func UnknownNode(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownNode, Message: fmt.Sprintf("Node %q not found.", name),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"node": name},
	}
}

// UnknownReference reports a positional hint or edge endpoint naming a missing node.
func UnknownReference(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownReference, Message: fmt.Sprintf("Reference to unknown node %q.", name),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"reference": name},
	}
}

// UnknownEdge reports an edge update addressed to an edge that does not exist.
func UnknownEdge(from, to string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownReference, Message: fmt.Sprintf("Edge %s -> %s does not exist.", from, to),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"source": from, "target": to},
	}
}

// CycleDetected reports a change that would introduce a cycle. path lists the
// nodes of the cycle in traversal order, first node repeated at the end.
func CycleDetected(path []string) *AppError {
	return &AppError{
		Code: ErrCodeCycleDetected, Message: fmt.Sprintf("Cycle detected: %s.", strings.Join(path, " -> ")),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"cycle": path},
	}
}

// --- Execution ---

// NodeExecution wraps the failure of one node invocation.
func NodeExecution(node string, cause error) *AppError {
	retryable := false
	if appErr, ok := AsAppError(cause); ok {
		retryable = appErr.Retryable
	}
	return &AppError{
		Code: ErrCodeNodeExecution, Message: fmt.Sprintf("Node %q failed.", node),
		HTTPStatus: http.StatusInternalServerError, Retryable: retryable,
		Details: map[string]any{"node": node}, Cause: cause,
	}
}

// Timeout creates a new AppError for a run or node that exceeded its deadline.
func Timeout(scope, node string) *AppError {
	details := map[string]any{"scope": scope}
	if node != "" {
		details["node"] = node
	}
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("The %s deadline was exceeded.", scope),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Details: details,
	}
}

// Canceled creates a new AppError for a run canceled by its caller.
func Canceled(stage int) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "The run was canceled.",
		HTTPStatus: statusClientClosedRequest,
		Details:    map[string]any{"stage": stage},
	}
}

// LogicNotFound reports a logic reference the resolver cannot serve.
func LogicNotFound(ref, reason string) *AppError {
	return &AppError{
		Code: ErrCodeLogicNotFound, Message: fmt.Sprintf("Logic %q is not available: %s.", ref, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"logic": ref},
	}
}

// LogicError wraps a failure raised by resolved node logic.
func LogicError(ref string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeLogicError, Message: fmt.Sprintf("Logic %q failed.", ref),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"logic": ref}, Cause: cause,
	}
}

// Upstream wraps a failure of the model-completion provider.
func Upstream(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUpstream, Message: fmt.Sprintf("The %s model provider returned an error.", provider),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// --- Request ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// RateLimited creates a new AppError for a client over its request rate.
func RateLimited() *AppError {
	return New(ErrCodeRateLimited, "Rate limit exceeded.", http.StatusTooManyRequests)
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// HasCode reports whether err, or any error it wraps, is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
