// Package errors provides lightweight operation-wrapping errors shared
// across the classification pipeline's lower-level components.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional structured
// context. It is the common shape used by component adapters (store,
// embedding provider, LLM provider) before a failure is classified into
// the taxonomy in internal/errors.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	msg := "failed to " + e.Operation
	if e.Component != "" {
		msg += ", component: " + e.Component
	}
	if e.Resource != "" {
		msg += ", resource: " + e.Resource
	}
	if e.Cause != nil {
		msg += ", cause: " + e.Cause.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a simple operation error: "failed to <action>[: cause]".
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &simpleError{msg: "failed to " + action}
	}
	return &simpleError{msg: "failed to " + action + ": " + cause.Error(), cause: cause}
}

// FailedToWithDetails builds an OperationError with component/resource context.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{
		Operation: operation,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with a formatted message, returning nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return &simpleError{msg: msg + ": " + err.Error(), cause: err}
}

// DatabaseError wraps a storage-layer failure.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError wraps a remote-call failure, recording the endpoint.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError describes a single-field validation failure.
func ValidationError(field, reason string) error {
	return &simpleError{msg: fmt.Sprintf("validation failed for field %s: %s", field, reason)}
}

// ConfigurationError describes an invalid configuration value.
func ConfigurationError(key, reason string) error {
	return &simpleError{msg: fmt.Sprintf("configuration error for setting %s: %s", key, reason)}
}

// TimeoutError describes an operation that exceeded its deadline.
func TimeoutError(operation, after string) error {
	return &simpleError{msg: fmt.Sprintf("timeout while %s after %s", operation, after)}
}

// AuthenticationError describes a failed authentication attempt.
func AuthenticationError(reason string) error {
	return &simpleError{msg: fmt.Sprintf("authentication failed: %s", reason)}
}

// AuthorizationError describes insufficient permissions for an action on a resource.
func AuthorizationError(action, resource string) error {
	return &simpleError{msg: fmt.Sprintf("authorization failed: insufficient permissions to %s %s", action, resource)}
}

// ParseError describes a failure to parse a resource in a given format.
func ParseError(resource, format string, cause error) error {
	return &OperationError{Operation: fmt.Sprintf("parse %s as %s", resource, format), Cause: cause}
}

// retryableSubstrings are fragments whose presence in an error message marks
// it as transient. This is a conservative, string-based classifier used only
// where a caller hands back a bare error instead of a typed one.
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"unavailable",
	"temporarily",
	"reset by peer",
	"broken pipe",
}

// IsRetryable reports whether err looks like a transient failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Chain combines non-nil errors into a single error, skipping nils.
// A single error's message is kept as is, with no prefix; two or more are
// joined with "; ". The returned error does not wrap the originals.
func Chain(errs ...error) error {
	var nonNil []string
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e.Error())
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return &simpleError{msg: nonNil[0]}
	default:
		return &simpleError{msg: "multiple errors: " + strings.Join(nonNil, "; ")}
	}
}

type simpleError struct {
	msg   string
	cause error
}

func (e *simpleError) Error() string { return e.msg }
func (e *simpleError) Unwrap() error { return e.cause }
