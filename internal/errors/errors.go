// Package errors implements a closed set of error kinds distinguishing
// caller mistakes, transient upstream failures, and breaker-open
// fast-fails, each carrying an HTTP status code for the (out-of-scope)
// HTTP collaborator that eventually surfaces it.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType is a closed enumeration of the kinds a pipeline component can fail with.
type ErrorType string

const (
	ErrorTypeInvalidInput       ErrorType = "invalid_input"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeDuplicate          ErrorType = "duplicate"
	ErrorTypeRateLimited        ErrorType = "rate_limited"
	ErrorTypeUnavailable        ErrorType = "unavailable"
	ErrorTypeUpstream           ErrorType = "upstream"
	ErrorTypeParseError         ErrorType = "parse_error"
	ErrorTypeServiceUnavailable ErrorType = "service_unavailable"
	ErrorTypeAuth               ErrorType = "auth"
	ErrorTypeInternal           ErrorType = "internal"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeInvalidInput:       http.StatusBadRequest,
	ErrorTypeNotFound:           http.StatusNotFound,
	ErrorTypeDuplicate:          http.StatusConflict,
	ErrorTypeRateLimited:        http.StatusTooManyRequests,
	ErrorTypeUnavailable:        http.StatusServiceUnavailable,
	ErrorTypeUpstream:           http.StatusBadGateway,
	ErrorTypeParseError:         http.StatusUnprocessableEntity,
	ErrorTypeServiceUnavailable: http.StatusServiceUnavailable,
	ErrorTypeAuth:               http.StatusUnauthorized,
	ErrorTypeInternal:           http.StatusInternalServerError,
}

// retryableTypes are the kinds the retry policy consumes internally; a
// ServiceUnavailable (breaker open) fails fast and bypasses retry entirely.
var retryableTypes = map[ErrorType]bool{
	ErrorTypeRateLimited: true,
	ErrorTypeUnavailable: true,
	ErrorTypeUpstream:    true,
	ErrorTypeParseError:  true,
}

// AppError is a typed, HTTP-status-aware error.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusCodeFor(t)}
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusCodeFor(t), Cause: cause}
}

func Wrapf(cause error, t ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusCodeFor(t ErrorType) int {
	if code, ok := statusCodes[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// NewInvalidInputError reports a caller-supplied input that fails validation.
func NewInvalidInputError(message string) *AppError {
	return New(ErrorTypeInvalidInput, message)
}

// NewNotFoundError reports a missing resource by kind.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, resource+" not found")
}

// NewDuplicateError reports a resource that already exists (e.g. content-hash collision).
func NewDuplicateError(resource string) *AppError {
	return New(ErrorTypeDuplicate, resource+" already exists")
}

// NewAuthError reports a non-retryable authorization failure.
func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

// NewUpstreamError wraps a remote-provider failure that is not cleanly
// classifiable as rate-limited or unavailable.
func NewUpstreamError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeUpstream, "upstream call failed: %s", operation)
}

// NewRateLimitedError reports a 429-equivalent from a remote provider.
func NewRateLimitedError(message string) *AppError {
	return New(ErrorTypeRateLimited, message)
}

// NewServiceUnavailableError reports a fast-fail caused by an open circuit breaker.
func NewServiceUnavailableError(service string) *AppError {
	return New(ErrorTypeServiceUnavailable, service+" is unavailable (circuit open)")
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Type == t
}

// GetType returns err's ErrorType, or ErrorTypeInternal if err is not an *AppError.
func GetType(err error) ErrorType {
	if ae, ok := err.(*AppError); ok {
		return ae.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the HTTP status code associated with err.
func GetStatusCode(err error) int {
	if ae, ok := err.(*AppError); ok {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether err's kind is one the retry policy should
// retry. ServiceUnavailable is deliberately excluded: a breaker-open
// rejection fails fast and bypasses retry.
func IsRetryable(err error) bool {
	ae, ok := err.(*AppError)
	return ok && retryableTypes[ae.Type]
}

// errorMessages holds user-safe messages for error types whose raw Message
// may contain internal details unsuitable for an external caller.
type errorMessages struct {
	ResourceNotFound        string
	AuthenticationFailed    string
	OperationTimeout        string
	RateLimitExceeded       string
	ConcurrentModification  string
}

// ErrorMessages is the canonical set of user-safe error messages.
var ErrorMessages = errorMessages{
	ResourceNotFound:       "The requested resource was not found",
	AuthenticationFailed:   "Authentication failed",
	OperationTimeout:       "The operation timed out",
	RateLimitExceeded:      "Rate limit exceeded, please retry later",
	ConcurrentModification: "The resource was modified concurrently",
}

// SafeErrorMessage returns a message safe to surface to an external caller:
// validation messages pass through verbatim (they describe the caller's own
// input), everything else maps to a generic, non-leaking message.
func SafeErrorMessage(err error) string {
	ae, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}
	switch ae.Type {
	case ErrorTypeInvalidInput:
		return ae.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeRateLimited:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeDuplicate:
		return ErrorMessages.ConcurrentModification
	default:
		return "An internal error occurred"
	}
}

// LogFields returns structured fields describing err, suitable for
// logrus.WithFields. Regular (non-AppError) errors contribute only "error".
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	ae, ok := err.(*AppError)
	if !ok {
		return fields
	}
	fields["error_type"] = string(ae.Type)
	fields["status_code"] = ae.StatusCode
	if ae.Details != "" {
		fields["error_details"] = ae.Details
	}
	if ae.Cause != nil {
		fields["underlying_error"] = ae.Cause.Error()
	}
	return fields
}

// Chain combines non-nil errors. Zero errors returns nil; one returns that
// error unwrapped; two or more join their messages with " -> ".
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s", strings.Join(msgs, " -> "))
	}
}
