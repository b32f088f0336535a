package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindBadRequest        Kind = "bad_request"
	KindInvalidTransition Kind = "invalid_transition"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// internalMessage is rendered for every internal error; causes stay server-side.
const internalMessage = "internal server error"

// AppError captures rich error context shared across transports.
type AppError struct {
	kind     Kind
	message  string
	messages []string
	details  map[string]any
	cause    error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// WithMessages appends additional human-readable messages.
func WithMessages(messages ...string) Option {
	return func(appErr *AppError) {
		appErr.messages = append(appErr.messages, messages...)
	}
}

// New constructs a new AppError with the supplied kind and message.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the primary human-readable message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Messages returns every message safe to show a caller. Internal errors collapse to a
// generic message regardless of how they were built.
func (e *AppError) Messages() []string {
	if e == nil {
		return nil
	}
	if e.kind == KindInternal {
		return []string{internalMessage}
	}
	if len(e.messages) > 0 {
		return append([]string(nil), e.messages...)
	}
	return []string{e.message}
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil || e.kind == KindInternal {
		return nil
	}
	return e.details
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.kind {
	case KindValidation, KindBadRequest, KindInvalidTransition:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if e == nil {
		return codes.Internal
	}
	switch e.kind {
	case KindValidation, KindBadRequest:
		return codes.InvalidArgument
	case KindInvalidTransition:
		return codes.FailedPrecondition
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// Validation constructs a 400 error carrying every failed rule.
func Validation(messages []string, opts ...Option) *AppError {
	msg := "validation failed"
	if len(messages) == 1 {
		msg = messages[0]
	}
	return New(KindValidation, msg, append([]Option{WithMessages(messages...)}, opts...)...)
}

// BadRequest constructs a 400 error.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// InvalidTransition constructs a 400 error naming the rejected status edge.
func InvalidTransition(from, to string, opts ...Option) *AppError {
	opts = append([]Option{WithDetail("from", from), WithDetail("to", to)}, opts...)
	return New(KindInvalidTransition, fmt.Sprintf("cannot change order status from %s to %s", from, to), opts...)
}

// Unauthorized constructs a 401 error.
func Unauthorized(message string, opts ...Option) *AppError {
	return New(KindUnauthorized, message, opts...)
}

// Forbidden constructs a 403 error.
func Forbidden(message string, opts ...Option) *AppError {
	return New(KindForbidden, message, opts...)
}

// Conflict constructs a 409 error.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Internal constructs a generic 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.kind == kind
}

// From returns an AppError for any error input, wrapping unexpected values.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}
