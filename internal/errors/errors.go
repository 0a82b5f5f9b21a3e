package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind tags an AppError with one member of a closed error taxonomy
type Kind string

// Analysis pipeline kinds
const (
	KindMissingInput      Kind = "MISSING_INPUT"
	KindParseError        Kind = "PARSE_ERROR"
	KindColumnNotFound    Kind = "COLUMN_NOT_FOUND"
	KindApplicability     Kind = "APPLICABILITY_ERROR"
	KindUnknownTest       Kind = "UNKNOWN_TEST"
	KindAnalysisException Kind = "ANALYSIS_EXCEPTION"
)

// Service kinds
const (
	KindConfigInvalid Kind = "CONFIG_INVALID"
	KindInvalidInput  Kind = "INVALID_INPUT"
	KindNotFound      Kind = "NOT_FOUND"
	KindInternal      Kind = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Kind    Kind
	Message string
	// Details holds diagnostic fields merged into the failure payload
	Details map[string]interface{}
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// With attaches a diagnostic field and returns the receiver for chaining
func (e *AppError) With(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error kind onto a response status
func (e *AppError) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// Payload renders the failure body: ok=false, the message, and any diagnostics.
// A diagnostic can never overwrite ok or error.
func (e *AppError) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Details)+2)
	for k, v := range e.Details {
		out[k] = v
	}
	out["ok"] = false
	out["error"] = e.Message
	return out
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the kind and the
// diagnostics of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		wrapped := &AppError{
			Kind:    appErr.Kind,
			Message: message,
			Cause:   err,
		}
		for k, v := range appErr.Details {
			wrapped.With(k, v)
		}
		return wrapped
	}
	return &AppError{
		Kind:    KindInternal,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// As returns the AppError in err's chain, if any
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusFor maps an error kind onto an HTTP status code
func StatusFor(kind Kind) int {
	switch kind {
	case KindMissingInput, KindParseError, KindColumnNotFound,
		KindApplicability, KindUnknownTest, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Pipeline error constructors

func MissingInput(message string) *AppError {
	return New(KindMissingInput, message)
}

func ParseError(cause error) *AppError {
	e := &AppError{Kind: KindParseError, Message: "Could not read CSV.", Cause: cause}
	if cause != nil {
		e.With("detail", cause.Error())
	}
	return e
}

// ColumnNotFound reports every available column plus both requested names
func ColumnNotFound(columns []string, group, value string) *AppError {
	return New(KindColumnNotFound, "Column not found in CSV.").
		With("columns", columns).
		With("group_requested", group).
		With("value_requested", value)
}

// Applicability reports a test that cannot run on the observed group list
func Applicability(message string, groups []string) *AppError {
	return New(KindApplicability, message).With("groups", groups)
}

func UnknownTest(message string) *AppError {
	return New(KindUnknownTest, message)
}

// AnalysisException wraps a failure raised by a numeric procedure
func AnalysisException(cause error) *AppError {
	e := &AppError{Kind: KindAnalysisException, Message: "Exception during analysis.", Cause: cause}
	if cause != nil {
		e.With("detail", cause.Error())
	}
	return e
}

// Service error constructors

func ConfigInvalid(message string) *AppError {
	return New(KindConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(KindInvalidInput, message)
}

func NotFound(resource string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(KindInternal, message)
}
