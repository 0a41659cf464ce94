// Package ferrors provides the structured error taxonomy shared by every
// copy-core component: a closed set of error codes, a category derived
// from the code, and enough context for the executor to decide whether an
// operation is worth retrying.
package ferrors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Code identifies one of the closed set of error kinds a copy-core
// operation can fail with.
type Code string

const (
	CodeIO                  Code = "IO"
	CodeDeviceDetection     Code = "DEVICE_DETECTION"
	CodePermission          Code = "PERMISSION"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidPath         Code = "INVALID_PATH"
	CodeQueueFull           Code = "QUEUE_FULL"
	CodeTimedOut            Code = "TIMED_OUT"
	CodeCancelled           Code = "CANCELLED"
	CodeZeroCopyUnsupported Code = "ZERO_COPY_UNSUPPORTED"
	CodeResumeInvalid       Code = "RESUME_INVALID"
	CodeVerificationFailed  Code = "VERIFICATION_FAILED"
	CodeOther               Code = "OTHER"
)

// Category groups codes for metrics and logging.
type Category string

const (
	CategoryIO        Category = "io"
	CategoryDevice    Category = "device"
	CategoryAccess    Category = "access"
	CategoryScheduler Category = "scheduler"
	CategoryResume    Category = "resume"
	CategoryInternal  Category = "internal"
)

// CategoryOf classifies a code into its category.
func CategoryOf(code Code) Category {
	switch code {
	case CodeIO, CodeTimedOut:
		return CategoryIO
	case CodeDeviceDetection, CodeZeroCopyUnsupported:
		return CategoryDevice
	case CodePermission, CodeNotFound, CodeInvalidPath:
		return CategoryAccess
	case CodeQueueFull, CodeCancelled:
		return CategoryScheduler
	case CodeResumeInvalid, CodeVerificationFailed:
		return CategoryResume
	default:
		return CategoryInternal
	}
}

// retryableByDefault mirrors spec.md §7's retryable/terminal split.
var retryableByDefault = map[Code]bool{
	CodeIO:                  true,
	CodeTimedOut:            true,
	CodeZeroCopyUnsupported: true,
}

// Error is the concrete error type returned across every copy-core package
// boundary. It is always returned by value via a pointer, never panicked.
type Error struct {
	Code      Code                   `json:"code"`
	Category  Category               `json:"category"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

// New creates an Error with defaults derived from code.
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Category:  CategoryOf(code),
		Message:   message,
		Retryable: retryableByDefault[code],
		Timestamp: time.Now(),
	}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithComponent annotates the originating component (e.g. "strategy.buffered").
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithPath annotates the source or destination path involved.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithContext attaches a single key/value of free-form context.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		fmt.Fprintf(&b, "[%s] ", e.Component)
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}
	return b.String()
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by code, so errors.Is(err, ferrors.New(CodeNotFound, "")) works.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// JSON renders the error as a JSON document, e.g. for the CLI collaborator's
// structured error output.
func (e *Error) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// IsRetryable reports whether err should be retried by the executor,
// following the exact terminal/retryable split of spec.md §7.
func IsRetryable(err error) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	switch fe.Code {
	case CodeNotFound, CodePermission, CodeInvalidPath, CodeQueueFull,
		CodeCancelled, CodeVerificationFailed:
		return false
	case CodeIO, CodeTimedOut, CodeZeroCopyUnsupported:
		return true
	default:
		return fe.Retryable
	}
}

// As is a small convenience for extracting an *Error from a generic error.
func As(err error) (*Error, bool) {
	fe, ok := err.(*Error)
	return fe, ok
}
