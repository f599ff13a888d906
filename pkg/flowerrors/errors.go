// Package flowerrors provides the error taxonomy used by the flow engine.
package flowerrors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category groups error codes by how the engine may react to them.
type Category string

const (
	CategoryTransient  Category = "TRANSIENT"
	CategoryPermanent  Category = "PERMANENT"
	CategoryTimeout    Category = "TIMEOUT"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Well-known error codes.
const (
	CodeNetworkError       = "NETWORK_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConnectionReset    = "CONNECTION_RESET"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeTimeout            = "TIMEOUT"
	CodeNodeTimeout        = "NODE_TIMEOUT"
	CodeBranchTimeout      = "BRANCH_TIMEOUT"
	CodeFlowTimeout        = "FLOW_TIMEOUT"
	CodeFlowCancelled      = "FLOW_CANCELLED"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnknownNodeType    = "UNKNOWN_NODE_TYPE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeExecutionFailed    = "EXECUTION_FAILED"
)

var categories = map[string]Category{
	CodeNetworkError:       CategoryTransient,
	CodeRateLimited:        CategoryTransient,
	CodeServiceUnavailable: CategoryTransient,
	CodeConnectionReset:    CategoryTransient,
	CodeAuthFailed:         CategoryPermanent,
	CodeUnauthorized:       CategoryPermanent,
	CodeForbidden:          CategoryPermanent,
	CodeNotFound:           CategoryPermanent,
	CodeInvalidConfig:      CategoryPermanent,
	CodeTimeout:            CategoryTimeout,
	CodeNodeTimeout:        CategoryTimeout,
	CodeBranchTimeout:      CategoryTimeout,
	CodeFlowTimeout:        CategoryTimeout,
	CodeValidationError:    CategoryValidation,
	CodeInvalidInput:       CategoryValidation,
	CodeUnknownNodeType:    CategoryValidation,
	CodeInternalError:      CategoryInternal,
	CodeExecutionFailed:    CategoryInternal,
	CodeFlowCancelled:      CategoryInternal,
}

// Error is a coded error raised by a node executor or the engine.
type Error struct {
	Code        string
	Message     string
	Recoverable *bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// WithRecoverable returns a copy of the error with an explicit recoverable flag.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	clone := *e
	clone.Recoverable = &recoverable

	return &clone
}

// CategoryFor maps an error code to its category. Unknown codes are INTERNAL.
func CategoryFor(code string) Category {
	if category, ok := categories[code]; ok {
		return category
	}

	return CategoryInternal
}

// Code extracts the error code. Context deadline errors map to TIMEOUT and
// anything uncoded maps to INTERNAL_ERROR.
func Code(err error) string {
	var timeoutErr *FlowTimeoutError
	if errors.As(err, &timeoutErr) {
		return CodeFlowTimeout
	}

	var cancelledErr *FlowCancelledError
	if errors.As(err, &cancelledErr) {
		return CodeFlowCancelled
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	return CodeInternalError
}

// Categorize maps an error to its category.
func Categorize(err error) Category {
	return CategoryFor(Code(err))
}

// IsRecoverable honours an explicit recoverable flag, otherwise only TRANSIENT
// and TIMEOUT errors are recoverable. Run-level errors never are.
func IsRecoverable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var coded *Error
	if errors.As(err, &coded) && coded.Recoverable != nil {
		return *coded.Recoverable
	}

	category := Categorize(err)

	return category == CategoryTransient || category == CategoryTimeout
}

// Message returns the human readable part of an error.
func Message(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Message != "" {
			return coded.Message
		}

		if coded.Err != nil {
			return coded.Err.Error()
		}
	}

	return err.Error()
}

// FlowTimeoutError is raised once a run exceeds its time budget.
type FlowTimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *FlowTimeoutError) Error() string {
	return fmt.Sprintf("flow execution timed out after %s (limit %s)", e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Is makes the timeout comparable with context.DeadlineExceeded.
func (e *FlowTimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// FlowCancelledError is raised once a run has been aborted.
type FlowCancelledError struct {
	Reason string
}

func (e *FlowCancelledError) Error() string {
	if e.Reason == "" {
		return "flow execution cancelled"
	}

	return "flow execution cancelled: " + e.Reason
}

// Is makes the cancellation comparable with context.Canceled.
func (e *FlowCancelledError) Is(target error) bool {
	return target == context.Canceled
}

// IsFatal reports whether the error halts the run regardless of node error handling.
func IsFatal(err error) bool {
	var timeoutErr *FlowTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var cancelledErr *FlowCancelledError

	return errors.As(err, &cancelledErr)
}

// UnknownNodeType is returned by registry lookups for unregistered types.
func UnknownNodeType(nodeType string) *Error {
	return New(CodeUnknownNodeType, "unknown node type: "+nodeType)
}
