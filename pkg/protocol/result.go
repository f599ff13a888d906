package protocol

import (
	"github.com/dukex/flowengine/pkg/flowerrors"
)

// Result is what an executor returns for one attempt.
type Result struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output"`
	Error   *NodeError     `json:"error,omitempty"`

	// NextNodes declares the handle keys to follow. nil means undeclared, in
	// which case only edges without a handle are followed.
	NextNodes []string `json:"nextNodes,omitempty"`

	// Variables are applied to the run variables by the engine after success.
	Variables map[string]any `json:"variables,omitempty"`

	// Parallel asks the engine to fork the outgoing edges into branches.
	Parallel *ParallelDirective `json:"parallel,omitempty"`
}

// NodeError is the error part of a failed result.
type NodeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable *bool  `json:"recoverable,omitempty"`
}

// ParallelDirective configures a fork of the node's outgoing edges.
type ParallelDirective struct {
	Mode            string `json:"mode"`
	TimeoutMs       int64  `json:"timeoutMs,omitempty"`
	ContinueOnError bool   `json:"continueOnError,omitempty"`
	MaxConcurrency  int    `json:"maxConcurrency,omitempty"`
	CancelLosers    bool   `json:"cancelLosers,omitempty"`
}

// NewResult returns a successful result.
func NewResult(output map[string]any) *Result {
	if output == nil {
		output = map[string]any{}
	}

	return &Result{Success: true, Output: output}
}

// NewErrorResult returns a failed result with the given code.
func NewErrorResult(code, message string) *Result {
	return &Result{
		Success: false,
		Output:  map[string]any{},
		Error:   &NodeError{Code: code, Message: message},
	}
}

// Route sets the handle keys to follow and returns the result. Route() with
// no handles declares that nothing is followed.
func (r *Result) Route(handles ...string) *Result {
	if handles == nil {
		handles = []string{}
	}

	r.NextNodes = handles

	return r
}

// AsError converts a failed result to a coded error.
func (r *Result) AsError() error {
	if r.Success {
		return nil
	}

	if r.Error == nil {
		return flowerrors.New(flowerrors.CodeExecutionFailed, "node reported failure without an error")
	}

	code := r.Error.Code
	if code == "" {
		code = flowerrors.CodeExecutionFailed
	}

	return &flowerrors.Error{
		Code:        code,
		Message:     r.Error.Message,
		Recoverable: r.Error.Recoverable,
	}
}
