package models

import "time"

// ExecutionStatus represents the lifecycle state of a flow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// NodeStatus is the outcome of a single node attempt.
type NodeStatus string

const (
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// NodeExecutionRecord is an append-only log entry written once per node attempt.
type NodeExecutionRecord struct {
	NodeID     string         `json:"nodeId"`
	NodeType   string         `json:"nodeType,omitempty"`
	Status     NodeStatus     `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Attempt    int            `json:"attempt"`
	BranchID   string         `json:"branchId,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
}

// BranchStatus is the state of a parallel branch.
type BranchStatus string

const (
	BranchStatusRunning   BranchStatus = "running"
	BranchStatusCompleted BranchStatus = "completed"
	BranchStatusFailed    BranchStatus = "failed"
	BranchStatusCancelled BranchStatus = "cancelled"
)

// BranchState is the parallel manager bookkeeping for one branch.
type BranchState struct {
	BranchID    string         `json:"branchId"`
	NodeID      string         `json:"nodeId"`
	Status      BranchStatus   `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RunProgress counts node attempts of a run.
type RunProgress struct {
	TotalNodes     int `json:"totalNodes"`
	ExecutedNodes  int `json:"executedNodes"`
	CompletedNodes int `json:"completedNodes"`
	FailedNodes    int `json:"failedNodes"`
	SkippedNodes   int `json:"skippedNodes"`
}

// RunError describes the error that halted a run.
type RunError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	NodeID   string `json:"nodeId,omitempty"`
}

// RunSummary is the serializable snapshot of a run handed to persistence and reporting layers.
type RunSummary struct {
	ID             string                 `json:"id"`
	FlowID         string                 `json:"flowId"`
	UserID         string                 `json:"userId,omitempty"`
	Status         ExecutionStatus        `json:"status"`
	Trigger        string                 `json:"trigger,omitempty"`
	Input          map[string]any         `json:"input,omitempty"`
	Output         map[string]any         `json:"output,omitempty"`
	Variables      map[string]any         `json:"variables,omitempty"`
	NodeOutputs    map[string]any         `json:"nodeOutputs,omitempty"`
	NodeExecutions []*NodeExecutionRecord `json:"nodeExecutions"`
	Progress       RunProgress            `json:"progress"`
	Error          *RunError              `json:"error,omitempty"`
	StartTime      time.Time              `json:"startTime"`
	EndTime        *time.Time             `json:"endTime,omitempty"`
	DurationMs     int64                  `json:"durationMs"`
}
