package models

import "time"

// ProgressEventType identifies a progress event emitted during a run.
type ProgressEventType string

const (
	ProgressRunStarted     ProgressEventType = "run:started"
	ProgressRunCompleted   ProgressEventType = "run:completed"
	ProgressRunFailed      ProgressEventType = "run:failed"
	ProgressRunCancelled   ProgressEventType = "run:cancelled"
	ProgressNodeStarted    ProgressEventType = "node:started"
	ProgressNodeOutput     ProgressEventType = "node:output"
	ProgressNodeCompleted  ProgressEventType = "node:completed"
	ProgressNodeFailed     ProgressEventType = "node:failed"
	ProgressNodeRetry      ProgressEventType = "node:retry"
	ProgressNodeSkipped    ProgressEventType = "node:skipped"
	ProgressBranchStarted  ProgressEventType = "branch:started"
	ProgressBranchComplete ProgressEventType = "branch:completed"
	ProgressBranchFailed   ProgressEventType = "branch:failed"
)

// ProgressEvent is published to observers of a run through a bounded channel.
type ProgressEvent struct {
	Type        ProgressEventType `json:"type"`
	ExecutionID string            `json:"executionId"`
	FlowID      string            `json:"flowId"`
	NodeID      string            `json:"nodeId,omitempty"`
	BranchID    string            `json:"branchId,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Data        map[string]any    `json:"data,omitempty"`
}
