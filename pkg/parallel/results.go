package parallel

import (
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
)

// CompletedBranch is a branch that finished successfully.
type CompletedBranch struct {
	BranchID string         `json:"branchId"`
	NodeID   string         `json:"nodeId"`
	Output   map[string]any `json:"output"`
}

// FailedBranch is a branch that failed, timed out or was cancelled.
type FailedBranch struct {
	BranchID string `json:"branchId"`
	NodeID   string `json:"nodeId"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

// Summary is the output of a parallel node after its join resolved.
type Summary struct {
	Completed     []CompletedBranch `json:"completed"`
	Failed        []FailedBranch    `json:"failed"`
	Outputs       map[string]any    `json:"outputs"`
	TotalBranches int               `json:"totalBranches"`
	SuccessCount  int               `json:"successCount"`
	FailureCount  int               `json:"failureCount"`
	AllSucceeded  bool              `json:"allSucceeded"`
	AnySucceeded  bool              `json:"anySucceeded"`
}

// FormatResults summarizes a join. Outputs is keyed by the start node of each
// successful branch. Branches still running are only counted in the total.
func FormatResults(result *Result) *Summary {
	summary := &Summary{
		Completed: []CompletedBranch{},
		Failed:    []FailedBranch{},
		Outputs:   make(map[string]any),
	}

	if result == nil {
		return summary
	}

	summary.TotalBranches = len(result.Branches)

	for _, branch := range result.Branches {
		switch branch.Status {
		case models.BranchStatusCompleted:
			summary.Completed = append(summary.Completed, CompletedBranch{
				BranchID: branch.BranchID,
				NodeID:   branch.NodeID,
				Output:   branch.Output,
			})
			summary.Outputs[branch.NodeID] = branch.Output
		case models.BranchStatusFailed, models.BranchStatusCancelled:
			failed := FailedBranch{
				BranchID: branch.BranchID,
				NodeID:   branch.NodeID,
				Status:   string(branch.Status),
			}

			if branch.Err != nil {
				failed.Error = flowerrors.Message(branch.Err)
				failed.Code = flowerrors.Code(branch.Err)
			}

			summary.Failed = append(summary.Failed, failed)
		case models.BranchStatusRunning:
		}
	}

	summary.SuccessCount = len(summary.Completed)
	summary.FailureCount = len(summary.Failed)
	summary.AllSucceeded = summary.TotalBranches > 0 && summary.SuccessCount == summary.TotalBranches
	summary.AnySucceeded = summary.SuccessCount > 0

	return summary
}

// ToMap renders the summary as JSON-shaped data suitable for a node output.
func (s *Summary) ToMap() map[string]any {
	completed := make([]any, 0, len(s.Completed))
	for _, branch := range s.Completed {
		completed = append(completed, map[string]any{
			"branchId": branch.BranchID,
			"nodeId":   branch.NodeID,
			"output":   branch.Output,
		})
	}

	failed := make([]any, 0, len(s.Failed))
	for _, branch := range s.Failed {
		failed = append(failed, map[string]any{
			"branchId": branch.BranchID,
			"nodeId":   branch.NodeID,
			"status":   branch.Status,
			"error":    branch.Error,
			"code":     branch.Code,
		})
	}

	outputs := make(map[string]any, len(s.Outputs))
	for nodeID, output := range s.Outputs {
		outputs[nodeID] = output
	}

	return map[string]any{
		"completed":     completed,
		"failed":        failed,
		"outputs":       outputs,
		"totalBranches": s.TotalBranches,
		"successCount":  s.SuccessCount,
		"failureCount":  s.FailureCount,
		"allSucceeded":  s.AllSucceeded,
		"anySucceeded":  s.AnySucceeded,
	}
}
