package execution

import (
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/goccy/go-json"
)

// Summary returns the serializable snapshot of the run.
func (c *Context) Summary() *models.RunSummary {
	records := c.Records()

	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := &models.RunSummary{
		ID:             c.executionID,
		FlowID:         c.flowID,
		UserID:         c.userID,
		Status:         c.status,
		Trigger:        c.trigger,
		Input:          copyMap(c.input),
		Variables:      copyMap(c.variables),
		NodeOutputs:    copyMap(c.nodeOutputs),
		NodeExecutions: records,
		Progress:       progressOf(records, len(c.flow.Nodes)),
		StartTime:      c.startTime,
	}

	if c.output != nil {
		summary.Output = copyMap(c.output)
	}

	if c.runErr != nil {
		runErr := *c.runErr
		summary.Error = &runErr
	}

	if c.endTime != nil {
		end := *c.endTime
		summary.EndTime = &end
		summary.DurationMs = end.Sub(c.startTime).Milliseconds()
	} else if !c.startTime.IsZero() {
		summary.DurationMs = time.Since(c.startTime).Milliseconds()
	}

	return summary
}

// MarshalJSON encodes the run summary.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Summary())
}

func progressOf(records []*models.NodeExecutionRecord, totalNodes int) models.RunProgress {
	progress := models.RunProgress{TotalNodes: totalNodes}
	seen := make(map[string]bool)

	for _, record := range records {
		if !seen[record.NodeID] {
			seen[record.NodeID] = true
			progress.ExecutedNodes++
		}

		switch record.Status {
		case models.NodeStatusCompleted:
			progress.CompletedNodes++
		case models.NodeStatusFailed:
			progress.FailedNodes++
		case models.NodeStatusSkipped:
			progress.SkippedNodes++
		}
	}

	return progress
}
