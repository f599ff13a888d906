// Package persistencetest holds the behaviour every run store must share.
package persistencetest

import (
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRun returns a finished run summary started at start.
func NewRun(id, flowID string, start time.Time) *models.RunSummary {
	end := start.Add(1500 * time.Millisecond)

	return &models.RunSummary{
		ID:          id,
		FlowID:      flowID,
		Status:      models.ExecutionStatusCompleted,
		Trigger:     "manual",
		Input:       map[string]any{"user": "ada"},
		Output:      map[string]any{"ok": true},
		Variables:   map[string]any{"region": "eu"},
		NodeOutputs: map[string]any{"start": map[string]any{"user": "ada"}},
		NodeExecutions: []*models.NodeExecutionRecord{
			{NodeID: "start", NodeType: "trigger:manual", Status: models.NodeStatusCompleted, StartedAt: start, DurationMs: 3, Attempt: 1},
		},
		StartTime:  start.UTC().Truncate(time.Millisecond),
		EndTime:    &end,
		DurationMs: 1500,
	}
}

// Run exercises store against the persistence contract.
func Run(t *testing.T, store persistence.Persistence) {
	t.Helper()

	ctx := t.Context()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("health", func(t *testing.T) {
		require.NoError(t, store.HealthCheck(ctx))
	})

	t.Run("save and load", func(t *testing.T) {
		run := NewRun("exec-save", "flow-a", base)
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.RunByID(ctx, "exec-save")
		require.NoError(t, err)

		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, run.FlowID, loaded.FlowID)
		assert.Equal(t, run.Status, loaded.Status)
		assert.Equal(t, run.Variables, loaded.Variables)
		assert.Equal(t, map[string]any{"ok": true}, loaded.Output)
		assert.True(t, run.StartTime.Equal(loaded.StartTime))
		require.Len(t, loaded.NodeExecutions, 1)
		assert.Equal(t, "start", loaded.NodeExecutions[0].NodeID)
	})

	t.Run("save overwrites", func(t *testing.T) {
		run := NewRun("exec-overwrite", "flow-a", base)
		require.NoError(t, store.SaveRun(ctx, run))

		run.Status = models.ExecutionStatusFailed
		run.Error = &models.RunError{Code: "EXECUTION_FAILED", Message: "boom", NodeID: "start"}
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.RunByID(ctx, "exec-overwrite")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
		require.NotNil(t, loaded.Error)
		assert.Equal(t, "boom", loaded.Error.Message)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.RunByID(ctx, "exec-missing")
		require.Error(t, err)
		assert.True(t, persistence.IsRunNotFound(err))
	})

	t.Run("runs by flow", func(t *testing.T) {
		require.NoError(t, store.SaveRun(ctx, NewRun("exec-old", "flow-b", base)))
		require.NoError(t, store.SaveRun(ctx, NewRun("exec-new", "flow-b", base.Add(time.Hour))))
		require.NoError(t, store.SaveRun(ctx, NewRun("exec-other", "flow-c", base)))

		runs, err := store.RunsByFlow(ctx, "flow-b")
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "exec-new", runs[0].ID)
		assert.Equal(t, "exec-old", runs[1].ID)

		runs, err = store.RunsByFlow(ctx, "flow-none")
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}
