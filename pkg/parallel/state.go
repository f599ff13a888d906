package parallel

import (
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
)

// track registers a running branch and returns the wait group its goroutines
// must be counted in.
func (m *Manager) track(executionID, branchID, nodeID string, ctx *execution.Context) *sync.WaitGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.executions[executionID]
	if !ok {
		t = &tracked{
			states:   make(map[string]*models.BranchState),
			contexts: make(map[string]*execution.Context),
		}
		m.executions[executionID] = t
	}

	t.order = append(t.order, branchID)
	t.states[branchID] = &models.BranchState{
		BranchID:  branchID,
		NodeID:    nodeID,
		Status:    models.BranchStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	t.contexts[branchID] = ctx
	t.running.Add(1)

	return &t.running
}

// transition moves a running branch to a terminal status. It reports false
// when the branch already left the running state or is no longer tracked.
func (m *Manager) transition(executionID, branchID string, status models.BranchStatus, output map[string]any, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.executions[executionID]
	if !ok {
		return false
	}

	state, ok := t.states[branchID]
	if !ok || state.Status != models.BranchStatusRunning {
		return false
	}

	now := time.Now().UTC()
	state.Status = status
	state.CompletedAt = &now
	state.Output = output

	if err != nil {
		state.Error = err.Error()
	}

	return true
}

func (m *Manager) snapshot(result *Result) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := &Result{Mode: result.Mode, Branches: make([]*BranchResult, len(result.Branches))}

	for i, branch := range result.Branches {
		copied := *branch
		out.Branches[i] = &copied

		if branch == result.Winner {
			out.Winner = &copied
		}
	}

	return out
}

// CancelBranches interrupts every running branch of an execution and returns
// how many were cancelled.
func (m *Manager) CancelBranches(executionID string) int {
	cause := &flowerrors.FlowCancelledError{Reason: "branches cancelled"}

	m.mu.Lock()

	t, ok := m.executions[executionID]
	if !ok {
		m.mu.Unlock()

		return 0
	}

	var interrupted []*execution.Context

	now := time.Now().UTC()

	for _, branchID := range t.order {
		state := t.states[branchID]
		if state.Status != models.BranchStatusRunning {
			continue
		}

		state.Status = models.BranchStatusCancelled
		state.CompletedAt = &now
		state.Error = cause.Error()

		interrupted = append(interrupted, t.contexts[branchID])
	}

	m.mu.Unlock()

	for _, ctx := range interrupted {
		ctx.Interrupt(cause)
	}

	if len(interrupted) > 0 {
		m.logger.Info("Cancelled branches", "execution_id", executionID, "count", len(interrupted))
	}

	return len(interrupted)
}

// GetBranchStatus returns the branches of an execution in fork order.
func (m *Manager) GetBranchStatus(executionID string) []models.BranchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.executions[executionID]
	if !ok {
		return nil
	}

	states := make([]models.BranchState, 0, len(t.order))
	for _, branchID := range t.order {
		states = append(states, *t.states[branchID])
	}

	return states
}

// Wait blocks until every branch goroutine of an execution has returned.
// Branches left running by an ANY or RACE join are included, so callers
// usually cancel them first.
func (m *Manager) Wait(executionID string) {
	m.mu.Lock()
	t, ok := m.executions[executionID]
	m.mu.Unlock()

	if !ok {
		return
	}

	t.running.Wait()
}

// Cleanup drops the bookkeeping of a finished execution.
func (m *Manager) Cleanup(executionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.executions, executionID)
}
