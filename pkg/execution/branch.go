package execution

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/flowengine/pkg/models"
)

// ErrNotChild is returned when merging a context that was not forked from the receiver.
var ErrNotChild = errors.New("branch context does not belong to this execution context")

// CreateBranchContext forks a running context. The branch gets deep copies of
// the variables and node outputs and only the remaining time budget of its parent.
func (c *Context) CreateBranchContext(branchID string) *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	remaining := time.Duration(0)
	if c.timeout > 0 {
		remaining = c.timeout - time.Since(c.startTime)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}
	}

	ctx, cancel := context.WithCancelCause(c.ctx)

	executed := make(map[string]bool, len(c.executed))
	for nodeID := range c.executed {
		executed[nodeID] = true
	}

	return &Context{
		executionID:    c.executionID,
		flowID:         c.flowID,
		userID:         c.userID,
		trigger:        c.trigger,
		flow:           c.flow,
		input:          c.input,
		variables:      copyMap(c.variables),
		nodeOutputs:    copyMap(c.nodeOutputs),
		executed:       executed,
		records:        c.records,
		fallbackInputs: make(map[string]map[string]any),
		status:         models.ExecutionStatusRunning,
		startTime:      time.Now(),
		timeout:        remaining,
		ctx:            ctx,
		cancel:         cancel,
		branchID:       branchID,
		parent:         c,
		dirtyVars:      make(map[string]bool),
		dirtyOutputs:   make(map[string]bool),
		progress:       c.progress,
		logger:         c.logger.With("branch_id", branchID),
	}
}

// MergeBranchContext copies the variables and node outputs written by a
// branch into the receiver. Merges are serialized by the receiver's lock and
// later merges win on conflicting keys.
func (c *Context) MergeBranchContext(child *Context) error {
	if child == nil || child.parent != c {
		return ErrNotChild
	}

	child.mu.RLock()
	defer child.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range child.dirtyVars {
		c.variables[key] = deepCopy(child.variables[key])
		c.dirtyVars[key] = true
	}

	for nodeID := range child.dirtyOutputs {
		c.nodeOutputs[nodeID] = deepCopy(child.nodeOutputs[nodeID])
		c.executed[nodeID] = true
		c.dirtyOutputs[nodeID] = true
	}

	if child.output != nil {
		c.output = copyMap(child.output)
	}

	return nil
}

// Output returns the output recorded by Complete.
func (c *Context) Output() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.output == nil {
		return nil
	}

	return copyMap(c.output)
}
