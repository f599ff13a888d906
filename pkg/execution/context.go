// Package execution holds the isolated mutable state of one flow run and of
// the parallel branches forked from it.
package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
)

// Options configures a new execution context.
type Options struct {
	ExecutionID string
	Flow        *models.Flow
	UserID      string
	Trigger     string
	Input       map[string]any

	// Timeout bounds the whole run. Zero disables the limit.
	Timeout time.Duration

	Logger *slog.Logger

	// Progress receives events without blocking; events are dropped when it is full.
	Progress chan<- models.ProgressEvent
}

// Context is the single source of truth for the state of one run or branch.
type Context struct {
	mu sync.RWMutex

	executionID string
	flowID      string
	userID      string
	trigger     string
	flow        *models.Flow

	input       map[string]any
	variables   map[string]any
	nodeOutputs map[string]any
	executed    map[string]bool
	records     *recordLog

	fallbackInputs map[string]map[string]any

	status    models.ExecutionStatus
	startTime time.Time
	endTime   *time.Time
	timeout   time.Duration
	output    map[string]any
	runErr    *models.RunError

	ctx       context.Context
	cancel    context.CancelCauseFunc
	stopTimer context.CancelFunc

	branchID     string
	parent       *Context
	dirtyVars    map[string]bool
	dirtyOutputs map[string]bool

	progress chan<- models.ProgressEvent
	logger   *slog.Logger
}

// New creates a pending context for a run. The input is deep-copied and never
// mutated afterwards.
func New(parent context.Context, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	flow := opts.Flow
	if flow == nil {
		flow = &models.Flow{}
	}

	ctx, cancel := context.WithCancelCause(parent)

	return &Context{
		executionID:    opts.ExecutionID,
		flowID:         flow.ID,
		userID:         opts.UserID,
		trigger:        opts.Trigger,
		flow:           flow,
		input:          copyMap(opts.Input),
		variables:      copyMap(flow.Variables),
		nodeOutputs:    make(map[string]any),
		executed:       make(map[string]bool),
		records:        &recordLog{},
		fallbackInputs: make(map[string]map[string]any),
		status:         models.ExecutionStatusPending,
		timeout:        opts.Timeout,
		ctx:            ctx,
		cancel:         cancel,
		dirtyVars:      make(map[string]bool),
		dirtyOutputs:   make(map[string]bool),
		progress:       opts.Progress,
		logger:         logger.With("execution_id", opts.ExecutionID, "flow_id", flow.ID),
	}
}

// Start marks the run as running and arms the run deadline.
func (c *Context) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.ExecutionStatusPending {
		return
	}

	c.status = models.ExecutionStatusRunning
	c.startTime = time.Now()

	if c.timeout > 0 {
		c.ctx, c.stopTimer = context.WithDeadlineCause(
			c.ctx,
			c.startTime.Add(c.timeout),
			&flowerrors.FlowTimeoutError{Timeout: c.timeout, Elapsed: c.timeout},
		)
	}
}

// Context returns the cancellation context of the run. Every blocking call
// made on behalf of the run must observe it.
func (c *Context) Context() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.ctx
}

func (c *Context) ExecutionID() string { return c.executionID }
func (c *Context) FlowID() string      { return c.flowID }
func (c *Context) UserID() string      { return c.userID }
func (c *Context) Trigger() string     { return c.trigger }
func (c *Context) BranchID() string    { return c.branchID }
func (c *Context) Parent() *Context    { return c.parent }
func (c *Context) Flow() *models.Flow  { return c.flow }
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// HasNode reports whether the flow contains a node with the given id.
func (c *Context) HasNode(nodeID string) bool {
	return c.flow.NodeByID(nodeID) != nil
}

// Status returns the current status.
func (c *Context) Status() models.ExecutionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.status
}

// StartTime returns when Start was called.
func (c *Context) StartTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.startTime
}

// Timeout returns the time budget of this context.
func (c *Context) Timeout() time.Duration {
	return c.timeout
}

// Complete marks the run as completed with the given output.
func (c *Context) Complete(output map[string]any) {
	c.finish(models.ExecutionStatusCompleted, func() {
		c.output = copyMap(output)
	})
}

// Fail marks the run as failed with the originating error.
func (c *Context) Fail(err error, nodeID string) {
	c.finish(models.ExecutionStatusFailed, func() {
		c.runErr = runErrorFrom(err, nodeID)
	})
}

// Cancel marks the run as cancelled.
func (c *Context) Cancel(err error) {
	c.finish(models.ExecutionStatusCancelled, func() {
		c.runErr = runErrorFrom(err, "")
	})
}

func (c *Context) finish(status models.ExecutionStatus, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return
	}

	now := time.Now()
	c.status = status
	c.endTime = &now

	apply()

	if c.stopTimer != nil {
		c.stopTimer()
	}
}

// Release frees the resources of the cancellation context. The context must
// not be used for further node executions afterwards.
func (c *Context) Release() {
	if c.stopTimer != nil {
		c.stopTimer()
	}

	c.cancel(context.Canceled)
}

func runErrorFrom(err error, nodeID string) *models.RunError {
	if err == nil {
		return nil
	}

	return &models.RunError{
		Code:     flowerrors.Code(err),
		Message:  err.Error(),
		Category: string(flowerrors.Categorize(err)),
		NodeID:   nodeID,
	}
}
