// Package parallel forks an execution into concurrent branches and joins them
// under ALL, ANY, RACE or SETTLED semantics.
package parallel

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Mode is the join semantic of a fork.
type Mode string

const (
	ModeAll     Mode = "ALL"
	ModeAny     Mode = "ANY"
	ModeRace    Mode = "RACE"
	ModeSettled Mode = "SETTLED"
)

// ParseMode normalizes a mode name. Empty means ALL.
func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToUpper(value)); mode {
	case "":
		return ModeAll, nil
	case ModeAll, ModeAny, ModeRace, ModeSettled:
		return mode, nil
	default:
		return "", flowerrors.New(flowerrors.CodeInvalidConfig, fmt.Sprintf("unknown parallel mode %q", value))
	}
}

// ChainFunc drives the node chain of one branch inside its branch context and
// returns the output of the last node it executed.
type ChainFunc func(branch *execution.Context, startNodeID string) (map[string]any, error)

// Request describes one fork.
type Request struct {
	ExecutionID string

	// Branches are the start node ids, one branch each.
	Branches []string

	Mode            Mode
	Timeout         time.Duration
	ContinueOnError bool
	MaxConcurrency  int

	// CancelLosers cancels branches still running once an ANY or RACE join resolves.
	CancelLosers bool

	Context *execution.Context
	Run     ChainFunc
}

// BranchResult is the outcome of one branch as seen by the join.
type BranchResult struct {
	BranchID string
	NodeID   string
	Status   models.BranchStatus
	Output   map[string]any
	Err      error

	ctx     *execution.Context
	running *sync.WaitGroup
}

// Result is a snapshot of a join taken when it resolved. Branches keeps
// declaration order; branches still running when an ANY or RACE join resolved
// keep the running status.
type Result struct {
	Mode     Mode
	Branches []*BranchResult
	Winner   *BranchResult
}

type tracked struct {
	// running counts the goroutines of every branch forked for the execution,
	// including losers of an ANY or RACE join.
	running sync.WaitGroup

	order    []string
	states   map[string]*models.BranchState
	contexts map[string]*execution.Context
}

// Manager runs forks and keeps per-execution branch bookkeeping.
type Manager struct {
	mu         sync.Mutex
	logger     *slog.Logger
	executions map[string]*tracked
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:     logger.With("module", "parallel"),
		executions: make(map[string]*tracked),
	}
}

// ExecuteBranches forks req.Branches and blocks until the join resolves. Only
// the calling goroutine merges branch contexts into req.Context.
func (m *Manager) ExecuteBranches(req Request) (*Result, error) {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	if req.Context == nil || req.Run == nil {
		return nil, errors.New("parallel request requires a context and a chain function")
	}

	if req.ExecutionID == "" {
		req.ExecutionID = req.Context.ExecutionID()
	}

	result := &Result{Mode: mode, Branches: make([]*BranchResult, len(req.Branches))}
	if len(req.Branches) == 0 {
		return result, nil
	}

	parentCtx := req.Context.Context()
	outcomes := make(chan int, len(req.Branches))

	var sem *semaphore.Weighted
	if req.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(req.MaxConcurrency))
	}

	logger := m.logger.With("execution_id", req.ExecutionID, "mode", mode, "branches", len(req.Branches))
	logger.Debug("Forking branches")

	for i, nodeID := range req.Branches {
		branchID := "branch-" + uuid.NewString()[:8]
		branchCtx := req.Context.CreateBranchContext(branchID)

		result.Branches[i] = &BranchResult{
			BranchID: branchID,
			NodeID:   nodeID,
			Status:   models.BranchStatusRunning,
			ctx:      branchCtx,
			running:  m.track(req.ExecutionID, branchID, nodeID, branchCtx),
		}
	}

	for i := range result.Branches {
		go m.runBranch(req, sem, result.Branches[i], i, outcomes)
	}

	pending := len(req.Branches)

	for pending > 0 {
		select {
		case <-parentCtx.Done():
			abortErr := req.Context.CheckAborted()
			m.cancelRunning(req.ExecutionID, result, abortErr)

			return m.snapshot(result), abortErr
		case index := <-outcomes:
			pending--
			branch := result.Branches[index]

			switch mode {
			case ModeAll:
				if branch.Status != models.BranchStatusCompleted && !req.ContinueOnError {
					m.cancelRunning(req.ExecutionID, result, &flowerrors.FlowCancelledError{Reason: "sibling branch failed"})

					return m.snapshot(result), fmt.Errorf("branch %s (%s) failed: %w", branch.BranchID, branch.NodeID, branch.Err)
				}
			case ModeAny:
				result.Winner = branch
				m.resolveEarly(req, result, branch)

				return m.snapshot(result), nil
			case ModeRace:
				if branch.Status == models.BranchStatusCompleted {
					result.Winner = branch
					m.resolveEarly(req, result, branch)

					return m.snapshot(result), nil
				}
			case ModeSettled:
			}
		}
	}

	abortErr := req.Context.CheckAborted()
	if abortErr != nil {
		return m.snapshot(result), abortErr
	}

	if mode == ModeRace {
		errs := make([]error, 0, len(result.Branches))
		for _, branch := range result.Branches {
			errs = append(errs, fmt.Errorf("branch %s (%s): %w", branch.BranchID, branch.NodeID, branch.Err))
		}

		return m.snapshot(result), &flowerrors.Error{
			Code:    flowerrors.CodeExecutionFailed,
			Message: "all parallel branches failed",
			Err:     errors.Join(errs...),
		}
	}

	for _, branch := range result.Branches {
		if branch.Status != models.BranchStatusCompleted {
			continue
		}

		err := req.Context.MergeBranchContext(branch.ctx)
		if err != nil {
			return m.snapshot(result), err
		}
	}

	logger.Debug("Branches joined")

	return m.snapshot(result), nil
}

func (m *Manager) resolveEarly(req Request, result *Result, winner *BranchResult) {
	if winner.Status == models.BranchStatusCompleted {
		err := req.Context.MergeBranchContext(winner.ctx)
		if err != nil {
			m.logger.Error("Failed to merge winning branch", "branch_id", winner.BranchID, "error", err)
		}
	}

	if req.CancelLosers {
		m.cancelRunning(req.ExecutionID, result, &flowerrors.FlowCancelledError{Reason: "join resolved"})
	}
}

// runBranch drives one branch and reports its index once the branch reached
// a terminal state. A branch timing out is reported immediately while its
// chain is interrupted cooperatively.
func (m *Manager) runBranch(req Request, sem *semaphore.Weighted, branch *BranchResult, index int, outcomes chan<- int) {
	defer branch.running.Done()

	branchCtx := branch.ctx

	if sem != nil {
		err := sem.Acquire(branchCtx.Context(), 1)
		if err != nil {
			m.settle(req.ExecutionID, branch, nil, branchCtx.CheckAborted())
			outcomes <- index

			branchCtx.Release()

			return
		}

		defer sem.Release(1)
	}

	branchCtx.Emit(models.ProgressBranchStarted, branch.NodeID, nil)

	type chainOutcome struct {
		output map[string]any
		err    error
	}

	done := make(chan chainOutcome, 1)

	branch.running.Add(1)

	go func() {
		defer branch.running.Done()
		defer branchCtx.Release()

		defer func() {
			if recovered := recover(); recovered != nil {
				done <- chainOutcome{err: flowerrors.New(flowerrors.CodeInternalError, fmt.Sprintf("branch panicked: %v", recovered))}
			}
		}()

		output, err := req.Run(branchCtx, branch.NodeID)
		done <- chainOutcome{output: output, err: err}
	}()

	var timeout <-chan time.Time

	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()

		timeout = timer.C
	}

	var outcome chainOutcome

	select {
	case outcome = <-done:
	case <-timeout:
		timeoutErr := flowerrors.New(flowerrors.CodeBranchTimeout, fmt.Sprintf("branch timed out after %s", req.Timeout))
		branchCtx.Interrupt(timeoutErr)

		outcome = chainOutcome{err: timeoutErr}
	}

	m.settle(req.ExecutionID, branch, outcome.output, outcome.err)
	outcomes <- index
}

// settle records the terminal state of a branch. A branch cancelled by the
// join keeps its cancelled state.
func (m *Manager) settle(executionID string, branch *BranchResult, output map[string]any, err error) {
	status := models.BranchStatusCompleted
	eventType := models.ProgressBranchComplete
	data := map[string]any{"output": output}

	if err != nil {
		status = models.BranchStatusFailed
		eventType = models.ProgressBranchFailed
		data = map[string]any{"error": err.Error(), "code": flowerrors.Code(err)}
	}

	if !m.transition(executionID, branch.BranchID, status, output, err) {
		m.mu.Lock()
		if branch.Status == models.BranchStatusRunning {
			branch.Status = models.BranchStatusCancelled
			branch.Err = &flowerrors.FlowCancelledError{Reason: "branches cancelled"}
		}
		m.mu.Unlock()

		return
	}

	m.mu.Lock()
	branch.Status = status
	branch.Output = output
	branch.Err = err
	m.mu.Unlock()

	branch.ctx.Emit(eventType, branch.NodeID, data)
}

func (m *Manager) cancelRunning(executionID string, result *Result, cause error) {
	for _, branch := range result.Branches {
		if m.transition(executionID, branch.BranchID, models.BranchStatusCancelled, nil, cause) {
			m.mu.Lock()
			branch.Status = models.BranchStatusCancelled
			branch.Err = cause
			m.mu.Unlock()

			branch.ctx.Interrupt(cause)
		}
	}
}
