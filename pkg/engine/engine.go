// Package engine walks a flow graph from its trigger, driving the execution
// context, the error handler and the parallel manager.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/errorhandler"
	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/otelhelper"
	"github.com/dukex/flowengine/pkg/parallel"
	"github.com/dukex/flowengine/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoStartNode is returned when a flow has no node to start from.
var ErrNoStartNode = errors.New("flow has no start node")

// ErrExecutionNotFound is returned when cancelling an unknown or finished run.
var ErrExecutionNotFound = errors.New("execution not found")

// Config bounds the runs of an engine.
type Config struct {
	// DefaultTimeout applies to runs that do not set their own. Zero disables it.
	DefaultTimeout time.Duration

	// MaxSteps bounds the node executions of a single chain.
	MaxSteps int

	// MaxParallelBranches bounds concurrent branches of a fork that does not
	// set its own limit. Zero means unbounded.
	MaxParallelBranches int
}

func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Minute,
		MaxSteps:       1000,
	}
}

// RunRequest describes one run.
type RunRequest struct {
	Flow    *models.Flow
	Input   map[string]any
	UserID  string
	Trigger string

	// StartNodeID overrides start node selection.
	StartNodeID string

	// ExecutionID is generated when empty.
	ExecutionID string

	// Timeout overrides Config.DefaultTimeout when positive.
	Timeout time.Duration

	// Progress receives progress events. The engine never closes it.
	Progress chan<- models.ProgressEvent
}

// Engine runs flows. It is safe for concurrent use; every run gets its own
// execution context.
type Engine struct {
	registry *registry.Registry
	handler  *errorhandler.Handler
	parallel *parallel.Manager
	tracer   trace.Tracer
	logger   *slog.Logger
	config   Config

	mu     sync.Mutex
	active map[string]*execution.Context
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

func WithErrorHandler(handler *errorhandler.Handler) Option {
	return func(e *Engine) {
		e.handler = handler
	}
}

func WithParallelManager(manager *parallel.Manager) Option {
	return func(e *Engine) {
		e.parallel = manager
	}
}

func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		active:   make(map[string]*execution.Context),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "engine")

	if e.tracer == nil {
		e.tracer = otelhelper.NoopTracer()
	}

	if e.handler == nil {
		e.handler = errorhandler.NewHandler(errorhandler.WithLogger(e.logger))
	}

	if e.parallel == nil {
		e.parallel = parallel.NewManager(e.logger)
	}

	if e.config.MaxSteps <= 0 {
		e.config.MaxSteps = DefaultConfig().MaxSteps
	}

	return e
}

// NodeFailure is a run failure attributed to the node that stopped it.
type NodeFailure struct {
	NodeID string
	Err    error
}

func (f *NodeFailure) Error() string {
	return fmt.Sprintf("node %s: %v", f.NodeID, f.Err)
}

func (f *NodeFailure) Unwrap() error {
	return f.Err
}

// Execute runs a flow to completion. The returned summary is non-nil once the
// run started; the error is non-nil when the run did not complete.
func (e *Engine) Execute(ctx context.Context, req RunRequest) (*models.RunSummary, error) {
	if req.Flow == nil {
		return nil, errors.New("flow is required")
	}

	startNodeID, err := startNode(req.Flow, req.StartNodeID, req.Trigger)
	if err != nil {
		return nil, err
	}

	executionID := req.ExecutionID
	if executionID == "" {
		executionID = generateExecutionID()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.execute",
		attribute.String(otelhelper.FlowIDKey, req.Flow.ID),
		attribute.String(otelhelper.FlowNameKey, req.Flow.Name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.TriggerKey, req.Trigger),
	)
	defer span.End()

	execCtx := execution.New(ctx, execution.Options{
		ExecutionID: executionID,
		Flow:        req.Flow,
		UserID:      req.UserID,
		Trigger:     req.Trigger,
		Input:       req.Input,
		Timeout:     timeout,
		Logger:      e.logger,
		Progress:    req.Progress,
	})

	e.track(execCtx)
	defer e.untrack(executionID)

	logger := execCtx.Logger()

	execCtx.Start()
	execCtx.Emit(models.ProgressRunStarted, startNodeID, map[string]any{"trigger": req.Trigger})
	logger.InfoContext(ctx, "Starting flow execution", "start_node_id", startNodeID, "timeout", timeout)

	outcome, runErr := e.runChain(execCtx, startNodeID, "", false)

	defer execCtx.Release()
	defer e.parallel.Cleanup(executionID)

	// Branches left behind by ANY or RACE joins end with the run.
	e.parallel.CancelBranches(executionID)
	e.parallel.Wait(executionID)

	if runErr == nil {
		execCtx.Complete(outcome.output)
		execCtx.Emit(models.ProgressRunCompleted, "", map[string]any{"output": outcome.output})
		logger.InfoContext(ctx, "Flow execution completed")

		return execCtx.Summary(), nil
	}

	otelhelper.SetError(span, runErr)

	var cancelled *flowerrors.FlowCancelledError
	if errors.As(runErr, &cancelled) {
		execCtx.Cancel(runErr)
		execCtx.Emit(models.ProgressRunCancelled, "", map[string]any{"reason": cancelled.Reason})
		logger.WarnContext(ctx, "Flow execution cancelled", "reason", cancelled.Reason)

		return execCtx.Summary(), runErr
	}

	nodeID := ""

	var failure *NodeFailure
	if errors.As(runErr, &failure) {
		nodeID = failure.NodeID
	}

	execCtx.Fail(runErr, nodeID)
	execCtx.Emit(models.ProgressRunFailed, nodeID, map[string]any{
		"error": flowerrors.Message(runErr),
		"code":  flowerrors.Code(runErr),
	})
	logger.ErrorContext(ctx, "Flow execution failed", "node_id", nodeID, "error", runErr)

	return execCtx.Summary(), runErr
}

// Cancel aborts an active run and its branches.
func (e *Engine) Cancel(executionID, reason string) error {
	e.mu.Lock()
	execCtx, ok := e.active[executionID]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	execCtx.Abort(reason)
	e.parallel.CancelBranches(executionID)

	return nil
}

// ActiveExecutions returns the ids of the runs in flight.
func (e *Engine) ActiveExecutions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}

	return ids
}

// BranchStatus returns the branches forked by an active run.
func (e *Engine) BranchStatus(executionID string) []models.BranchState {
	return e.parallel.GetBranchStatus(executionID)
}

func (e *Engine) track(execCtx *execution.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active[execCtx.ExecutionID()] = execCtx
}

func (e *Engine) untrack(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.active, executionID)
}

// startNode picks the explicit start node, else the trigger matching the
// trigger name, else the first trigger, else the first node without
// incoming edges.
func startNode(flow *models.Flow, explicit, trigger string) (string, error) {
	if explicit != "" {
		if flow.NodeByID(explicit) == nil {
			return "", fmt.Errorf("%w: node %s not found", ErrNoStartNode, explicit)
		}

		return explicit, nil
	}

	triggers := flow.TriggerNodes()

	for _, node := range triggers {
		_, name := models.SplitNodeType(node.Type)
		if trigger != "" && name == trigger {
			return node.ID, nil
		}
	}

	if len(triggers) > 0 {
		return triggers[0].ID, nil
	}

	for _, node := range flow.Nodes {
		if len(flow.IncomingEdges(node.ID)) == 0 {
			return node.ID, nil
		}
	}

	if len(flow.Nodes) > 0 {
		return flow.Nodes[0].ID, nil
	}

	return "", ErrNoStartNode
}

func generateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}
