package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/dukex/flowengine/pkg/errorhandler"
	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/otelhelper"
	"github.com/dukex/flowengine/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
)

// TimeoutKey is the node data key bounding a single attempt, in milliseconds.
const TimeoutKey = "timeout"

type nodeOutcome struct {
	output map[string]any
	next   []string

	// resume marks next as join nodes of a resolved fork.
	resume bool
}

// executeNode runs a node until it succeeds or the error handler settles its
// failure. Only a stop action is returned as an error.
func (e *Engine) executeNode(execCtx *execution.Context, node *models.Node, previousNodeID string) (*nodeOutcome, error) {
	logger := execCtx.Logger().With("node_id", node.ID, "node_type", node.Type)

	if node.Disabled {
		logger.Info("Node is disabled, skipping")

		execCtx.AppendRecord(&models.NodeExecutionRecord{
			NodeID:    node.ID,
			NodeType:  node.Type,
			Status:    models.NodeStatusSkipped,
			Error:     "disabled",
			StartedAt: time.Now().UTC(),
		})
		execCtx.Emit(models.ProgressNodeSkipped, node.ID, map[string]any{"reason": "disabled"})

		return &nodeOutcome{next: execCtx.GetNextNodeIDs(node.ID, nil)}, nil
	}

	retryCount := 0

	for {
		outcome, record, err := e.attempt(execCtx, node, previousNodeID, retryCount+1)
		if err == nil {
			return outcome, nil
		}

		action := e.handler.Handle(err, node, execCtx, retryCount)

		// A skipped attempt is recorded once, as skipped.
		if action.Type == errorhandler.StrategySkip {
			record.Status = models.NodeStatusSkipped
			record.Output = action.Output
		}

		execCtx.AppendRecord(record)

		switch action.Type {
		case errorhandler.StrategyRetry:
			logger.Warn("Retrying node", "attempt", action.RetryCount+1, "delay", action.Delay, "error", err)
			execCtx.Emit(models.ProgressNodeRetry, node.ID, map[string]any{
				"attempt": action.RetryCount + 1,
				"delayMs": action.Delay.Milliseconds(),
				"error":   flowerrors.Message(err),
				"code":    flowerrors.Code(err),
			})

			waitErr := wait(execCtx, action.Delay)
			if waitErr != nil {
				return nil, waitErr
			}

			retryCount = action.RetryCount
		case errorhandler.StrategyFallback:
			logger.Warn("Redirecting to fallback node", "fallback_node_id", action.FallbackNodeID, "error", err)
			execCtx.SetFallbackInput(action.FallbackNodeID, action.FallbackInput)

			return &nodeOutcome{next: []string{action.FallbackNodeID}}, nil
		case errorhandler.StrategySkip:
			logger.Warn("Skipping failed node", "error", err)
			execCtx.SetNodeOutput(node.ID, action.Output)
			execCtx.Emit(models.ProgressNodeSkipped, node.ID, map[string]any{
				"reason": flowerrors.Message(err),
				"code":   flowerrors.Code(err),
			})

			return &nodeOutcome{output: action.Output, next: execCtx.GetNextNodeIDs(node.ID, nil)}, nil
		default:
			return nil, &NodeFailure{NodeID: node.ID, Err: err}
		}
	}
}

// attempt runs the executor once. A successful attempt is recorded here; a
// failed one returns its record for the caller to settle once the error
// handler decided. A result carrying a parallel directive forks the outgoing
// edges before the attempt is settled.
func (e *Engine) attempt(execCtx *execution.Context, node *models.Node, previousNodeID string, attempt int) (*nodeOutcome, *models.NodeExecutionRecord, error) {
	ctx, span := otelhelper.StartSpan(execCtx.Context(), e.tracer, "node.execute",
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ExecutionID()),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
		attribute.String(otelhelper.BranchIDKey, execCtx.BranchID()),
		attribute.Int(otelhelper.AttemptKey, attempt),
	)
	defer span.End()

	started := time.Now()

	outcome, err := e.run(ctx, execCtx, node, previousNodeID, attempt)

	record := &models.NodeExecutionRecord{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Status:     models.NodeStatusCompleted,
		DurationMs: time.Since(started).Milliseconds(),
		Attempt:    attempt,
		StartedAt:  started.UTC(),
	}

	if err != nil {
		record.Status = models.NodeStatusFailed
		record.Error = flowerrors.Message(err)
		record.ErrorCode = flowerrors.Code(err)

		execCtx.Emit(models.ProgressNodeFailed, node.ID, map[string]any{
			"attempt":    attempt,
			"error":      record.Error,
			"code":       record.ErrorCode,
			"durationMs": record.DurationMs,
		})
		otelhelper.SetError(span, err)

		return nil, record, err
	}

	execCtx.SetNodeOutput(node.ID, outcome.output)

	record.Output = outcome.output
	execCtx.AppendRecord(record)

	execCtx.Emit(models.ProgressNodeCompleted, node.ID, map[string]any{
		"attempt":    attempt,
		"durationMs": record.DurationMs,
	})

	return outcome, record, nil
}

func (e *Engine) run(ctx context.Context, execCtx *execution.Context, node *models.Node, previousNodeID string, attempt int) (*nodeOutcome, error) {
	executor, err := e.registry.Executor(node.Type)
	if err != nil {
		return nil, err
	}

	nodeCtx, err := execCtx.CreateNodeContext(node, previousNodeID)
	if err != nil {
		return nil, err
	}

	execCtx.Emit(models.ProgressNodeStarted, node.ID, map[string]any{"attempt": attempt})

	result, err := invoke(ctx, execCtx, executor, nodeCtx, nodeTimeout(node))
	if err != nil {
		return nil, err
	}

	err = result.AsError()
	if err != nil {
		return nil, err
	}

	output := result.Output
	if output == nil {
		output = map[string]any{}
	}

	if result.Parallel == nil {
		applyVariables(execCtx, result.Variables)

		return &nodeOutcome{output: output, next: execCtx.GetNextNodeIDs(node.ID, result)}, nil
	}

	execCtx.SetNodeOutput(node.ID, output)

	summary, joins, err := e.fork(execCtx, node, result)
	if err != nil {
		return nil, err
	}

	// Variables of a forking node only count once its join succeeded.
	applyVariables(execCtx, result.Variables)

	merged := maps.Clone(output)
	maps.Copy(merged, summary.ToMap())

	return &nodeOutcome{output: merged, next: joins, resume: true}, nil
}

func applyVariables(execCtx *execution.Context, variables map[string]any) {
	for key, value := range variables {
		execCtx.SetVariable(key, value)
	}
}

type invocation struct {
	result *protocol.Result
	err    error
}

// invoke runs the executor racing the run cancellation and the node timeout.
// Executors that ignore ctx keep running in the background.
func invoke(ctx context.Context, execCtx *execution.Context, executor protocol.NodeExecutor, nodeCtx *protocol.NodeContext, timeout time.Duration) (*protocol.Result, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if timeout > 0 {
		runCtx, cancel = context.WithTimeoutCause(ctx, timeout,
			flowerrors.New(flowerrors.CodeNodeTimeout, fmt.Sprintf("node timed out after %s", timeout)))
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan invocation, 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- invocation{err: flowerrors.New(flowerrors.CodeInternalError, fmt.Sprintf("executor panicked: %v", recovered))}
			}
		}()

		result, err := executor.Execute(runCtx, nodeCtx)
		done <- invocation{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			abortErr := execCtx.CheckAborted()
			if abortErr != nil {
				return nil, abortErr
			}

			if runCtx.Err() != nil && errors.Is(out.err, runCtx.Err()) {
				return nil, context.Cause(runCtx)
			}

			return nil, out.err
		}

		if out.result == nil {
			return nil, flowerrors.New(flowerrors.CodeInternalError, "executor returned no result")
		}

		return out.result, nil
	case <-runCtx.Done():
		abortErr := execCtx.CheckAborted()
		if abortErr != nil {
			return nil, abortErr
		}

		return nil, context.Cause(runCtx)
	}
}

// wait sleeps before a retry. The sleep never outlives the run.
func wait(execCtx *execution.Context, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-execCtx.Context().Done():
			return execCtx.CheckAborted()
		}
	}

	err := execCtx.CheckAborted()
	if err != nil {
		return err
	}

	return execCtx.CheckTimeout()
}

func nodeTimeout(node *models.Node) time.Duration {
	if node.Data == nil {
		return 0
	}

	var ms float64

	switch value := node.Data[TimeoutKey].(type) {
	case float64:
		ms = value
	case int:
		ms = float64(value)
	case int64:
		ms = float64(value)
	default:
		return 0
	}

	if ms <= 0 {
		return 0
	}

	return time.Duration(ms * float64(time.Millisecond))
}
