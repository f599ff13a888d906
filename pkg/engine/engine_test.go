package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/errorhandler"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/dukex/flowengine/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcExecutor struct {
	nodeType string
	run      func(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error)
}

func (f *funcExecutor) Type() string { return f.nodeType }

func (f *funcExecutor) Category() string { return (&models.Node{Type: f.nodeType}).Category() }

func (f *funcExecutor) Validate(_ *models.Node) []string { return nil }

func (f *funcExecutor) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	return f.run(ctx, nodeCtx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echo(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	return protocol.NewResult(map[string]any{"node": nodeCtx.Node.ID}), nil
}

type harness struct {
	registry *registry.Registry
	engine   *Engine
}

func newHarness(t *testing.T, executors ...*funcExecutor) *harness {
	t.Helper()

	reg := registry.NewRegistry(testLogger())
	reg.Register(&funcExecutor{nodeType: "trigger:manual", run: echo})
	reg.Register(&funcExecutor{nodeType: "test:echo", run: echo})

	for _, executor := range executors {
		reg.Register(executor)
	}

	handler := errorhandler.NewHandler(
		errorhandler.WithLogger(testLogger()),
		errorhandler.WithRandom(func() float64 { return 0.5 }),
	)

	return &harness{
		registry: reg,
		engine: New(reg,
			WithLogger(testLogger()),
			WithErrorHandler(handler),
			WithConfig(Config{DefaultTimeout: 5 * time.Second, MaxSteps: 50}),
		),
	}
}

func node(id, nodeType string, data map[string]any) *models.Node {
	return &models.Node{ID: id, Type: nodeType, Data: data}
}

func edge(source, target, handle string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target, SourceHandle: handle}
}

func recordsFor(summary *models.RunSummary, nodeID string) []*models.NodeExecutionRecord {
	var records []*models.NodeExecutionRecord

	for _, record := range summary.NodeExecutions {
		if record.NodeID == nodeID {
			records = append(records, record)
		}
	}

	return records
}

func TestExecute_LinearFlow(t *testing.T) {
	h := newHarness(t)
	flow := &models.Flow{
		ID: "flow-1",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:echo", nil),
			node("b", "test:echo", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, Input: map[string]any{"k": "v"}, Trigger: "manual"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	assert.Regexp(t, `^exec-[0-9a-f]{8}$`, summary.ID)
	assert.Equal(t, map[string]any{"node": "b"}, summary.Output)
	assert.Equal(t, map[string]any{"k": "v"}, summary.Input)
	assert.Len(t, summary.NodeExecutions, 3)
	assert.Equal(t, 3, summary.Progress.CompletedNodes)
	assert.NotNil(t, summary.EndTime)
	assert.Empty(t, h.engine.ActiveExecutions())
}

func TestExecute_ConditionalRouting(t *testing.T) {
	h := newHarness(t, &funcExecutor{
		nodeType: "test:branch",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			return protocol.NewResult(map[string]any{"result": true}).Route("TRUE"), nil
		},
	})

	flow := &models.Flow{
		ID: "flow-cond",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:branch", nil),
			node("b", "test:echo", nil),
			node("c", "test:echo", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "true"), edge("a", "c", "false")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.NoError(t, err)

	assert.Contains(t, summary.NodeOutputs, "b")
	assert.NotContains(t, summary.NodeOutputs, "c")
}

func TestExecute_TimeoutIsMonotonic(t *testing.T) {
	h := newHarness(t, &funcExecutor{
		nodeType: "test:sleep",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			time.Sleep(500 * time.Millisecond)

			return protocol.NewResult(nil), nil
		},
	})

	flow := &models.Flow{
		ID:    "flow-timeout",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("slow", "test:sleep", nil)},
		Edges: []*models.Edge{edge("start", "slow", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, Timeout: 100 * time.Millisecond})
	require.Error(t, err)

	var timeoutErr *flowerrors.FlowTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
	require.NotNil(t, summary.Error)
	assert.Equal(t, flowerrors.CodeFlowTimeout, summary.Error.Code)
	assert.Equal(t, "slow", summary.Error.NodeID)
	assert.GreaterOrEqual(t, summary.DurationMs, int64(90))
	assert.Less(t, summary.DurationMs, int64(400))
}

// flaky fails with a transient error until it has been called succeedOn times.
func flaky(calls *atomic.Int32, succeedOn int32) *funcExecutor {
	return &funcExecutor{
		nodeType: "test:flaky",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			if calls.Add(1) < succeedOn {
				return nil, flowerrors.New(flowerrors.CodeServiceUnavailable, "upstream unavailable")
			}

			return protocol.NewResult(map[string]any{"ok": true}), nil
		},
	}
}

func retryFlow() *models.Flow {
	return &models.Flow{
		ID: "flow-retry",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:flaky", map[string]any{
				errorhandler.ConfigKey: map[string]any{
					"strategy": "RETRY", "maxRetries": 2, "backoff": "CONSTANT", "baseDelay": 10, "jitter": false,
				},
			}),
			node("b", "test:echo", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}
}

func TestExecute_RetryThenSucceed(t *testing.T) {
	var calls atomic.Int32

	h := newHarness(t, flaky(&calls, 3))
	progress := make(chan models.ProgressEvent, 64)

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: retryFlow(), Progress: progress})
	require.NoError(t, err)

	attempts := recordsFor(summary, "a")
	require.Len(t, attempts, 3)
	assert.Equal(t, models.NodeStatusFailed, attempts[0].Status)
	assert.Equal(t, flowerrors.CodeServiceUnavailable, attempts[0].ErrorCode)
	assert.Equal(t, models.NodeStatusFailed, attempts[1].Status)
	assert.Equal(t, models.NodeStatusCompleted, attempts[2].Status)
	assert.Equal(t, []int{1, 2, 3}, []int{attempts[0].Attempt, attempts[1].Attempt, attempts[2].Attempt})

	assert.Contains(t, summary.NodeOutputs, "b")

	retries := 0

	for len(progress) > 0 {
		if event := <-progress; event.Type == models.ProgressNodeRetry {
			retries++
		}
	}

	assert.Equal(t, 2, retries)
}

func TestExecute_RetryExhausted(t *testing.T) {
	var calls atomic.Int32

	h := newHarness(t, flaky(&calls, 100))

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: retryFlow()})
	require.Error(t, err)

	var failure *NodeFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "a", failure.NodeID)

	assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
	assert.Len(t, recordsFor(summary, "a"), 3)
	assert.Empty(t, recordsFor(summary, "b"))
	assert.Equal(t, flowerrors.CodeServiceUnavailable, summary.Error.Code)
	assert.Equal(t, "a", summary.Error.NodeID)
}

func failing(code string) *funcExecutor {
	return &funcExecutor{
		nodeType: "test:fail",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			return protocol.NewErrorResult(code, "it broke"), nil
		},
	}
}

func TestExecute_Fallback(t *testing.T) {
	var fallbackInput map[string]any

	h := newHarness(t, failing(flowerrors.CodeForbidden), &funcExecutor{
		nodeType: "test:capture",
		run: func(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
			fallbackInput = nodeCtx.Input

			return protocol.NewResult(map[string]any{"recovered": true}), nil
		},
	})

	flow := &models.Flow{
		ID: "flow-fallback",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:fail", map[string]any{
				errorhandler.ConfigKey: map[string]any{"strategy": "FALLBACK", "fallbackNodeId": "backup"},
			}),
			node("b", "test:echo", nil),
			node("backup", "test:capture", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, Input: map[string]any{"user": "u1"}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	assert.NotContains(t, summary.NodeOutputs, "b")
	assert.Equal(t, map[string]any{"recovered": true}, summary.NodeOutputs["backup"])

	assert.Equal(t, "u1", fallbackInput["user"])
	assert.Equal(t, "a", fallbackInput["failedNodeId"])
	assert.Equal(t, map[string]any{
		"code": flowerrors.CodeForbidden, "message": "it broke", "category": string(flowerrors.CategoryPermanent),
	}, fallbackInput["error"])
}

func TestExecute_FallbackWithoutTargetStops(t *testing.T) {
	h := newHarness(t, failing(flowerrors.CodeForbidden))

	flow := &models.Flow{
		ID: "flow-degrade",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:fail", map[string]any{errorhandler.ConfigKey: map[string]any{"strategy": "FALLBACK"}}),
			node("b", "test:echo", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.Error(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
	assert.Equal(t, flowerrors.CodeForbidden, summary.Error.Code)
	assert.NotContains(t, summary.NodeOutputs, "b")
}

func TestExecute_Skip(t *testing.T) {
	h := newHarness(t, failing(flowerrors.CodeNotFound))

	flow := &models.Flow{
		ID: "flow-skip",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:fail", map[string]any{errorhandler.ConfigKey: map[string]any{"strategy": "SKIP"}}),
			node("b", "test:echo", nil),
		},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.NoError(t, err)

	records := recordsFor(summary, "a")
	require.Len(t, records, 1, "one record per attempt")
	assert.Equal(t, models.NodeStatusSkipped, records[0].Status)
	assert.Equal(t, "it broke", records[0].Error)
	assert.Equal(t, flowerrors.CodeNotFound, records[0].ErrorCode)
	assert.Equal(t, 1, records[0].Attempt)
	assert.Equal(t, 0, summary.Progress.FailedNodes)

	assert.Equal(t, map[string]any{"skipped": true, "reason": "it broke", "errorCode": flowerrors.CodeNotFound}, summary.NodeOutputs["a"])
	assert.Contains(t, summary.NodeOutputs, "b")
	assert.Equal(t, 1, summary.Progress.SkippedNodes)
}

func TestExecute_DisabledNodePassesThrough(t *testing.T) {
	h := newHarness(t)

	disabled := node("a", "test:echo", nil)
	disabled.Disabled = true

	flow := &models.Flow{
		ID:    "flow-disabled",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), disabled, node("b", "test:echo", nil)},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "b", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.NoError(t, err)

	assert.NotContains(t, summary.NodeOutputs, "a")
	assert.Contains(t, summary.NodeOutputs, "b")
	assert.Equal(t, models.NodeStatusSkipped, recordsFor(summary, "a")[0].Status)
}

func TestExecute_ParallelForkAndJoin(t *testing.T) {
	var (
		mu          sync.Mutex
		mergeCalls  int
		mergeInputs map[string]any
	)

	h := newHarness(t,
		&funcExecutor{
			nodeType: "logic:parallel",
			run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
				result := protocol.NewResult(map[string]any{"forked": true})
				result.Parallel = &protocol.ParallelDirective{Mode: "ALL"}

				return result, nil
			},
		},
		&funcExecutor{
			nodeType: "test:write",
			run: func(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
				time.Sleep(time.Duration(len(nodeCtx.Node.ID)) * 5 * time.Millisecond)

				result := protocol.NewResult(map[string]any{"wrote": nodeCtx.Node.ID})
				result.Variables = map[string]any{"x": nodeCtx.Node.ID, "seen_" + nodeCtx.Node.ID: true}

				return result, nil
			},
		},
		&funcExecutor{
			nodeType: JoinNodeType,
			run: func(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
				mu.Lock()
				defer mu.Unlock()

				mergeCalls++
				mergeInputs = nodeCtx.Previous

				return protocol.NewResult(map[string]any{"merged": true}), nil
			},
		},
	)

	flow := &models.Flow{
		ID: "flow-parallel",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("fork", "logic:parallel", nil),
			node("left-long", "test:write", nil),
			node("r", "test:write", nil),
			node("join", JoinNodeType, nil),
			node("end", "test:echo", nil),
		},
		Edges: []*models.Edge{
			edge("start", "fork", ""),
			edge("fork", "left-long", ""),
			edge("fork", "r", ""),
			edge("left-long", "join", ""),
			edge("r", "join", ""),
			edge("join", "end", ""),
		},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.NoError(t, err)

	assert.Equal(t, "r", summary.Variables["x"], "merge follows declaration order, last merged wins")
	assert.Equal(t, true, summary.Variables["seen_left-long"])
	assert.Equal(t, true, summary.Variables["seen_r"])

	assert.Equal(t, 1, mergeCalls, "join node runs once after the join")
	assert.Equal(t, 2, mergeInputs["successCount"])
	assert.Equal(t, true, mergeInputs["forked"])

	assert.Contains(t, summary.NodeOutputs, "end")
	assert.Equal(t, map[string]any{"wrote": "r"}, summary.NodeOutputs["r"])

	for _, record := range recordsFor(summary, "r") {
		assert.NotEmpty(t, record.BranchID)
	}
}

func TestExecute_ForkVariablesFollowTheJoin(t *testing.T) {
	forking := &funcExecutor{
		nodeType: "logic:parallel",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			result := protocol.NewResult(nil)
			result.Parallel = &protocol.ParallelDirective{Mode: "ALL"}
			result.Variables = map[string]any{"forked": true}

			return result, nil
		},
	}

	flowWith := func(branchType string) *models.Flow {
		return &models.Flow{
			ID: "flow-fork-vars",
			Nodes: []*models.Node{
				node("start", "trigger:manual", nil),
				node("fork", "logic:parallel", nil),
				node("branch", branchType, nil),
			},
			Edges: []*models.Edge{edge("start", "fork", ""), edge("fork", "branch", "")},
		}
	}

	t.Run("join succeeded", func(t *testing.T) {
		h := newHarness(t, forking)

		summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flowWith("test:echo")})
		require.NoError(t, err)
		assert.Equal(t, true, summary.Variables["forked"])
	})

	t.Run("join failed", func(t *testing.T) {
		h := newHarness(t, forking, failing(flowerrors.CodeNotFound))

		summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flowWith("test:fail")})
		require.Error(t, err)
		assert.NotContains(t, summary.Variables, "forked")
	})
}

func TestExecute_NoProgressAfterRunCompleted(t *testing.T) {
	h := newHarness(t,
		&funcExecutor{
			nodeType: "logic:parallel",
			run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
				result := protocol.NewResult(nil)
				result.Parallel = &protocol.ParallelDirective{Mode: "ANY"}

				return result, nil
			},
		},
		&funcExecutor{
			nodeType: "test:slow",
			run: func(ctx context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
				<-ctx.Done()

				return nil, ctx.Err()
			},
		},
	)

	flow := &models.Flow{
		ID: "flow-any",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("fork", "logic:parallel", nil),
			node("fast", "test:echo", nil),
			node("slow", "test:slow", nil),
		},
		Edges: []*models.Edge{edge("start", "fork", ""), edge("fork", "fast", ""), edge("fork", "slow", "")},
	}

	progress := make(chan models.ProgressEvent, 256)

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, Progress: progress})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)

	time.Sleep(20 * time.Millisecond)

	var types []models.ProgressEventType

	for len(progress) > 0 {
		types = append(types, (<-progress).Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, models.ProgressRunCompleted, types[len(types)-1], "run:completed is the last event: %v", types)
	assert.Empty(t, h.engine.ActiveExecutions())
}

func TestExecute_Cancel(t *testing.T) {
	started := make(chan struct{})

	h := newHarness(t, &funcExecutor{
		nodeType: "test:block",
		run: func(ctx context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			close(started)
			<-ctx.Done()

			return nil, ctx.Err()
		},
	})

	flow := &models.Flow{
		ID:    "flow-cancel",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "test:block", nil)},
		Edges: []*models.Edge{edge("start", "a", "")},
	}

	go func() {
		<-started
		assert.NoError(t, h.engine.Cancel("exec-cancel", "user request"))
	}()

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, ExecutionID: "exec-cancel"})
	require.Error(t, err)

	var cancelled *flowerrors.FlowCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "user request", cancelled.Reason)
	assert.Equal(t, models.ExecutionStatusCancelled, summary.Status)
	assert.Equal(t, flowerrors.CodeFlowCancelled, summary.Error.Code)

	require.ErrorIs(t, h.engine.Cancel("exec-cancel", "again"), ErrExecutionNotFound)
}

func TestExecute_NodeTimeout(t *testing.T) {
	h := newHarness(t, &funcExecutor{
		nodeType: "test:block",
		run: func(ctx context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			<-ctx.Done()

			return nil, ctx.Err()
		},
	})

	flow := &models.Flow{
		ID:    "flow-node-timeout",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "test:block", map[string]any{TimeoutKey: 20})},
		Edges: []*models.Edge{edge("start", "a", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeNodeTimeout, summary.Error.Code)
	assert.Equal(t, string(flowerrors.CategoryTimeout), summary.Error.Category)
}

func TestExecute_ExecutorPanic(t *testing.T) {
	h := newHarness(t, &funcExecutor{
		nodeType: "test:panic",
		run: func(_ context.Context, _ *protocol.NodeContext) (*protocol.Result, error) {
			panic("kaboom")
		},
	})

	flow := &models.Flow{
		ID:    "flow-panic",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "test:panic", nil)},
		Edges: []*models.Edge{edge("start", "a", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeInternalError, summary.Error.Code)
	assert.Contains(t, summary.Error.Message, "kaboom")
}

func TestExecute_UnknownNodeType(t *testing.T) {
	h := newHarness(t)

	flow := &models.Flow{
		ID:    "flow-unknown",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "ai:chatCompletion", nil)},
		Edges: []*models.Edge{edge("start", "a", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeUnknownNodeType, summary.Error.Code)
}

func TestExecute_MaxStepsGuardsLoops(t *testing.T) {
	h := newHarness(t)

	flow := &models.Flow{
		ID:    "flow-loop",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "test:echo", nil)},
		Edges: []*models.Edge{edge("start", "a", ""), edge("a", "a", "")},
	}

	summary, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow})
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeExecutionFailed, summary.Error.Code)
	assert.Len(t, summary.NodeExecutions, 50)
}

func TestExecute_ResolvesTemplates(t *testing.T) {
	var greeting any

	h := newHarness(t, &funcExecutor{
		nodeType: "test:greet",
		run: func(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
			greeting = nodeCtx.Data["greeting"]

			return protocol.NewResult(nil), nil
		},
	})

	flow := &models.Flow{
		ID:        "flow-template",
		Variables: map[string]any{"salutation": "hello"},
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "test:greet", map[string]any{"greeting": "{{.variables.salutation}} {{.input.name}} from {{.nodes.start.node}}"}),
		},
		Edges: []*models.Edge{edge("start", "a", "")},
	}

	_, err := h.engine.Execute(t.Context(), RunRequest{Flow: flow, Input: map[string]any{"name": "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada from start", greeting)
}

func TestStartNode(t *testing.T) {
	flow := &models.Flow{
		Nodes: []*models.Node{
			node("a", "test:echo", nil),
			node("hook", "trigger:webhook", nil),
			node("cron", "trigger:schedule", nil),
		},
		Edges: []*models.Edge{edge("hook", "a", "")},
	}

	id, err := startNode(flow, "", "schedule")
	require.NoError(t, err)
	assert.Equal(t, "cron", id)

	id, err = startNode(flow, "", "")
	require.NoError(t, err)
	assert.Equal(t, "hook", id)

	id, err = startNode(flow, "a", "")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = startNode(flow, "ghost", "")
	require.ErrorIs(t, err, ErrNoStartNode)

	id, err = startNode(&models.Flow{
		Nodes: []*models.Node{node("x", "test:echo", nil), node("y", "test:echo", nil)},
		Edges: []*models.Edge{edge("x", "y", "")},
	}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "x", id)

	_, err = startNode(&models.Flow{}, "", "")
	require.ErrorIs(t, err, ErrNoStartNode)
}

func TestValidateFlow(t *testing.T) {
	h := newHarness(t)

	valid := &models.Flow{
		ID:    "flow-ok",
		Nodes: []*models.Node{node("start", "trigger:manual", nil), node("a", "test:echo", nil)},
		Edges: []*models.Edge{edge("start", "a", "")},
	}
	assert.Empty(t, h.engine.ValidateFlow(valid))

	broken := &models.Flow{
		ID: "flow-broken",
		Nodes: []*models.Node{
			node("start", "trigger:manual", nil),
			node("a", "ai:chatCompletion", nil),
			node("b", "test:echo", map[string]any{errorhandler.ConfigKey: map[string]any{"fallbackNodeId": "ghost"}}),
		},
		Edges: []*models.Edge{edge("start", "missing", "")},
	}

	problems := h.engine.ValidateFlow(broken)
	assert.Contains(t, problems, "edge start-missing references unknown target node missing")
	assert.Contains(t, problems, "node a: Unknown node type: ai:chatCompletion")
	assert.Contains(t, problems, `node b: errorHandling.fallbackNodeId references unknown node "ghost"`)

	assert.NotEmpty(t, h.engine.ValidateFlow(&models.Flow{}))
	assert.Equal(t, []string{"flow is required"}, h.engine.ValidateFlow(nil))
}
