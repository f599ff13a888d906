package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/parallel"
	"github.com/dukex/flowengine/pkg/protocol"
)

// fork runs the outgoing edges of node as parallel branches and returns the
// join summary plus the join nodes reached by the successful branches.
func (e *Engine) fork(execCtx *execution.Context, node *models.Node, result *protocol.Result) (*parallel.Summary, []string, error) {
	directive := result.Parallel
	branches := execCtx.GetNextNodeIDs(node.ID, result)

	maxConcurrency := directive.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = e.config.MaxParallelBranches
	}

	var (
		mu    sync.Mutex
		joins = make(map[string][]string, len(branches))
	)

	execCtx.Logger().Debug("Forking parallel branches", "node_id", node.ID, "mode", directive.Mode, "branches", branches)

	joined, err := e.parallel.ExecuteBranches(parallel.Request{
		ExecutionID:     execCtx.ExecutionID(),
		Branches:        branches,
		Mode:            parallel.Mode(directive.Mode),
		Timeout:         time.Duration(directive.TimeoutMs) * time.Millisecond,
		ContinueOnError: directive.ContinueOnError,
		MaxConcurrency:  maxConcurrency,
		CancelLosers:    directive.CancelLosers,
		Context:         execCtx,
		Run: func(branch *execution.Context, startNodeID string) (map[string]any, error) {
			outcome, err := e.runChain(branch, startNodeID, node.ID, true)

			mu.Lock()
			joins[startNodeID] = outcome.joins
			mu.Unlock()

			if err != nil {
				return nil, err
			}

			return outcome.output, nil
		},
	})
	if err != nil {
		return nil, nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	next := make([]string, 0)

	for _, branch := range joined.Branches {
		if branch.Status != models.BranchStatusCompleted {
			continue
		}

		for _, joinID := range joins[branch.NodeID] {
			if !slices.Contains(next, joinID) {
				next = append(next, joinID)
			}
		}
	}

	return parallel.FormatResults(joined), next, nil
}
