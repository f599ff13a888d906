package engine

import (
	"fmt"
	"slices"

	"github.com/dukex/flowengine/pkg/execution"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
)

// JoinNodeType is the node type where parallel branches stop and the parent
// chain resumes after the join.
const JoinNodeType = "logic:merge"

type step struct {
	nodeID   string
	previous string

	// resumed marks a join node reached after its fork resolved.
	resumed bool
}

// chainOutcome is what a chain leaves behind: the output of the last node it
// executed and, for branches, the join nodes where it stopped.
type chainOutcome struct {
	output map[string]any
	joins  []string
}

// runChain executes nodes in the order dictated by edge resolution. A branch
// chain stops at join nodes instead of executing them.
func (e *Engine) runChain(execCtx *execution.Context, startNodeID, previousNodeID string, branch bool) (*chainOutcome, error) {
	flow := execCtx.Flow()
	outcome := &chainOutcome{}
	queue := []step{{nodeID: startNodeID, previous: previousNodeID}}
	steps := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		err := execCtx.CheckAborted()
		if err != nil {
			return outcome, err
		}

		err = execCtx.CheckTimeout()
		if err != nil {
			return outcome, err
		}

		node := flow.NodeByID(current.nodeID)
		if node == nil {
			return outcome, &NodeFailure{
				NodeID: current.previous,
				Err:    flowerrors.New(flowerrors.CodeInvalidConfig, fmt.Sprintf("edge targets unknown node %s", current.nodeID)),
			}
		}

		if branch && isJoin(node) && !current.resumed && current.nodeID != startNodeID {
			if !slices.Contains(outcome.joins, node.ID) {
				outcome.joins = append(outcome.joins, node.ID)
			}

			continue
		}

		steps++
		if steps > e.config.MaxSteps {
			return outcome, &NodeFailure{
				NodeID: node.ID,
				Err:    flowerrors.New(flowerrors.CodeExecutionFailed, fmt.Sprintf("maximum of %d steps exceeded", e.config.MaxSteps)),
			}
		}

		result, err := e.executeNode(execCtx, node, current.previous)
		if err != nil {
			return outcome, err
		}

		if result.output != nil {
			outcome.output = result.output
		}

		for _, nextID := range result.next {
			if queued(queue, nextID) {
				continue
			}

			queue = append(queue, step{nodeID: nextID, previous: node.ID, resumed: result.resume})
		}
	}

	return outcome, nil
}

func queued(queue []step, nodeID string) bool {
	return slices.ContainsFunc(queue, func(s step) bool { return s.nodeID == nodeID })
}

// isJoin reports whether a node is where branches of a fork meet.
func isJoin(node *models.Node) bool {
	return node != nil && node.Type == JoinNodeType
}
