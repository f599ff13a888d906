package execution

import (
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranch_Isolation(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()
	parent.SetVariable("shared", map[string]any{"list": []any{1}})
	parent.SetNodeOutput("start", map[string]any{"v": 1})

	left := parent.CreateBranchContext("left")
	right := parent.CreateBranchContext("right")
	t.Cleanup(left.Release)
	t.Cleanup(right.Release)

	left.SetVariable("x", "left")
	right.SetVariable("x", "right")

	leftValue, _ := left.GetVariable("x")
	rightValue, _ := right.GetVariable("x")
	assert.Equal(t, "left", leftValue)
	assert.Equal(t, "right", rightValue)

	_, inParent := parent.GetVariable("x")
	assert.False(t, inParent, "branch writes are invisible until merged")

	// nested values are not shared between branches
	shared, _ := left.GetVariable("shared")
	shared.(map[string]any)["list"] = []any{1, 2}
	left.SetVariable("shared", shared)

	rightShared, _ := right.GetVariable("shared")
	assert.Equal(t, []any{1}, rightShared.(map[string]any)["list"])

	output, ok := left.GetNodeOutput("start")
	require.True(t, ok)
	assert.Equal(t, 1, output["v"])
}

func TestBranch_MergeLastWins(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()
	parent.SetVariable("keep", "parent")

	left := parent.CreateBranchContext("left")
	right := parent.CreateBranchContext("right")

	left.SetVariable("x", "left")
	left.SetNodeOutput("yes", map[string]any{"from": "left"})
	right.SetVariable("x", "right")
	right.SetNodeOutput("no", map[string]any{"from": "right"})

	require.NoError(t, parent.MergeBranchContext(left))
	require.NoError(t, parent.MergeBranchContext(right))

	x, _ := parent.GetVariable("x")
	assert.Equal(t, "right", x)

	keep, _ := parent.GetVariable("keep")
	assert.Equal(t, "parent", keep, "untouched keys are not overwritten by branch snapshots")

	assert.True(t, parent.HasExecuted("yes"))
	assert.True(t, parent.HasExecuted("no"))
}

func TestBranch_MergeDoesNotRevertParentWrites(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()
	parent.SetVariable("count", 1)

	branch := parent.CreateBranchContext("b1")
	parent.SetVariable("count", 2)
	branch.SetVariable("other", true)

	require.NoError(t, parent.MergeBranchContext(branch))

	count, _ := parent.GetVariable("count")
	assert.Equal(t, 2, count)
}

func TestBranch_MergeRejectsForeignContext(t *testing.T) {
	parent := newTestContext(t, Options{})
	other := newTestContext(t, Options{})
	parent.Start()
	other.Start()

	branch := other.CreateBranchContext("b1")

	require.ErrorIs(t, parent.MergeBranchContext(branch), ErrNotChild)
	require.ErrorIs(t, parent.MergeBranchContext(nil), ErrNotChild)
}

func TestBranch_NestedMergePropagates(t *testing.T) {
	root := newTestContext(t, Options{})
	root.Start()

	child := root.CreateBranchContext("child")
	grandchild := child.CreateBranchContext("grandchild")

	grandchild.SetVariable("deep", "value")
	require.NoError(t, child.MergeBranchContext(grandchild))
	require.NoError(t, root.MergeBranchContext(child))

	deep, ok := root.GetVariable("deep")
	require.True(t, ok)
	assert.Equal(t, "value", deep)
}

func TestBranch_RemainingBudget(t *testing.T) {
	parent := newTestContext(t, Options{Timeout: 200 * time.Millisecond})
	parent.Start()

	time.Sleep(60 * time.Millisecond)

	branch := parent.CreateBranchContext("b1")
	assert.Less(t, branch.Timeout(), 150*time.Millisecond)
	assert.Greater(t, branch.Timeout(), time.Duration(0))
	assert.Equal(t, "b1", branch.BranchID())
	assert.Same(t, parent, branch.Parent())
}

func TestBranch_AbortPropagatesDown(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()

	branch := parent.CreateBranchContext("b1")
	parent.Abort("stop")

	var cancelled *flowerrors.FlowCancelledError
	require.ErrorAs(t, branch.CheckAborted(), &cancelled)
	assert.Equal(t, "stop", cancelled.Reason)
}

func TestBranch_InterruptStaysLocal(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()

	branch := parent.CreateBranchContext("b1")
	branch.Interrupt(flowerrors.New(flowerrors.CodeBranchTimeout, "too slow"))

	assert.Equal(t, flowerrors.CodeBranchTimeout, flowerrors.Code(branch.CheckAborted()))
	assert.NoError(t, parent.CheckAborted())
}

func TestBranch_SharedTimeline(t *testing.T) {
	parent := newTestContext(t, Options{})
	parent.Start()

	branch := parent.CreateBranchContext("b1")
	branch.AppendRecord(&models.NodeExecutionRecord{NodeID: "yes", Status: models.NodeStatusFailed})

	records := parent.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "b1", records[0].BranchID)
}
