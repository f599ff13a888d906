package code

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(ctx context.Context, script string, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	nodeCtx.Data = map[string]any{"script": script}
	nodeCtx.Node = &models.Node{ID: "code", Type: Type, Data: nodeCtx.Data}

	return NewCodeNode().Execute(ctx, nodeCtx)
}

func TestCodeNode_ReturnsObject(t *testing.T) {
	result, err := execute(t.Context(), `return { total: input.a + input.b, name: variables.name }`, &protocol.NodeContext{
		Input:     map[string]any{"a": float64(1), "b": float64(2)},
		Variables: map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, map[string]any{"total": float64(3), "name": "Ada"}, result.Output)
}

func TestCodeNode_WrapsScalars(t *testing.T) {
	result, err := execute(t.Context(), `return previous.items.length`, &protocol.NodeContext{
		Previous: map[string]any{"items": []any{"a", "b", "c"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": float64(3)}, result.Output)

	result, err = execute(t.Context(), `var x = 1;`, &protocol.NodeContext{})
	require.NoError(t, err)
	assert.Empty(t, result.Output)
}

func TestCodeNode_Console(t *testing.T) {
	var buf bytes.Buffer

	_, err := execute(t.Context(), `console.log("hello", 42); return {}`, &protocol.NodeContext{
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="hello 42"`)
}

func TestCodeNode_Exception(t *testing.T) {
	result, err := execute(t.Context(), `throw new Error("boom")`, &protocol.NodeContext{})
	require.NoError(t, err)
	require.False(t, result.Success)

	nodeErr := result.AsError()
	assert.Equal(t, flowerrors.CodeExecutionFailed, flowerrors.Code(nodeErr))
	assert.Contains(t, nodeErr.Error(), "boom")
	assert.False(t, flowerrors.IsRecoverable(nodeErr))
}

func TestCodeNode_Interrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()

	_, err := execute(ctx, `while (true) {}`, &protocol.NodeContext{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestCodeNode_Validate(t *testing.T) {
	n := NewCodeNode()

	assert.Empty(t, n.Validate(&models.Node{ID: "c", Data: map[string]any{"script": "return 1"}}))
	assert.Equal(t, []string{"script is required"}, n.Validate(&models.Node{ID: "c", Data: map[string]any{}}))

	problems := n.Validate(&models.Node{ID: "c", Data: map[string]any{"script": "return {"}})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "script does not compile")
}
