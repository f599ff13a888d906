package transform

import (
	"testing"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, data map[string]any, previous map[string]any) map[string]any {
	t.Helper()

	result, err := NewTransformNode().Execute(t.Context(), &protocol.NodeContext{
		Node:     &models.Node{ID: "transform", Type: Type, Data: data},
		Data:     data,
		Previous: previous,
	})
	require.NoError(t, err)

	return result.Output
}

func TestTransformNode_Mapping(t *testing.T) {
	output := run(t, map[string]any{
		"mapping": map[string]any{"greeting": "hello Ada", "count": float64(2)},
	}, nil)

	assert.Equal(t, map[string]any{"greeting": "hello Ada", "count": float64(2)}, output)
}

func TestTransformNode_PathOverPrevious(t *testing.T) {
	previous := map[string]any{
		"items": []any{
			map[string]any{"id": "a", "price": 10},
			map[string]any{"id": "b", "price": 5},
		},
	}

	output := run(t, map[string]any{
		"path":  "items.#.id",
		"paths": map[string]any{"first": "items.0.price", "missing": "nope"},
	}, previous)

	assert.Equal(t, []any{"a", "b"}, output["value"])
	assert.InEpsilon(t, 10.0, output["first"], 0.0001)
	assert.Nil(t, output["missing"])
}

func TestTransformNode_ExplicitSource(t *testing.T) {
	output := run(t, map[string]any{
		"source": map[string]any{"user": map[string]any{"name": "Ada"}},
		"path":   "user.name",
	}, map[string]any{"user": map[string]any{"name": "Grace"}})

	assert.Equal(t, "Ada", output["value"])
}

func TestTransformNode_Validate(t *testing.T) {
	n := NewTransformNode()

	assert.Empty(t, n.Validate(&models.Node{Data: map[string]any{"path": "a.b"}}))
	assert.Equal(t, []string{"one of mapping, path or paths is required"}, n.Validate(&models.Node{Data: map[string]any{}}))
}
