package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFlow() *Flow {
	return &Flow{
		ID: "flow-1",
		Nodes: []*Node{
			{ID: "start", Type: "trigger:manual"},
			{ID: "check", Type: "logic:condition", Data: map[string]any{"condition": "true"}},
			{ID: "yes", Type: "utility:log"},
			{ID: "no", Type: "utility:log"},
		},
		Edges: []*Edge{
			{Source: "start", Target: "check"},
			{Source: "check", Target: "yes", SourceHandle: "true"},
			{Source: "check", Target: "no", SourceHandle: "false"},
		},
	}
}

func TestSplitNodeType(t *testing.T) {
	category, name := SplitNodeType("ai:chatCompletion")
	assert.Equal(t, "ai", category)
	assert.Equal(t, "chatCompletion", name)

	category, name = SplitNodeType("plain")
	assert.Empty(t, category)
	assert.Equal(t, "plain", name)
}

func TestFlow_Lookups(t *testing.T) {
	flow := sampleFlow()

	require.NotNil(t, flow.NodeByID("check"))
	assert.Nil(t, flow.NodeByID("missing"))

	out := flow.OutgoingEdges("check")
	require.Len(t, out, 2)
	assert.Equal(t, "yes", out[0].Target)
	assert.Equal(t, "no", out[1].Target)

	assert.Len(t, flow.IncomingEdges("check"), 1)
	assert.Empty(t, flow.IncomingEdges("start"))

	triggers := flow.TriggerNodes()
	require.Len(t, triggers, 1)
	assert.Equal(t, "start", triggers[0].ID)
}

func TestFlow_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	require.NoError(t, validate.Struct(sampleFlow()))

	err := validate.Struct(&Flow{ID: "empty"})
	require.Error(t, err)

	broken := sampleFlow()
	broken.Edges = append(broken.Edges, &Edge{Source: "yes"})
	require.Error(t, validate.Struct(broken))
}

func TestFlow_DecodeBuilderJSON(t *testing.T) {
	payload := `{
		"id": "flow-2",
		"nodes": [
			{"id": "a", "type": "trigger:webhook", "data": {"path": "/hook"}},
			{"id": "b", "type": "utility:log", "disabled": true}
		],
		"edges": [{"id": "e1", "source": "a", "target": "b", "sourceHandle": "Default"}],
		"variables": {"retries": 2}
	}`

	var flow Flow

	require.NoError(t, json.Unmarshal([]byte(payload), &flow))
	assert.Equal(t, "flow-2", flow.ID)
	assert.True(t, flow.Nodes[1].Disabled)
	assert.Equal(t, "Default", flow.Edges[0].SourceHandle)
	assert.Equal(t, "/hook", flow.Nodes[0].Data["path"])
	assert.InDelta(t, 2.0, flow.Variables["retries"], 0)
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusPending.IsTerminal())
	assert.False(t, ExecutionStatusRunning.IsTerminal())
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
}
