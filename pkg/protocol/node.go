// Package protocol defines the interfaces and contracts for pluggable node executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/flowengine/pkg/models"
)

// NodeExecutor is the unit of work behind every node type.
type NodeExecutor interface {
	// Type returns the namespaced node type, e.g. "logic:condition".
	Type() string

	// Category returns the grouping category of the node type.
	Category() string

	// Execute runs the node against its read-only view of the run. A returned
	// error and a Result with Success=false are both treated as node failures.
	Execute(ctx context.Context, nodeCtx *NodeContext) (*Result, error)

	// Validate checks node.Data and returns human-readable problems.
	Validate(node *models.Node) []string
}

// MetadataProvider is implemented by executors that describe their configuration.
type MetadataProvider interface {
	Metadata() Metadata
}

// Factory creates an executor. It is called once at registration time.
type Factory func() (NodeExecutor, error)

// NodeContext is the read-only view handed to an executor. It holds copies of
// the run state so executors cannot mutate the execution context.
type NodeContext struct {
	ExecutionID string
	FlowID      string
	UserID      string
	BranchID    string
	Trigger     string

	Node *models.Node

	// Data is the node configuration with templates resolved.
	Data map[string]any

	// RawData is the node configuration as authored.
	RawData map[string]any

	// Input is the run input. Fallback nodes additionally find the failed
	// node's error under "error".
	Input map[string]any

	Variables map[string]any

	// Nodes holds the outputs of every node executed so far, keyed by node id.
	Nodes map[string]any

	// Previous is the output of the node that routed to this one, if any.
	Previous map[string]any

	Logger *slog.Logger
}

// TemplateData returns the data templates are rendered against.
func (c *NodeContext) TemplateData() map[string]any {
	return map[string]any{
		"input":     c.Input,
		"variables": c.Variables,
		"vars":      c.Variables,
		"nodes":     c.Nodes,
		"previous":  c.Previous,
		"execution": map[string]any{
			"id":       c.ExecutionID,
			"flowId":   c.FlowID,
			"userId":   c.UserID,
			"branchId": c.BranchID,
			"trigger":  c.Trigger,
		},
	}
}
