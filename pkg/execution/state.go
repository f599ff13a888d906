package execution

import (
	"maps"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/dukex/flowengine/pkg/template"
)

// recordLog is shared by a run and all of its branches so that failed
// branches still appear in the run timeline.
type recordLog struct {
	mu      sync.Mutex
	records []*models.NodeExecutionRecord
}

func (l *recordLog) append(record *models.NodeExecutionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
}

func (l *recordLog) snapshot() []*models.NodeExecutionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.NodeExecutionRecord, len(l.records))
	copy(out, l.records)

	return out
}

// SetNodeOutput stores the output of a node. Overwriting is allowed and
// every write emits node:output.
func (c *Context) SetNodeOutput(nodeID string, output map[string]any) {
	c.mu.Lock()
	c.nodeOutputs[nodeID] = copyMap(output)
	c.executed[nodeID] = true
	c.dirtyOutputs[nodeID] = true
	c.mu.Unlock()

	c.Emit(models.ProgressNodeOutput, nodeID, map[string]any{"output": copyMap(output)})
}

// GetNodeOutput returns a copy of the output of a node.
func (c *Context) GetNodeOutput(nodeID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	output, ok := c.nodeOutputs[nodeID]
	if !ok {
		return nil, false
	}

	out, _ := deepCopy(output).(map[string]any)

	return out, true
}

// NodeOutputs returns a copy of every node output.
func (c *Context) NodeOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyMap(c.nodeOutputs)
}

// HasExecuted reports whether a node produced an output in this context.
func (c *Context) HasExecuted(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.executed[nodeID]
}

// SetVariable sets a flow-scoped variable.
func (c *Context) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.variables[key] = deepCopy(value)
	c.dirtyVars[key] = true
}

// GetVariable returns a copy of a variable.
func (c *Context) GetVariable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.variables[key]

	return deepCopy(value), ok
}

// Variables returns a copy of every variable.
func (c *Context) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyMap(c.variables)
}

// Input returns a copy of the frozen run input.
func (c *Context) Input() map[string]any {
	return copyMap(c.input)
}

// SetFallbackInput records extra input for a node reached through a fallback.
func (c *Context) SetFallbackInput(nodeID string, extra map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fallbackInputs[nodeID] = copyMap(extra)
}

// AppendRecord appends a node attempt to the run timeline.
func (c *Context) AppendRecord(record *models.NodeExecutionRecord) {
	if record.BranchID == "" {
		record.BranchID = c.branchID
	}

	c.records.append(record)
}

// Records returns the run timeline.
func (c *Context) Records() []*models.NodeExecutionRecord {
	return c.records.snapshot()
}

// CreateNodeContext builds the read-only view handed to an executor. Node
// data templates are resolved against the current state.
func (c *Context) CreateNodeContext(node *models.Node, previousNodeID string) (*protocol.NodeContext, error) {
	c.mu.RLock()

	input := copyMap(c.input)
	if extra, ok := c.fallbackInputs[node.ID]; ok {
		maps.Copy(input, copyMap(extra))
	}

	var previous map[string]any
	if previousNodeID != "" {
		previous, _ = deepCopy(c.nodeOutputs[previousNodeID]).(map[string]any)
	}

	nodeCtx := &protocol.NodeContext{
		ExecutionID: c.executionID,
		FlowID:      c.flowID,
		UserID:      c.userID,
		BranchID:    c.branchID,
		Trigger:     c.trigger,
		Node:        &models.Node{ID: node.ID, Type: node.Type, Data: copyMap(node.Data), Disabled: node.Disabled},
		RawData:     copyMap(node.Data),
		Input:       input,
		Variables:   copyMap(c.variables),
		Nodes:       copyMap(c.nodeOutputs),
		Previous:    previous,
		Logger:      c.logger.With("node_id", node.ID, "node_type", node.Type, "branch_id", c.branchID),
	}

	c.mu.RUnlock()

	data, err := template.ResolveData(node.Data, nodeCtx.TemplateData())
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeValidationError, err)
	}

	nodeCtx.Data = data

	return nodeCtx, nil
}

// Emit publishes a progress event without blocking the run.
func (c *Context) Emit(eventType models.ProgressEventType, nodeID string, data map[string]any) {
	if c.progress == nil {
		return
	}

	event := models.ProgressEvent{
		Type:        eventType,
		ExecutionID: c.executionID,
		FlowID:      c.flowID,
		NodeID:      nodeID,
		BranchID:    c.branchID,
		Timestamp:   time.Now().UTC(),
		Data:        data,
	}

	select {
	case c.progress <- event:
	default:
		c.logger.Warn("Progress channel full, dropping event", "event_type", eventType, "node_id", nodeID)
	}
}
