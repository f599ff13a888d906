package merge

import (
	"context"
	"fmt"
	"maps"

	"dario.cat/mergo"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const (
	Type = "logic:merge"

	StrategyDeep    = "deep"
	StrategyShallow = "shallow"
)

type Config struct {
	Strategy string   `json:"strategy,omitempty" validate:"omitempty,oneof=deep shallow"`
	NodeIDs  []string `json:"nodeIds,omitempty"`
}

// MergeNode joins parallel branches. It folds the outputs it is given, in
// order, into a single map: later outputs override earlier keys.
//
// Sources, by precedence: the outputs of the nodes named in nodeIds, the
// completed branches of the parallel node that routed here, or the previous
// output itself.
type MergeNode struct{}

func NewMergeNode() *MergeNode {
	return &MergeNode{}
}

func (n *MergeNode) Type() string {
	return Type
}

func (n *MergeNode) Category() string {
	return models.CategoryLogic
}

func (n *MergeNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Merge",
		Description: "Joins parallel branches and merges their outputs.",
		Icon:        "merge",
		Properties: []protocol.Property{
			{
				Name:        "strategy",
				Type:        protocol.PropertyString,
				Label:       "Strategy",
				Description: "deep merges nested objects, shallow replaces top level keys",
				Default:     StrategyDeep,
				Enum:        []any{StrategyDeep, StrategyShallow},
			},
			{
				Name:        "nodeIds",
				Type:        protocol.PropertyArray,
				Label:       "Node IDs",
				Description: "Merge the outputs of these nodes instead of the incoming branches",
			},
		},
	}
}

func (n *MergeNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(node.Data, &Config{})
}

func (n *MergeNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any)

	for _, source := range sources(cfg, nodeCtx) {
		if cfg.Strategy == StrategyShallow {
			maps.Copy(merged, source)

			continue
		}

		err = mergo.Merge(&merged, source, mergo.WithOverride)
		if err != nil {
			return nil, flowerrors.Wrap(flowerrors.CodeExecutionFailed, fmt.Errorf("failed to merge outputs: %w", err))
		}
	}

	return protocol.NewResult(merged), nil
}

func sources(cfg Config, nodeCtx *protocol.NodeContext) []map[string]any {
	if len(cfg.NodeIDs) > 0 {
		outputs := make([]map[string]any, 0, len(cfg.NodeIDs))

		for _, id := range cfg.NodeIDs {
			if output, ok := nodeCtx.Nodes[id].(map[string]any); ok {
				outputs = append(outputs, output)
			}
		}

		return outputs
	}

	if branches := completedOutputs(nodeCtx.Previous["completed"]); branches != nil {
		return branches
	}

	if nodeCtx.Previous == nil {
		return nil
	}

	return []map[string]any{nodeCtx.Previous}
}

func completedOutputs(value any) []map[string]any {
	var entries []map[string]any

	switch v := value.(type) {
	case []any:
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	case []map[string]any:
		entries = v
	default:
		return nil
	}

	outputs := make([]map[string]any, 0, len(entries))

	for _, entry := range entries {
		if output, ok := entry["output"].(map[string]any); ok {
			outputs = append(outputs, output)
		}
	}

	return outputs
}
