package trigger

import (
	"context"
	"maps"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const ManualType = "trigger:manual"

type ManualConfig struct {
	Defaults map[string]any `json:"defaults,omitempty"`
}

// ManualTriggerNode starts a flow on demand. Its output is the run input with
// the configured defaults filled in for missing keys.
type ManualTriggerNode struct{}

func NewManualTriggerNode() *ManualTriggerNode {
	return &ManualTriggerNode{}
}

func (n *ManualTriggerNode) Type() string {
	return ManualType
}

func (n *ManualTriggerNode) Category() string {
	return models.CategoryTrigger
}

func (n *ManualTriggerNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        ManualType,
		Category:    models.CategoryTrigger,
		Label:       "Manual Trigger",
		Description: "Starts the flow on demand with the given input.",
		Icon:        "play",
		Properties: []protocol.Property{
			{
				Name:        "defaults",
				Type:        protocol.PropertyObject,
				Label:       "Defaults",
				Description: "Input values used when the caller does not provide them",
			},
		},
	}
}

func (n *ManualTriggerNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(node.Data, &ManualConfig{})
}

func (n *ManualTriggerNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg ManualConfig

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	output := make(map[string]any, len(cfg.Defaults)+len(nodeCtx.Input))
	maps.Copy(output, cfg.Defaults)
	maps.Copy(output, nodeCtx.Input)

	return protocol.NewResult(output), nil
}
