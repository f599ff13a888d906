package switchnode

import (
	"context"
	"fmt"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const (
	Type = "logic:switch"

	HandleDefault = "default"
)

// Case maps a value to the handle followed when it matches.
type Case struct {
	Value  any    `json:"value"`
	Handle string `json:"handle" validate:"required"`
}

type Config struct {
	Value any    `json:"value"`
	Cases []Case `json:"cases" validate:"dive"`
}

// SwitchNode routes to the handle of the first case whose value matches, or
// to "default" when none does. Values are compared by their string form.
type SwitchNode struct{}

func NewSwitchNode() *SwitchNode {
	return &SwitchNode{}
}

func (n *SwitchNode) Type() string {
	return Type
}

func (n *SwitchNode) Category() string {
	return models.CategoryLogic
}

func (n *SwitchNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Switch",
		Description: "Routes execution to the path whose case matches the value.",
		Icon:        "split",
		Properties: []protocol.Property{
			{
				Name:        "value",
				Type:        protocol.PropertyAny,
				Label:       "Value",
				Description: "Value to match, e.g. {{.variables.environment}}",
				Required:    true,
			},
			{
				Name:        "cases",
				Type:        protocol.PropertyArray,
				Label:       "Cases",
				Description: "List of {value, handle} pairs checked in order",
			},
		},
		Outputs: []protocol.Output{
			{Handle: HandleDefault, Label: "Default", Description: "Followed when no case matches"},
		},
	}
}

func (n *SwitchNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})

	if _, ok := node.Data["value"]; !ok {
		problems = append(problems, "value is required")
	}

	return problems
}

func (n *SwitchNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	value := fmt.Sprint(cfg.Value)

	for i, c := range cfg.Cases {
		if fmt.Sprint(c.Value) != value {
			continue
		}

		return protocol.NewResult(map[string]any{
			"value":   cfg.Value,
			"matched": true,
			"case":    i,
			"handle":  c.Handle,
		}).Route(c.Handle), nil
	}

	return protocol.NewResult(map[string]any{
		"value":   cfg.Value,
		"matched": false,
		"handle":  HandleDefault,
	}).Route(HandleDefault), nil
}
