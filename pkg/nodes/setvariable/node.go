package setvariable

import (
	"context"
	"maps"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const Type = "data:setVariable"

// Config sets either a single Name/Value pair, a Variables map, or both.
type Config struct {
	Name      string         `json:"name,omitempty"`
	Value     any            `json:"value,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// SetVariableNode returns variables for the engine to apply to the run once
// the node succeeds. Inside a parallel branch they stay local to the branch
// until the join merges it.
type SetVariableNode struct{}

func NewSetVariableNode() *SetVariableNode {
	return &SetVariableNode{}
}

func (n *SetVariableNode) Type() string {
	return Type
}

func (n *SetVariableNode) Category() string {
	return models.CategoryData
}

func (n *SetVariableNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryData,
		Label:       "Set Variable",
		Description: "Stores values in the run variables.",
		Icon:        "variable",
		Properties: []protocol.Property{
			{
				Name:  "name",
				Type:  protocol.PropertyString,
				Label: "Name",
			},
			{
				Name:        "value",
				Type:        protocol.PropertyAny,
				Label:       "Value",
				Description: "Value stored under name, e.g. {{.previous.body.token}}",
			},
			{
				Name:        "variables",
				Type:        protocol.PropertyObject,
				Label:       "Variables",
				Description: "Several variables at once",
			},
		},
	}
}

func (n *SetVariableNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})

	_, hasName := node.Data["name"]
	_, hasVariables := node.Data["variables"]

	if !hasName && !hasVariables {
		problems = append(problems, "name or variables is required")
	}

	if _, hasValue := node.Data["value"]; hasName && !hasValue {
		problems = append(problems, "value is required when name is set")
	}

	return problems
}

func (n *SetVariableNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	variables := make(map[string]any, len(cfg.Variables)+1)
	maps.Copy(variables, cfg.Variables)

	if cfg.Name != "" {
		variables[cfg.Name] = cfg.Value
	}

	output := maps.Clone(variables)

	result := protocol.NewResult(output)
	result.Variables = variables

	return result, nil
}
