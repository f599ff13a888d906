package conditional

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const (
	Type = "logic:condition"

	HandleTrue  = "true"
	HandleFalse = "false"
)

// Config is the node configuration. Without an operator the condition is
// evaluated for truthiness; with one it is compared against Value.
type Config struct {
	Condition any    `json:"condition"`
	Operator  string `json:"operator,omitempty" validate:"omitempty,oneof=eq ne gt gte lt lte contains"`
	Value     any    `json:"value,omitempty"`
}

// ConditionalNode routes to the "true" or "false" handle.
type ConditionalNode struct{}

func NewConditionalNode() *ConditionalNode {
	return &ConditionalNode{}
}

func (n *ConditionalNode) Type() string {
	return Type
}

func (n *ConditionalNode) Category() string {
	return models.CategoryLogic
}

func (n *ConditionalNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Condition",
		Description: "Evaluates a condition and routes execution to the true or false path.",
		Icon:        "git-branch",
		Properties: []protocol.Property{
			{
				Name:        "condition",
				Type:        protocol.PropertyAny,
				Label:       "Condition",
				Description: `Value or template to evaluate, e.g. {{eq .variables.status "active"}}`,
				Required:    true,
			},
			{
				Name:        "operator",
				Type:        protocol.PropertyString,
				Label:       "Operator",
				Description: "Compare the condition against value instead of testing truthiness",
				Enum:        []any{"eq", "ne", "gt", "gte", "lt", "lte", "contains"},
			},
			{
				Name:  "value",
				Type:  protocol.PropertyAny,
				Label: "Value",
			},
		},
		Outputs: []protocol.Output{
			{Handle: HandleTrue, Label: "True"},
			{Handle: HandleFalse, Label: "False"},
		},
	}
}

func (n *ConditionalNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})

	if _, ok := node.Data["condition"]; !ok {
		problems = append(problems, "condition is required")
	}

	return problems
}

// Execute evaluates the already rendered condition.
func (n *ConditionalNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	if _, ok := nodeCtx.Data["condition"]; !ok {
		return nil, flowerrors.New(flowerrors.CodeValidationError, "condition is required")
	}

	result, err := evaluate(cfg)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeInvalidInput, err)
	}

	handle := HandleFalse
	if result {
		handle = HandleTrue
	}

	return protocol.NewResult(map[string]any{
		"result": result,
		"value":  cfg.Condition,
	}).Route(handle), nil
}

func evaluate(cfg Config) (bool, error) {
	switch cfg.Operator {
	case "":
		return Truthy(cfg.Condition), nil
	case "eq":
		return fmt.Sprint(cfg.Condition) == fmt.Sprint(cfg.Value), nil
	case "ne":
		return fmt.Sprint(cfg.Condition) != fmt.Sprint(cfg.Value), nil
	case "contains":
		return strings.Contains(fmt.Sprint(cfg.Condition), fmt.Sprint(cfg.Value)), nil
	}

	left, err := number(cfg.Condition)
	if err != nil {
		return false, err
	}

	right, err := number(cfg.Value)
	if err != nil {
		return false, err
	}

	switch cfg.Operator {
	case "gt":
		return left > right, nil
	case "gte":
		return left >= right, nil
	case "lt":
		return left < right, nil
	default:
		return left <= right, nil
	}
}

func number(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("%v is not a number", value)
	}
}

// Truthy converts a rendered value to a boolean.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}
