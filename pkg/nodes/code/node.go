package code

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/goccy/go-json"
)

const Type = "logic:code"

type Config struct {
	Script string `json:"script" validate:"required"`
}

// CodeNode runs a JavaScript function body in a fresh goja runtime. The body
// sees input, variables, nodes and previous as globals and its return value
// becomes the node output: objects are used as is, anything else is wrapped
// as {"result": value}.
type CodeNode struct{}

func NewCodeNode() *CodeNode {
	return &CodeNode{}
}

func (n *CodeNode) Type() string {
	return Type
}

func (n *CodeNode) Category() string {
	return models.CategoryLogic
}

func (n *CodeNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Code",
		Description: "Runs a JavaScript function body and returns its result.",
		Icon:        "code",
		Properties: []protocol.Property{
			{
				Name:        "script",
				Type:        protocol.PropertyString,
				Label:       "Script",
				Description: "Function body, e.g. return { total: input.a + input.b }",
				Required:    true,
				MinLength:   protocol.Int(1),
			},
		},
	}
}

func (n *CodeNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})
	if len(problems) > 0 {
		return problems
	}

	script, _ := node.Data["script"].(string)

	_, err := goja.Compile(node.ID, wrap(script), false)
	if err != nil {
		return []string{fmt.Sprintf("script does not compile: %v", err)}
	}

	return nil
}

func (n *CodeNode) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	err = bind(vm, nodeCtx)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeInternalError, err)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(context.Cause(ctx))
	})
	defer stop()

	value, err := vm.RunString(wrap(cfg.Script))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var exception *goja.Exception
		if errors.As(err, &exception) {
			result := protocol.NewErrorResult(flowerrors.CodeExecutionFailed, exception.Error())
			recoverable := false
			result.Error.Recoverable = &recoverable

			return result, nil
		}

		return nil, flowerrors.Wrap(flowerrors.CodeInvalidConfig, err)
	}

	output, err := export(value)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeExecutionFailed, err)
	}

	return protocol.NewResult(output), nil
}

func wrap(script string) string {
	return "(function() {\n" + script + "\n})()"
}

func bind(vm *goja.Runtime, nodeCtx *protocol.NodeContext) error {
	globals := map[string]any{
		"input":     orEmpty(nodeCtx.Input),
		"variables": orEmpty(nodeCtx.Variables),
		"nodes":     orEmpty(nodeCtx.Nodes),
		"previous":  orEmpty(nodeCtx.Previous),
	}

	for name, value := range globals {
		err := vm.Set(name, value)
		if err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	logger := nodeCtx.Logger
	if logger == nil {
		logger = slog.Default()
	}

	console := vm.NewObject()

	err := console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}

		logger.Info(strings.Join(parts, " "), "source", "script")

		return goja.Undefined()
	})
	if err != nil {
		return fmt.Errorf("failed to bind console: %w", err)
	}

	return vm.Set("console", console)
}

// export converts the script result to JSON-shaped data so numbers come out
// as float64 regardless of how the runtime stored them.
func export(value goja.Value) (map[string]any, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(value.Export())
	if err != nil {
		return nil, fmt.Errorf("script returned a value that cannot be encoded: %w", err)
	}

	var decoded any

	err = json.Unmarshal(raw, &decoded)
	if err != nil {
		return nil, fmt.Errorf("script returned a value that cannot be decoded: %w", err)
	}

	if output, ok := decoded.(map[string]any); ok {
		return output, nil
	}

	return map[string]any{"result": decoded}, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
