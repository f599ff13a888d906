package transform

import (
	"context"
	"fmt"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const Type = "data:transform"

// Config shapes the node output. Mapping values are copied as rendered.
// Path and Paths are gjson paths queried against Source, which defaults to
// the previous node output.
type Config struct {
	Mapping map[string]any    `json:"mapping,omitempty"`
	Source  any               `json:"source,omitempty"`
	Path    string            `json:"path,omitempty"`
	Paths   map[string]string `json:"paths,omitempty"`
}

// TransformNode builds a new object from templates and JSON path lookups.
type TransformNode struct{}

func NewTransformNode() *TransformNode {
	return &TransformNode{}
}

func (n *TransformNode) Type() string {
	return Type
}

func (n *TransformNode) Category() string {
	return models.CategoryData
}

func (n *TransformNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryData,
		Label:       "Transform",
		Description: "Builds a new object from templated values and JSON path lookups.",
		Icon:        "shuffle",
		Properties: []protocol.Property{
			{
				Name:        "mapping",
				Type:        protocol.PropertyObject,
				Label:       "Mapping",
				Description: "Output keys and their (templated) values",
			},
			{
				Name:        "source",
				Type:        protocol.PropertyAny,
				Label:       "Source",
				Description: "Document queried by path and paths, defaults to the previous output",
			},
			{
				Name:        "path",
				Type:        protocol.PropertyString,
				Label:       "Path",
				Description: "gjson path whose result is written to value, e.g. items.#.id",
			},
			{
				Name:        "paths",
				Type:        protocol.PropertyObject,
				Label:       "Paths",
				Description: "Output keys and the gjson paths they are read from",
			},
		},
	}
}

func (n *TransformNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})

	_, hasMapping := node.Data["mapping"]
	_, hasPath := node.Data["path"]
	_, hasPaths := node.Data["paths"]

	if !hasMapping && !hasPath && !hasPaths {
		problems = append(problems, "one of mapping, path or paths is required")
	}

	return problems
}

func (n *TransformNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	output := make(map[string]any, len(cfg.Mapping)+len(cfg.Paths)+1)
	for key, value := range cfg.Mapping {
		output[key] = value
	}

	if cfg.Path == "" && len(cfg.Paths) == 0 {
		return protocol.NewResult(output), nil
	}

	source := cfg.Source
	if source == nil {
		source = nodeCtx.Previous
	}

	document, err := json.Marshal(source)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeInvalidInput, fmt.Errorf("failed to encode source: %w", err))
	}

	if cfg.Path != "" {
		output["value"] = lookup(document, cfg.Path)
	}

	for key, path := range cfg.Paths {
		output[key] = lookup(document, path)
	}

	return protocol.NewResult(output), nil
}

func lookup(document []byte, path string) any {
	result := gjson.GetBytes(document, path)
	if !result.Exists() {
		return nil
	}

	return result.Value()
}
