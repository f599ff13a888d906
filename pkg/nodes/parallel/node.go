package parallel

import (
	"context"
	"maps"
	"strings"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const Type = "logic:parallel"

type Config struct {
	Mode            string `json:"mode,omitempty"            validate:"omitempty,oneof=ALL ANY RACE SETTLED"`
	TimeoutMs       int64  `json:"timeoutMs,omitempty"       validate:"gte=0"`
	ContinueOnError bool   `json:"continueOnError,omitempty"`
	MaxConcurrency  int    `json:"maxConcurrency,omitempty"  validate:"gte=0"`
	CancelLosers    bool   `json:"cancelLosers,omitempty"`
}

// ParallelNode asks the engine to fork its outgoing edges into branches. The
// join summary becomes the node output once the branches resolve.
type ParallelNode struct{}

func NewParallelNode() *ParallelNode {
	return &ParallelNode{}
}

func (n *ParallelNode) Type() string {
	return Type
}

func (n *ParallelNode) Category() string {
	return models.CategoryLogic
}

func (n *ParallelNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Parallel",
		Description: "Runs every outgoing path concurrently and joins them.",
		Icon:        "columns",
		Properties: []protocol.Property{
			{
				Name:        "mode",
				Type:        protocol.PropertyString,
				Label:       "Mode",
				Description: "ALL waits for every branch, ANY for the first to finish, RACE for the first success, SETTLED for all regardless of outcome",
				Default:     "ALL",
			},
			{
				Name:        "timeoutMs",
				Type:        protocol.PropertyInteger,
				Label:       "Branch timeout (ms)",
				Description: "Per-branch timeout, 0 means bounded by the run only",
				Min:         protocol.Float(0),
			},
			{
				Name:        "continueOnError",
				Type:        protocol.PropertyBoolean,
				Label:       "Continue on error",
				Description: "In ALL mode, keep the successful branches instead of failing the join",
			},
			{
				Name:        "maxConcurrency",
				Type:        protocol.PropertyInteger,
				Label:       "Max concurrency",
				Description: "Branches allowed to run at once, 0 means unlimited",
				Min:         protocol.Float(0),
			},
			{
				Name:        "cancelLosers",
				Type:        protocol.PropertyBoolean,
				Label:       "Cancel losers",
				Description: "In ANY and RACE modes, cancel the branches still running once a winner is known",
			},
		},
	}
}

func (n *ParallelNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(normalize(node.Data), &Config{})
}

func (n *ParallelNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(normalize(nodeCtx.Data), &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == "" {
		cfg.Mode = "ALL"
	}

	result := protocol.NewResult(nil)
	result.Parallel = &protocol.ParallelDirective{
		Mode:            cfg.Mode,
		TimeoutMs:       cfg.TimeoutMs,
		ContinueOnError: cfg.ContinueOnError,
		MaxConcurrency:  cfg.MaxConcurrency,
		CancelLosers:    cfg.CancelLosers,
	}

	return result, nil
}

func normalize(data map[string]any) map[string]any {
	mode, ok := data["mode"].(string)
	if !ok {
		return data
	}

	normalized := maps.Clone(data)
	normalized["mode"] = strings.ToUpper(mode)

	return normalized
}
