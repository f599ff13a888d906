package delay

import (
	"context"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const (
	Type = "logic:delay"

	maxDurationMs = 3600000
)

type Config struct {
	Duration int64 `json:"duration" validate:"gte=0,lte=3600000"`
}

// DelayNode waits for Duration milliseconds or until the run is aborted.
type DelayNode struct{}

func NewDelayNode() *DelayNode {
	return &DelayNode{}
}

func (n *DelayNode) Type() string {
	return Type
}

func (n *DelayNode) Category() string {
	return models.CategoryLogic
}

func (n *DelayNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryLogic,
		Label:       "Delay",
		Description: "Pauses this path for a number of milliseconds.",
		Icon:        "clock",
		Properties: []protocol.Property{
			{
				Name:     "duration",
				Type:     protocol.PropertyInteger,
				Label:    "Duration (ms)",
				Required: true,
				Min:      protocol.Float(0),
				Max:      protocol.Float(maxDurationMs),
			},
		},
	}
}

func (n *DelayNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &Config{})

	if _, ok := node.Data["duration"]; !ok {
		problems = append(problems, "duration is required")
	}

	return problems
}

func (n *DelayNode) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	timer := time.NewTimer(time.Duration(cfg.Duration) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return protocol.NewResult(map[string]any{
		"duration": cfg.Duration,
		"waitedMs": time.Since(started).Milliseconds(),
	}), nil
}
