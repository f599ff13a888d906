package trigger

import (
	"context"
	"fmt"
	"maps"
	"time"
	_ "time/tzdata"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/robfig/cron/v3"
)

const ScheduleType = "trigger:schedule"

type ScheduleConfig struct {
	Cron     string `json:"cron"               validate:"required"`
	Timezone string `json:"timezone,omitempty"`
}

// ScheduleTriggerNode starts a flow on a cron schedule. The scheduler that
// fires it lives outside the engine; the node reports when it fired and when
// it fires next.
type ScheduleTriggerNode struct {
	now func() time.Time
}

func NewScheduleTriggerNode(now func() time.Time) *ScheduleTriggerNode {
	return &ScheduleTriggerNode{now: now}
}

func (n *ScheduleTriggerNode) Type() string {
	return ScheduleType
}

func (n *ScheduleTriggerNode) Category() string {
	return models.CategoryTrigger
}

func (n *ScheduleTriggerNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        ScheduleType,
		Category:    models.CategoryTrigger,
		Label:       "Schedule Trigger",
		Description: "Starts the flow on a cron schedule.",
		Icon:        "calendar",
		Properties: []protocol.Property{
			{
				Name:        "cron",
				Type:        protocol.PropertyString,
				Label:       "Cron expression",
				Description: "Standard five field expression, e.g. */5 * * * *",
				Required:    true,
				MinLength:   protocol.Int(1),
			},
			{
				Name:        "timezone",
				Type:        protocol.PropertyString,
				Label:       "Timezone",
				Description: "IANA timezone, defaults to UTC",
				Default:     "UTC",
			},
		},
	}
}

func (n *ScheduleTriggerNode) Validate(node *models.Node) []string {
	problems := protocol.ValidateConfig(node.Data, &ScheduleConfig{})
	if len(problems) > 0 {
		return problems
	}

	var cfg ScheduleConfig

	err := protocol.DecodeConfig(node.Data, &cfg)
	if err != nil {
		return nil
	}

	_, _, err = parse(cfg)
	if err != nil {
		return []string{err.Error()}
	}

	return nil
}

func (n *ScheduleTriggerNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg ScheduleConfig

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	schedule, location, err := parse(cfg)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeInvalidConfig, err)
	}

	firedAt := n.now().In(location)

	output := maps.Clone(nodeCtx.Input)
	if output == nil {
		output = make(map[string]any, 4)
	}

	output["cron"] = cfg.Cron
	output["timezone"] = location.String()
	output["firedAt"] = firedAt.Format(time.RFC3339)
	output["nextRun"] = schedule.Next(firedAt).Format(time.RFC3339)

	return protocol.NewResult(output), nil
}

func parse(cfg ScheduleConfig) (cron.Schedule, *time.Location, error) {
	location := time.UTC

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}

		location = loc
	}

	schedule, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}

	return schedule, location, nil
}
