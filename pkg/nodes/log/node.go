package log

import (
	"context"
	"log/slog"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const Type = "utility:log"

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Config struct {
	Message string         `json:"message" validate:"required"`
	Level   string         `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// LogNode writes a rendered message to the run logger and passes it on.
type LogNode struct{}

func NewLogNode() *LogNode {
	return &LogNode{}
}

func (n *LogNode) Type() string {
	return Type
}

func (n *LogNode) Category() string {
	return models.CategoryUtility
}

func (n *LogNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryUtility,
		Label:       "Log",
		Description: "Writes a message to the execution log.",
		Icon:        "file-text",
		Properties: []protocol.Property{
			{
				Name:        "message",
				Type:        protocol.PropertyString,
				Label:       "Message",
				Description: "Message to log, e.g. Processing {{.input.user}}",
				Required:    true,
				MinLength:   protocol.Int(1),
			},
			{
				Name:    "level",
				Type:    protocol.PropertyString,
				Label:   "Level",
				Default: LevelInfo,
				Enum:    []any{LevelDebug, LevelInfo, LevelWarn, LevelError},
			},
			{
				Name:        "fields",
				Type:        protocol.PropertyObject,
				Label:       "Fields",
				Description: "Extra structured attributes",
			},
		},
	}
}

func (n *LogNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(node.Data, &Config{})
}

func (n *LogNode) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(nodeCtx.Data, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Level == "" {
		cfg.Level = LevelInfo
	}

	logger := nodeCtx.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := make([]any, 0, len(cfg.Fields)*2)
	for key, value := range cfg.Fields {
		attrs = append(attrs, key, value)
	}

	logger.Log(ctx, level(cfg.Level), cfg.Message, attrs...)

	return protocol.NewResult(map[string]any{
		"message": cfg.Message,
		"level":   cfg.Level,
		"logged":  true,
	}), nil
}

func level(name string) slog.Level {
	switch name {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
