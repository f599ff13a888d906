package trigger

import (
	"context"
	"maps"
	"strings"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

const WebhookType = "trigger:webhook"

type WebhookConfig struct {
	Path   string `json:"path"             validate:"required,startswith=/"`
	Method string `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
}

// WebhookTriggerNode starts a flow from an inbound HTTP call. The caller
// passes the request as run input: "body", "headers", "query" and optionally
// "method", which must match the configured one.
type WebhookTriggerNode struct{}

func NewWebhookTriggerNode() *WebhookTriggerNode {
	return &WebhookTriggerNode{}
}

func (n *WebhookTriggerNode) Type() string {
	return WebhookType
}

func (n *WebhookTriggerNode) Category() string {
	return models.CategoryTrigger
}

func (n *WebhookTriggerNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        WebhookType,
		Category:    models.CategoryTrigger,
		Label:       "Webhook Trigger",
		Description: "Starts the flow when an HTTP request arrives on the path.",
		Icon:        "webhook",
		Properties: []protocol.Property{
			{
				Name:        "path",
				Type:        protocol.PropertyString,
				Label:       "Path",
				Description: "Path the webhook listens on, e.g. /orders",
				Required:    true,
				MinLength:   protocol.Int(1),
			},
			{
				Name:        "method",
				Type:        protocol.PropertyString,
				Label:       "Method",
				Description: "GET, POST, PUT, PATCH or DELETE, case insensitive",
				Default:     "POST",
			},
		},
	}
}

func (n *WebhookTriggerNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(upperMethod(node.Data), &WebhookConfig{})
}

func (n *WebhookTriggerNode) Execute(_ context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg WebhookConfig

	err := protocol.DecodeConfig(upperMethod(nodeCtx.Data), &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Method == "" {
		cfg.Method = "POST"
	}

	if method, ok := nodeCtx.Input["method"].(string); ok && !strings.EqualFold(method, cfg.Method) {
		return nil, flowerrors.New(flowerrors.CodeInvalidInput, "webhook "+cfg.Path+" expects "+cfg.Method+", got "+strings.ToUpper(method))
	}

	body, ok := nodeCtx.Input["body"]
	if !ok {
		body = nodeCtx.Input
	}

	return protocol.NewResult(map[string]any{
		"path":    cfg.Path,
		"method":  cfg.Method,
		"body":    body,
		"headers": orEmpty(nodeCtx.Input["headers"]),
		"query":   orEmpty(nodeCtx.Input["query"]),
	}), nil
}

func upperMethod(data map[string]any) map[string]any {
	method, ok := data["method"].(string)
	if !ok {
		return data
	}

	normalized := maps.Clone(data)
	normalized["method"] = strings.ToUpper(method)

	return normalized
}

func orEmpty(value any) any {
	if value == nil {
		return map[string]any{}
	}

	return value
}
