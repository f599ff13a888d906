package httprequest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/goccy/go-json"
)

const (
	Type = "http:request"

	defaultTimeout = 30 * time.Second
	maxBodySize    = 10 << 20
)

type Config struct {
	URL       string            `json:"url"                 validate:"required,url"`
	Method    string            `json:"method,omitempty"    validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      any               `json:"body,omitempty"`
	TimeoutMs int64             `json:"timeoutMs,omitempty" validate:"gte=0,lte=300000"`
}

// HTTPRequestNode calls an HTTP endpoint. Non-2xx responses fail the node
// with a code derived from the status, so retry policies can tell transient
// failures (429, 5xx) from permanent ones.
type HTTPRequestNode struct {
	client *http.Client
}

func NewHTTPRequestNode(client *http.Client) *HTTPRequestNode {
	return &HTTPRequestNode{client: client}
}

func (n *HTTPRequestNode) Type() string {
	return Type
}

func (n *HTTPRequestNode) Category() string {
	return models.CategoryHTTP
}

func (n *HTTPRequestNode) Metadata() protocol.Metadata {
	return protocol.Metadata{
		Type:        Type,
		Category:    models.CategoryHTTP,
		Label:       "HTTP Request",
		Description: "Sends an HTTP request and returns the response.",
		Icon:        "globe",
		Properties: []protocol.Property{
			{
				Name:        "url",
				Type:        protocol.PropertyString,
				Label:       "URL",
				Description: "Request URL, e.g. https://api.example.com/users/{{.input.id}}",
				Required:    true,
				MinLength:   protocol.Int(1),
			},
			{
				Name:        "method",
				Type:        protocol.PropertyString,
				Label:       "Method",
				Description: "GET, POST, PUT, PATCH, DELETE, HEAD or OPTIONS, case insensitive",
				Default:     http.MethodGet,
			},
			{
				Name:  "headers",
				Type:  protocol.PropertyObject,
				Label: "Headers",
			},
			{
				Name:        "body",
				Type:        protocol.PropertyAny,
				Label:       "Body",
				Description: "Strings are sent as is, anything else is encoded as JSON",
			},
			{
				Name:    "timeoutMs",
				Type:    protocol.PropertyInteger,
				Label:   "Timeout (ms)",
				Default: defaultTimeout.Milliseconds(),
				Min:     protocol.Float(0),
				Max:     protocol.Float(300000),
			},
		},
	}
}

func (n *HTTPRequestNode) Validate(node *models.Node) []string {
	return protocol.ValidateConfig(normalize(node.Data), &Config{})
}

// normalize upper-cases the method so "post" and "POST" are equivalent.
func normalize(data map[string]any) map[string]any {
	method, ok := data["method"].(string)
	if !ok {
		return data
	}

	normalized := maps.Clone(data)
	normalized["method"] = strings.ToUpper(method)

	return normalized
}

func (n *HTTPRequestNode) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	var cfg Config

	err := protocol.DecodeConfig(normalize(nodeCtx.Data), &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	timeout := defaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := encodeBody(cfg.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, cfg.Method, cfg.URL, body)
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeInvalidConfig, fmt.Errorf("failed to build request: %w", err))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, flowerrors.Wrap(flowerrors.CodeTimeout, fmt.Errorf("request to %s timed out after %s", cfg.URL, timeout))
		}

		return nil, flowerrors.Wrap(flowerrors.CodeNetworkError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, flowerrors.Wrap(flowerrors.CodeConnectionReset, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, flowerrors.New(statusCode(resp.StatusCode),
			fmt.Sprintf("%s %s returned %d: %s", cfg.Method, cfg.URL, resp.StatusCode, truncate(string(raw), 200)))
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return protocol.NewResult(map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    decodeBody(raw),
	}), nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", flowerrors.Wrap(flowerrors.CodeInvalidInput, fmt.Errorf("failed to encode body: %w", err))
		}

		return bytes.NewReader(raw), "application/json", nil
	}
}

func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	var decoded any

	err := json.Unmarshal(raw, &decoded)
	if err != nil {
		return string(raw)
	}

	return decoded
}

func statusCode(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return flowerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return flowerrors.CodeForbidden
	case status == http.StatusNotFound:
		return flowerrors.CodeNotFound
	case status == http.StatusTooManyRequests:
		return flowerrors.CodeRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return flowerrors.CodeTimeout
	case status >= 500:
		return flowerrors.CodeServiceUnavailable
	default:
		return flowerrors.CodeInvalidInput
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
