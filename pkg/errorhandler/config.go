package errorhandler

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

// ConfigKey is the node data key holding the error handling configuration.
const ConfigKey = "errorHandling"

// Strategy is the reaction to a node failure.
type Strategy string

const (
	StrategyRetry    Strategy = "RETRY"
	StrategyFallback Strategy = "FALLBACK"
	StrategySkip     Strategy = "SKIP"
	StrategyStop     Strategy = "STOP"
)

// BackoffType selects how retry delays grow.
type BackoffType string

const (
	BackoffConstant    BackoffType = "CONSTANT"
	BackoffLinear      BackoffType = "LINEAR"
	BackoffExponential BackoffType = "EXPONENTIAL"
)

// Config is the error handling configuration as authored on a node. Delays
// are in milliseconds.
type Config struct {
	Strategy       Strategy    `json:"strategy,omitempty"       validate:"omitempty,oneof=RETRY FALLBACK SKIP STOP"`
	MaxRetries     *int        `json:"maxRetries,omitempty"     validate:"omitempty,gte=0,lte=100"`
	Backoff        BackoffType `json:"backoff,omitempty"        validate:"omitempty,oneof=CONSTANT LINEAR EXPONENTIAL"`
	BaseDelay      *int64      `json:"baseDelay,omitempty"      validate:"omitempty,gte=0"`
	MaxDelay       *int64      `json:"maxDelay,omitempty"       validate:"omitempty,gte=0"`
	FallbackNodeID string      `json:"fallbackNodeId,omitempty"`
	Jitter         *bool       `json:"jitter,omitempty"`
}

// Policy is a Config with every default applied.
type Policy struct {
	Strategy       Strategy
	MaxRetries     int
	Backoff        BackoffType
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	FallbackNodeID string
	Jitter         bool
}

// DefaultPolicy stops the run on failure; retry settings apply once a node opts in.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:   StrategyStop,
		MaxRetries: 3,
		Backoff:    BackoffExponential,
		BaseDelay:  1000 * time.Millisecond,
		MaxDelay:   30000 * time.Millisecond,
		Jitter:     true,
	}
}

// Apply overlays the configured values on a base policy.
func (c Config) Apply(base Policy) Policy {
	policy := base

	if c.Strategy != "" {
		policy.Strategy = c.Strategy
	}

	if c.MaxRetries != nil {
		policy.MaxRetries = *c.MaxRetries
	}

	if c.Backoff != "" {
		policy.Backoff = c.Backoff
	}

	if c.BaseDelay != nil {
		policy.BaseDelay = time.Duration(*c.BaseDelay) * time.Millisecond
	}

	if c.MaxDelay != nil {
		policy.MaxDelay = time.Duration(*c.MaxDelay) * time.Millisecond
	}

	if c.FallbackNodeID != "" {
		policy.FallbackNodeID = c.FallbackNodeID
	}

	if c.Jitter != nil {
		policy.Jitter = *c.Jitter
	}

	return policy
}

// ConfigFromNode reads the error handling configuration of a node. Strategy
// and backoff names are case-insensitive.
func ConfigFromNode(node *models.Node) (Config, error) {
	var cfg Config

	if node == nil || node.Data == nil {
		return cfg, nil
	}

	raw, ok := node.Data[ConfigKey]
	if !ok || raw == nil {
		return cfg, nil
	}

	data, ok := raw.(map[string]any)
	if !ok {
		return cfg, fmt.Errorf("%s must be an object", ConfigKey)
	}

	normalized := make(map[string]any, len(data))

	for key, value := range data {
		if s, isString := value.(string); isString && (key == "strategy" || key == "backoff") {
			value = strings.ToUpper(s)
		}

		normalized[key] = value
	}

	err := protocol.DecodeConfig(normalized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", ConfigKey, err)
	}

	return cfg, nil
}

// Validate returns the problems with a node's error handling configuration.
func Validate(node *models.Node, flow *models.Flow) []string {
	cfg, err := ConfigFromNode(node)
	if err != nil {
		return []string{err.Error()}
	}

	if cfg.FallbackNodeID == "" {
		if cfg.Strategy == StrategyFallback {
			return []string{"errorHandling.fallbackNodeId is required for the FALLBACK strategy"}
		}

		return nil
	}

	if cfg.FallbackNodeID == node.ID {
		return []string{"errorHandling.fallbackNodeId cannot reference the node itself"}
	}

	if flow != nil && flow.NodeByID(cfg.FallbackNodeID) == nil {
		return []string{fmt.Sprintf("errorHandling.fallbackNodeId references unknown node %q", cfg.FallbackNodeID)}
	}

	return nil
}
