// Package errorhandler turns node failures into retry, fallback, skip or stop
// actions for the engine to apply.
package errorhandler

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
)

// NodeLookup answers whether a node exists in the running flow.
type NodeLookup interface {
	HasNode(nodeID string) bool
}

// Action is the decision for one failure. The handler never mutates run state;
// the engine applies the action.
type Action struct {
	Type           Strategy
	Delay          time.Duration
	RetryCount     int
	FallbackNodeID string
	FallbackInput  map[string]any
	Output         map[string]any
	Fatal          bool
	Err            error
}

// Handler decides actions from per-node policies. It is stateless per call
// and safe for concurrent use.
type Handler struct {
	defaults Policy
	random   func() float64
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaults sets the policy used for nodes without their own configuration.
func WithDefaults(policy Policy) Option {
	return func(h *Handler) {
		h.defaults = policy
	}
}

// WithRandom replaces the jitter source.
func WithRandom(random func() float64) Option {
	return func(h *Handler) {
		h.random = random
	}
}

// WithLogger sets the logger used to report invalid configurations.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		defaults: DefaultPolicy(),
		random:   rand.Float64,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.logger = h.logger.With("module", "error_handler")

	return h
}

// Policy returns the effective policy of a node.
func (h *Handler) Policy(node *models.Node) Policy {
	cfg, err := ConfigFromNode(node)
	if err != nil {
		h.logger.Warn("Ignoring invalid error handling configuration", "node_id", node.ID, "error", err)

		return h.defaults
	}

	return cfg.Apply(h.defaults)
}

// Handle decides what to do after the attempt numbered retryCount (0 for the
// first attempt) of node failed with err.
func (h *Handler) Handle(err error, node *models.Node, nodes NodeLookup, retryCount int) Action {
	if flowerrors.IsFatal(err) {
		return stop(err)
	}

	policy := h.Policy(node)

	switch policy.Strategy {
	case StrategyRetry:
		if flowerrors.IsRecoverable(err) && retryCount < policy.MaxRetries {
			return Action{
				Type:       StrategyRetry,
				Delay:      ComputeDelay(policy, retryCount, h.random),
				RetryCount: retryCount + 1,
				Err:        err,
			}
		}

		return h.fallback(err, node, nodes, policy)
	case StrategyFallback:
		return h.fallback(err, node, nodes, policy)
	case StrategySkip:
		return Action{
			Type: StrategySkip,
			Output: map[string]any{
				"skipped":   true,
				"reason":    flowerrors.Message(err),
				"errorCode": flowerrors.Code(err),
			},
			Err: err,
		}
	default:
		return stop(err)
	}
}

func (h *Handler) fallback(err error, node *models.Node, nodes NodeLookup, policy Policy) Action {
	target := policy.FallbackNodeID
	if target == "" || target == node.ID || nodes == nil || !nodes.HasNode(target) {
		return stop(err)
	}

	return Action{
		Type:           StrategyFallback,
		FallbackNodeID: target,
		FallbackInput: map[string]any{
			"error": map[string]any{
				"code":     flowerrors.Code(err),
				"message":  flowerrors.Message(err),
				"category": string(flowerrors.Categorize(err)),
			},
			"failedNodeId": node.ID,
		},
		Err: err,
	}
}

func stop(err error) Action {
	return Action{Type: StrategyStop, Fatal: true, Err: err}
}
