// Package redis provides the Redis run store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "flowengine:"

// Persistence implements persistence.Persistence on Redis. A run is a JSON
// string; each flow keeps a sorted set of its run ids scored by start time.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

type Option func(*Persistence)

// WithTTL expires stored runs after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(p *Persistence) {
		p.ttl = ttl
	}
}

// NewPersistence connects to a redis:// or rediss:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string, opts ...Option) (*Persistence, error) {
	options, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	p := NewPersistenceWithClient(redis.NewClient(options), logger, opts...)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.HealthCheck(pingCtx)
	if err != nil {
		_ = p.client.Close()

		return nil, err
	}

	p.logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return p, nil
}

func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Persistence {
	p := &Persistence{
		client: client,
		logger: logger.With("module", "redis"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

func (p *Persistence) SaveRun(ctx context.Context, run *models.RunSummary) error {
	err := persistence.ValidateID(run.ID)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to marshal run: %w", err))
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, runKey(run.ID), data, p.ttl)
		pipe.ZAdd(ctx, flowKey(run.FlowID), redis.Z{
			Score:  float64(run.StartTime.UnixMilli()),
			Member: run.ID,
		})

		return nil
	})
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	p.logger.DebugContext(ctx, "Saved run", "execution_id", run.ID, "status", run.Status)

	return nil
}

func (p *Persistence) RunByID(ctx context.Context, id string) (*models.RunSummary, error) {
	err := persistence.ValidateID(id)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	data, err := p.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	return decode(data)
}

// RunsByFlow skips ids whose run has expired and drops them from the index.
func (p *Persistence) RunsByFlow(ctx context.Context, flowID string) ([]*models.RunSummary, error) {
	ids, err := p.client.ZRevRange(ctx, flowKey(flowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of flow %s: %w", flowID, err)
	}

	runs := make([]*models.RunSummary, 0, len(ids))
	if len(ids) == 0 {
		return runs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = runKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load runs of flow %s: %w", flowID, err)
	}

	var expired []any

	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			expired = append(expired, ids[i])

			continue
		}

		run, err := decode([]byte(data))
		if err != nil {
			return nil, err
		}

		if run.FlowID == flowID {
			runs = append(runs, run)
		}
	}

	if len(expired) > 0 {
		err = p.client.ZRem(ctx, flowKey(flowID), expired...).Err()
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to prune expired runs", "flow_id", flowID, "error", err)
		}
	}

	persistence.SortNewestFirst(runs)

	return runs, nil
}

func runKey(id string) string {
	return keyPrefix + "run:" + id
}

func flowKey(flowID string) string {
	return keyPrefix + "flow:" + flowID + ":runs"
}

func decode(data []byte) (*models.RunSummary, error) {
	var run models.RunSummary

	err := json.Unmarshal(data, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}
