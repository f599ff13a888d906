// Package postgresql provides the PostgreSQL run store.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/sqlbase"
	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
)

// Persistence implements persistence.Persistence on PostgreSQL. The summary
// is stored as JSONB next to the columns used for lookups.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to databaseURL and runs the migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) SaveRun(ctx context.Context, run *models.RunSummary) error {
	if run.ID == "" {
		return persistence.NewRunError("SaveRun", run.ID, persistence.ErrInvalidRunID)
	}

	summary, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to marshal run: %w", err))
	}

	var errorCode sql.NullString
	if run.Error != nil {
		errorCode = sql.NullString{String: run.Error.Code, Valid: true}
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO flow_runs (id, flow_id, status, trigger, summary, error_code, started_at, ended_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id,
			status = EXCLUDED.status,
			trigger = EXCLUDED.trigger,
			summary = EXCLUDED.summary,
			error_code = EXCLUDED.error_code,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms
	`, run.ID, run.FlowID, string(run.Status), run.Trigger, string(summary), errorCode, run.StartTime, run.EndTime, run.DurationMs)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	p.logger.DebugContext(ctx, "Saved run", "execution_id", run.ID, "status", run.Status)

	return nil
}

func (p *Persistence) RunByID(ctx context.Context, id string) (*models.RunSummary, error) {
	var summary []byte

	err := p.db.QueryRowContext(ctx, "SELECT summary FROM flow_runs WHERE id = $1", id).Scan(&summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	return decode(summary)
}

func (p *Persistence) RunsByFlow(ctx context.Context, flowID string) ([]*models.RunSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT summary FROM flow_runs WHERE flow_id = $1 ORDER BY started_at DESC, id ASC", flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs of flow %s: %w", flowID, err)
	}
	defer rows.Close()

	runs := make([]*models.RunSummary, 0)

	for rows.Next() {
		var summary []byte

		err = rows.Scan(&summary)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run, err := decode(summary)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func decode(summary []byte) (*models.RunSummary, error) {
	var run models.RunSummary

	err := json.Unmarshal(summary, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}
