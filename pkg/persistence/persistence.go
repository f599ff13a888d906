// Package persistence stores the summaries of finished flow runs.
package persistence

import (
	"context"

	"github.com/dukex/flowengine/pkg/models"
)

// Persistence is the run summary store. SaveRun overwrites an existing run
// with the same id. RunsByFlow returns the newest run first.
type Persistence interface {
	SaveRun(ctx context.Context, run *models.RunSummary) error
	RunByID(ctx context.Context, id string) (*models.RunSummary, error)
	RunsByFlow(ctx context.Context, flowID string) ([]*models.RunSummary, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
