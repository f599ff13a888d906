// Package file provides the file system run store. Each run is one JSON file
// under <root>/runs.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/goccy/go-json"
)

const runsDir = "runs"

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", fp.root, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", fp.root)
	}

	return nil
}

func (fp *Persistence) SaveRun(_ context.Context, run *models.RunSummary) error {
	err := persistence.ValidateID(run.ID)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to marshal run: %w", err))
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	dir := filepath.Join(fp.root, runsDir)

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to create runs directory: %w", err))
	}

	// Write then rename so readers never see a partial file.
	tmp := filepath.Join(dir, run.ID+".json.tmp")

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to write run: %w", err))
	}

	err = os.Rename(tmp, fp.path(run.ID))
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to move run into place: %w", err))
	}

	return nil
}

func (fp *Persistence) RunByID(_ context.Context, id string) (*models.RunSummary, error) {
	err := persistence.ValidateID(id)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	run, err := fp.read(fp.path(id))
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	return run, nil
}

func (fp *Persistence) RunsByFlow(_ context.Context, flowID string) ([]*models.RunSummary, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(fp.root, runsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.RunSummary{}, nil
		}

		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*models.RunSummary, 0)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		run, err := fp.read(filepath.Join(fp.root, runsDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if run.FlowID == flowID {
			runs = append(runs, run)
		}
	}

	persistence.SortNewestFirst(runs)

	return runs, nil
}

func (fp *Persistence) path(id string) string {
	return filepath.Join(fp.root, runsDir, id+".json")
}

func (fp *Persistence) read(path string) (*models.RunSummary, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- ids are validated before the path is built
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var run models.RunSummary

	err = json.Unmarshal(data, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &run, nil
}
