package persistence

import (
	"slices"
	"strings"

	"github.com/dukex/flowengine/pkg/models"
)

// SortNewestFirst orders runs by start time, newest first, then by id.
func SortNewestFirst(runs []*models.RunSummary) {
	slices.SortFunc(runs, func(a, b *models.RunSummary) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}
