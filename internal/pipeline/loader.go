package pipeline

import (
	"context"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// MultiLoader writes each batch to every loader in order and stops at the
// first failure. Loaders must tolerate a batch being written again after a
// later loader fails.
type MultiLoader []BatchLoader

// LoadBatch implements BatchLoader.
func (m MultiLoader) LoadBatch(ctx context.Context, results []domain.RegionMetrics) error {
	for _, l := range m {
		if err := l.LoadBatch(ctx, results); err != nil {
			return err
		}
	}
	return nil
}
