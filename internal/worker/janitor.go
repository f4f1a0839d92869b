package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/biportal/internal/observability/metrics"
	"github.com/yourorg/biportal/internal/service"
	"github.com/yourorg/biportal/pkg/cache"
)

// Janitor periodically evicts expired cache entries and refreshes the
// dataset file gauge so stale workbooks never linger in memory.
type Janitor struct {
	rowCache       *cache.Cache
	datasetService *service.DatasetService
	logger         *slog.Logger
	interval       time.Duration
}

// NewJanitor creates a new janitor worker.
func NewJanitor(rowCache *cache.Cache, datasetService *service.DatasetService, logger *slog.Logger, interval time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Janitor{
		rowCache:       rowCache,
		datasetService: datasetService,
		logger:         logger,
		interval:       interval,
	}
}

// Start begins the janitor loop. It runs until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", slog.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	if j.rowCache != nil {
		if purged := j.rowCache.PurgeExpired(); purged > 0 {
			j.logger.Debug("purged expired cache entries", slog.Int("count", purged))
		}
	}

	if j.datasetService != nil {
		count, err := j.datasetService.CountFiles()
		if err != nil {
			j.logger.Warn("failed to count dataset files", slog.String("error", err.Error()))
			return
		}
		metrics.SetDatasetFiles(count)
	}
}
