package fetcher

import (
	"context"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

const (
	startupActorID = "harvest/crunchbase-company-details-scraper"
	startupMemMB   = 256
)

// StartupFetcher implements StartupSource. The remote record is passed
// through opaquely as a one-element sequence, or empty on any failure.
type StartupFetcher struct {
	runner  drepo.JobRunner
	blobs   drepo.BlobStore
	charger drepo.Charger
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewStartup creates a startup-database fetcher.
func NewStartup(runner drepo.JobRunner, blobs drepo.BlobStore, charger drepo.Charger, metrics drepo.Metrics, lgr *applogger.Logger) drepo.StartupSource {
	return &StartupFetcher{
		runner:  runner,
		blobs:   blobs,
		charger: charger,
		metrics: metrics,
		logger:  lgr,
	}
}

func (f *StartupFetcher) Fetch(ctx context.Context, profileURL string, q models.TickerQuery) (models.StartupProfile, error) {
	start := time.Now()
	defer func() {
		f.metrics.RecordFetch("startup", time.Since(start).Seconds())
	}()

	f.logger.Info("fetching startup profile", applogger.String("url", profileURL))

	items, err := f.runner.Run(ctx, startupActorID, map[string]any{
		"crunchbaseUrl": profileURL,
	}, startupMemMB)
	if err != nil {
		f.metrics.RecordError("startup_fetch")
		f.logger.Error("startup profile fetch failed",
			applogger.String("url", profileURL),
			applogger.Error(err))
		return models.StartupProfile{}, nil
	}
	if len(items) == 0 {
		f.logger.Warn("startup profile empty", applogger.String("url", profileURL))
		f.charger.Charge(ctx, "tool_result", 0)
		return models.StartupProfile{}, nil
	}

	// Always a single record; wrap it so the output shape stays a sequence.
	result := models.StartupProfile{items[0]}

	key := fmt.Sprintf("startup_%s_%s_%s", q.Ticker, q.StartDate, q.EndDate)
	if err := f.blobs.Set(ctx, key, result, "application/json"); err != nil {
		f.logger.Warn("startup store failed",
			applogger.String("key", key),
			applogger.Error(err))
	}

	f.logger.Info("startup profile fetched", applogger.String("url", profileURL))
	f.charger.Charge(ctx, "tool_result", 1)
	return result, nil
}
