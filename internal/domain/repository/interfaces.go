package repository

import (
	"context"
	"errors"

	"MarketBrief/internal/domain/models"
)

// ErrNoData means a remote job finished but its dataset was empty. Fetchers
// still return a valid default value alongside it.
var ErrNoData = errors.New("no data returned")

type JobRunner interface {
	Run(ctx context.Context, jobID string, input map[string]any, memoryMB int) ([]map[string]any, error)
}

type MarketData interface {
	Fetch(ctx context.Context, q models.TickerQuery) (*models.MarketSnapshot, error)
}

type ProfileSource interface {
	Fetch(ctx context.Context, profileURL string, q models.TickerQuery) (*models.ProfileData, error)
}

type StartupSource interface {
	Fetch(ctx context.Context, profileURL string, q models.TickerQuery) (models.StartupProfile, error)
}

type WebSearch interface {
	// Search returns one formatted text block per usable result, in order.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

type LinkResolver interface {
	// Resolve never fails past its boundary: unresolvable fields come back
	// as empty strings with zero usage.
	Resolve(ctx context.Context, ticker string) (*models.CompanyLinks, models.TokenUsage)
}

type ReportWriter interface {
	Write(ctx context.Context, ticker string, bundle *models.AggregatedBundle) (*models.ReportInfo, models.TokenUsage, error)
}

// BlobStore persists raw snapshots and rendered reports. Writes are
// best-effort at every call site: failures are logged, never propagated.
type BlobStore interface {
	Set(ctx context.Context, key string, value any, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type OutputSink interface {
	Push(ctx context.Context, record *models.RunRecord) error
	Close() error
}

// Charger is the usage ledger. Charging is fire-and-forget.
type Charger interface {
	Charge(ctx context.Context, event string, count int)
}

type Metrics interface {
	RecordCharge(event string, count int)
	RecordFetch(source string, seconds float64)
	RecordError(kind string)
	RecordRun(result string)
}
