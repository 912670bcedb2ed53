package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/util"
)

// slot names a pre-reserved position in the aggregated bundle. Exactly one
// fetch task owns each slot, so parallel completion never races on a shared
// field and result assembly is independent of task order.
type slot string

const (
	slotPrimary   slot = "primary"
	slotBenchmark slot = "benchmark"
	slotSector    slot = "sector"
	slotProfile   slot = "profile"
	slotStartup   slot = "startup"
)

type slotResult struct {
	snap    *models.MarketSnapshot
	profile *models.ProfileData
	startup models.StartupProfile
	err     error
}

// Deps are the collaborators of one report run.
type Deps struct {
	Resolver drepo.LinkResolver
	Market   drepo.MarketData
	Profile  drepo.ProfileSource
	Startup  drepo.StartupSource
	Writer   drepo.ReportWriter
	Blobs    drepo.BlobStore
	Sink     drepo.OutputSink
	Charger  drepo.Charger
	Metrics  drepo.Metrics
	Logger   *applogger.Logger
}

// Option configures ReportRun.
type Option func(*ReportRun)

// WithBenchmarkTicker overrides the benchmark comparison index.
func WithBenchmarkTicker(t string) Option {
	return func(r *ReportRun) { r.benchmarkTicker = t }
}

// WithDefaultPastDays overrides the lookback window used when the input
// leaves past_days unset.
func WithDefaultPastDays(d int) Option {
	return func(r *ReportRun) { r.pastDays = d }
}

// WithFetchTimeout bounds each fan-out fetch. On expiry the slot is treated
// exactly like a failed fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *ReportRun) { r.fetchTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *ReportRun) { r.now = now }
}

// ReportRun orchestrates one end-to-end report: resolve links, fan out the
// fetches, apply the fallback policy, generate the report, and push the
// merged record.
type ReportRun struct {
	deps Deps

	benchmarkTicker string
	pastDays        int
	fetchTimeout    time.Duration
	now             func() time.Time
}

// NewReportRun creates the run orchestrator.
func NewReportRun(deps Deps, opts ...Option) *ReportRun {
	r := &ReportRun{
		deps:            deps,
		benchmarkTicker: "^GSPC",
		pastDays:        30,
		fetchTimeout:    5 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one report run. The returned record is nil only when the run
// aborted before producing output.
func (r *ReportRun) Run(ctx context.Context, in models.RunInput) (*models.RunRecord, error) {
	log := r.deps.Logger
	r.deps.Charger.Charge(ctx, "init", 1)

	pastDays := in.PastDays
	if pastDays <= 0 {
		pastDays = r.pastDays
	}
	startDate, endDate := util.LookbackWindow(r.now(), pastDays)
	q := models.TickerQuery{Ticker: in.CompanyTicker, StartDate: startDate, EndDate: endDate}

	log.Info("report run started",
		applogger.String("ticker", q.Ticker),
		applogger.String("start", startDate),
		applogger.String("end", endDate))

	// Usage is charged before the resolved fields are inspected: tokens were
	// spent even if the URLs turn out unusable.
	links, usage := r.deps.Resolver.Resolve(ctx, in.CompanyTicker)
	r.chargeTokens(ctx, usage)

	results := r.fanOut(ctx, q, links)

	primary := results[slotPrimary]
	if primary == nil || primary.err != nil {
		r.deps.Metrics.RecordRun("aborted")
		var err error
		if primary != nil {
			err = primary.err
		}
		log.Error("primary market data unavailable, aborting run",
			applogger.String("ticker", q.Ticker),
			applogger.Error(err))
		return nil, fmt.Errorf("primary market data for %s: %w", q.Ticker, err)
	}

	// Benchmark and sector comparisons are worth one blocking retry each.
	// A retry that still fails keeps the fetcher's zero-filled default.
	benchmark := r.retrySnapshot(ctx, results[slotBenchmark],
		models.TickerQuery{Ticker: r.benchmarkTicker, StartDate: startDate, EndDate: endDate})

	var sector *models.MarketSnapshot
	if links.SectorIndexTicker != "" {
		sector = r.retrySnapshot(ctx, results[slotSector],
			models.TickerQuery{Ticker: links.SectorIndexTicker, StartDate: startDate, EndDate: endDate})
	}

	bundle := &models.AggregatedBundle{
		Primary:   primary.snap,
		Benchmark: benchmark,
		Sector:    sector,
	}
	if res := results[slotProfile]; res != nil && res.err == nil && res.profile != nil && !res.profile.IsZero() {
		bundle.Profile = res.profile
	}
	if res := results[slotStartup]; res != nil && res.err == nil && len(res.startup) > 0 {
		bundle.Startup = res.startup
	}

	info, reportUsage, err := r.deps.Writer.Write(ctx, q.Ticker, bundle)
	r.chargeTokens(ctx, reportUsage)
	if err != nil {
		r.deps.Metrics.RecordRun("report_failed")
		return nil, err
	}
	bundle.Report = info

	reportKey := fmt.Sprintf("market_report_%s_%s_%s.md", q.Ticker, startDate, endDate)
	if err := r.deps.Blobs.Set(ctx, reportKey, info.Report, "text/markdown"); err != nil {
		log.Warn("report store failed",
			applogger.String("key", reportKey),
			applogger.Error(err))
	}

	record := &models.RunRecord{
		MarketSnapshot: *bundle.Primary,
		Report:         info.Report,
		SP500Data:      bundle.Benchmark,
		SectorData:     bundle.Sector,
		ProfileData:    bundle.Profile,
		StartupData:    bundle.Startup,
	}

	if err := r.deps.Sink.Push(ctx, record); err != nil {
		r.deps.Metrics.RecordRun("push_failed")
		log.Error("output push failed",
			applogger.String("ticker", q.Ticker),
			applogger.Error(err))
		return record, fmt.Errorf("push record for %s: %w", q.Ticker, err)
	}

	r.deps.Metrics.RecordRun("ok")
	log.Info("report run finished", applogger.String("ticker", q.Ticker))
	return record, nil
}

// fanOut launches every applicable fetch concurrently and joins on all of
// them. No task's failure cancels siblings; each outcome lands in the slot
// the task alone owns.
func (r *ReportRun) fanOut(ctx context.Context, q models.TickerQuery, links *models.CompanyLinks) map[slot]*slotResult {
	tasks := map[slot]func(context.Context, *slotResult){
		slotPrimary: func(ctx context.Context, res *slotResult) {
			res.snap, res.err = r.deps.Market.Fetch(ctx, q)
		},
		slotBenchmark: func(ctx context.Context, res *slotResult) {
			bq := models.TickerQuery{Ticker: r.benchmarkTicker, StartDate: q.StartDate, EndDate: q.EndDate}
			res.snap, res.err = r.deps.Market.Fetch(ctx, bq)
		},
	}
	if links.SectorIndexTicker != "" {
		tasks[slotSector] = func(ctx context.Context, res *slotResult) {
			sq := models.TickerQuery{Ticker: links.SectorIndexTicker, StartDate: q.StartDate, EndDate: q.EndDate}
			res.snap, res.err = r.deps.Market.Fetch(ctx, sq)
		}
	}
	if links.ProfessionalProfileURL != "" {
		tasks[slotProfile] = func(ctx context.Context, res *slotResult) {
			res.profile, res.err = r.deps.Profile.Fetch(ctx, links.ProfessionalProfileURL, q)
		}
	}
	if links.StartupProfileURL != "" {
		tasks[slotStartup] = func(ctx context.Context, res *slotResult) {
			res.startup, res.err = r.deps.Startup.Fetch(ctx, links.StartupProfileURL, q)
		}
	}

	results := make(map[slot]*slotResult, len(tasks))
	for s := range tasks {
		results[s] = &slotResult{}
	}

	var wg sync.WaitGroup
	for s, task := range tasks {
		wg.Add(1)
		go func(s slot, task func(context.Context, *slotResult)) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
			defer cancel()
			task(fetchCtx, results[s])
		}(s, task)
	}
	wg.Wait()

	return results
}

// retrySnapshot re-fetches a comparison snapshot once, synchronously, when
// its fan-out slot failed. The fetcher's default snapshot stands if the
// retry also fails.
func (r *ReportRun) retrySnapshot(ctx context.Context, res *slotResult, q models.TickerQuery) *models.MarketSnapshot {
	if res != nil && res.err == nil {
		return res.snap
	}
	r.deps.Logger.Warn("comparison fetch failed, retrying once",
		applogger.String("ticker", q.Ticker))

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	snap, err := r.deps.Market.Fetch(fetchCtx, q)
	if err != nil {
		r.deps.Logger.Warn("comparison retry failed, using default",
			applogger.String("ticker", q.Ticker),
			applogger.Error(err))
	}
	return snap
}

func (r *ReportRun) chargeTokens(ctx context.Context, usage models.TokenUsage) {
	count := int((usage.TotalTokens + 999) / 1000)
	r.deps.Charger.Charge(ctx, "1k-llm-tokens", count)
}
