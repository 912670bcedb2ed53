package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketBrief/internal/domain/models"
	applogger "MarketBrief/pkg/logger"
)

type fakeResolver struct {
	links models.CompanyLinks
	usage models.TokenUsage
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) (*models.CompanyLinks, models.TokenUsage) {
	links := r.links
	return &links, r.usage
}

type marketCall struct {
	snap *models.MarketSnapshot
	err  error
}

type fakeMarket struct {
	mu    sync.Mutex
	plan  map[string][]marketCall
	calls map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{plan: make(map[string][]marketCall), calls: make(map[string]int)}
}

func (m *fakeMarket) on(ticker string, snap *models.MarketSnapshot, err error) {
	m.plan[ticker] = append(m.plan[ticker], marketCall{snap, err})
}

func (m *fakeMarket) Fetch(_ context.Context, q models.TickerQuery) (*models.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[q.Ticker]
	m.calls[q.Ticker] = n + 1

	seq := m.plan[q.Ticker]
	if len(seq) == 0 {
		return models.NewDefaultSnapshot(q), nil
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	c := seq[n]
	if c.snap == nil {
		return models.NewDefaultSnapshot(q), c.err
	}
	return c.snap, c.err
}

func (m *fakeMarket) count(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

type fakeProfile struct {
	profile *models.ProfileData
	calls   int
}

func (p *fakeProfile) Fetch(_ context.Context, _ string, _ models.TickerQuery) (*models.ProfileData, error) {
	p.calls++
	if p.profile == nil {
		return &models.ProfileData{}, nil
	}
	return p.profile, nil
}

type fakeStartup struct {
	data  models.StartupProfile
	calls int
}

func (s *fakeStartup) Fetch(_ context.Context, _ string, _ models.TickerQuery) (models.StartupProfile, error) {
	s.calls++
	return s.data, nil
}

type fakeWriter struct {
	info  models.ReportInfo
	usage models.TokenUsage
	err   error
	calls int
	last  *models.AggregatedBundle
}

func (w *fakeWriter) Write(_ context.Context, _ string, bundle *models.AggregatedBundle) (*models.ReportInfo, models.TokenUsage, error) {
	w.calls++
	w.last = bundle
	if w.err != nil {
		return nil, w.usage, w.err
	}
	info := w.info
	return &info, w.usage, nil
}

type blobWrite struct {
	value       any
	contentType string
}

type fakeBlob struct {
	mu   sync.Mutex
	sets map[string]blobWrite
	err  error
}

func newFakeBlob() *fakeBlob { return &fakeBlob{sets: make(map[string]blobWrite)} }

func (b *fakeBlob) Set(_ context.Context, key string, value any, contentType string) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets[key] = blobWrite{value, contentType}
	return nil
}

func (b *fakeBlob) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("not found")
}

type fakeSink struct {
	records []*models.RunRecord
	err     error
}

func (s *fakeSink) Push(_ context.Context, record *models.RunRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type chargeEvent struct {
	event string
	count int
}

type fakeCharger struct {
	mu     sync.Mutex
	events []chargeEvent
}

func (c *fakeCharger) Charge(_ context.Context, event string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, chargeEvent{event, count})
}

func (c *fakeCharger) find(event string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var counts []int
	for _, e := range c.events {
		if e.event == event {
			counts = append(counts, e.count)
		}
	}
	return counts
}

type fakeMetrics struct{}

func (fakeMetrics) RecordCharge(string, int)    {}
func (fakeMetrics) RecordFetch(string, float64) {}
func (fakeMetrics) RecordError(string)          {}
func (fakeMetrics) RecordRun(string)            {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func snapFor(ticker string) *models.MarketSnapshot {
	s := models.NewDefaultSnapshot(models.TickerQuery{Ticker: ticker, StartDate: "2024-01-01", EndDate: "2024-01-31"})
	s.Quote.RegularMarketPrice = 42
	return s
}

type fixture struct {
	resolver *fakeResolver
	market   *fakeMarket
	profile  *fakeProfile
	startup  *fakeStartup
	writer   *fakeWriter
	blob     *fakeBlob
	sink     *fakeSink
	charger  *fakeCharger
	run      *ReportRun
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	f := &fixture{
		resolver: &fakeResolver{},
		market:   newFakeMarket(),
		profile:  &fakeProfile{},
		startup:  &fakeStartup{},
		writer:   &fakeWriter{info: models.ReportInfo{Report: "# Report"}},
		blob:     newFakeBlob(),
		sink:     &fakeSink{},
		charger:  &fakeCharger{},
	}
	clock := func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) }
	allOpts := append([]Option{WithClock(clock)}, opts...)
	f.run = NewReportRun(Deps{
		Resolver: f.resolver,
		Market:   f.market,
		Profile:  f.profile,
		Startup:  f.startup,
		Writer:   f.writer,
		Blobs:    f.blob,
		Sink:     f.sink,
		Charger:  f.charger,
		Metrics:  fakeMetrics{},
		Logger:   testLogger(t),
	}, allOpts...)
	return f
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.resolver.links = models.CompanyLinks{
		ProfessionalProfileURL: "https://example.com/company/acme",
		StartupProfileURL:      "", // never attempted
		SectorIndexTicker:      "^XLK",
	}
	f.resolver.usage = models.TokenUsage{TotalTokens: 2500}
	f.market.on("ACME", snapFor("ACME"), nil)
	f.market.on("^GSPC", snapFor("^GSPC"), nil)
	f.market.on("^XLK", snapFor("^XLK"), nil)
	f.profile.profile = &models.ProfileData{Name: "Acme Corp"}
	f.writer.usage = models.TokenUsage{TotalTokens: 1000}

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME", PastDays: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.SP500Data == nil || record.SP500Data.Ticker != "^GSPC" {
		t.Fatalf("missing benchmark data: %+v", record.SP500Data)
	}
	if record.SectorData == nil || record.SectorData.Ticker != "^XLK" {
		t.Fatalf("missing sector data: %+v", record.SectorData)
	}
	if record.ProfileData == nil || record.ProfileData.Name != "Acme Corp" {
		t.Fatalf("missing profile data: %+v", record.ProfileData)
	}
	if record.StartupData != nil {
		t.Fatalf("startup data should be absent: %+v", record.StartupData)
	}
	if f.startup.calls != 0 {
		t.Fatalf("startup fetch should never be attempted, got %d calls", f.startup.calls)
	}
	if record.Report == "" {
		t.Fatal("report is empty")
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("expected one pushed record, got %d", len(f.sink.records))
	}

	// ceil(2500/1000) = 3 for the resolver, ceil(1000/1000) = 1 for the report
	if counts := f.charger.find("1k-llm-tokens"); len(counts) != 2 || counts[0] != 3 || counts[1] != 1 {
		t.Fatalf("unexpected token charges %v", counts)
	}
	if counts := f.charger.find("init"); len(counts) != 1 || counts[0] != 1 {
		t.Fatalf("unexpected init charges %v", counts)
	}
}

func TestRunPrimaryFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", nil, errors.New("no data returned"))

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err == nil {
		t.Fatal("expected error")
	}
	if record != nil {
		t.Fatalf("no record expected, got %+v", record)
	}
	if f.writer.calls != 0 {
		t.Fatalf("report generator must not run, got %d calls", f.writer.calls)
	}
	if len(f.sink.records) != 0 {
		t.Fatalf("nothing should be pushed, got %d records", len(f.sink.records))
	}
}

func TestRunBenchmarkRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)
	f.market.on("^GSPC", nil, errors.New("transient"))
	retried := snapFor("^GSPC")
	retried.Quote.RegularMarketPrice = 5000
	f.market.on("^GSPC", retried, nil)

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.market.count("^GSPC") != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", f.market.count("^GSPC"))
	}
	if record.SP500Data == nil || record.SP500Data.Quote.RegularMarketPrice != 5000 {
		t.Fatalf("bundle must contain the retried snapshot: %+v", record.SP500Data)
	}
}

func TestRunSectorRetryStillFailingKeepsDefault(t *testing.T) {
	f := newFixture(t)
	f.resolver.links = models.CompanyLinks{SectorIndexTicker: "^XLF"}
	f.market.on("ACME", snapFor("ACME"), nil)
	f.market.on("^GSPC", snapFor("^GSPC"), nil)
	f.market.on("^XLF", nil, errors.New("down"))
	f.market.on("^XLF", nil, errors.New("still down"))

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.market.count("^XLF") != 2 {
		t.Fatalf("expected one retry, got %d calls", f.market.count("^XLF"))
	}
	if record.SectorData == nil || record.SectorData.Ticker != "^XLF" {
		t.Fatalf("zero-filled default expected for sector slot: %+v", record.SectorData)
	}
	if record.SectorData.Quote.RegularMarketPrice != 0 {
		t.Fatalf("sector default should be zero-filled: %+v", record.SectorData.Quote)
	}
}

func TestRunNoSectorRequested(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)
	f.market.on("^GSPC", snapFor("^GSPC"), nil)

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.SectorData != nil {
		t.Fatalf("sector data should be absent: %+v", record.SectorData)
	}
	if f.market.count("") != 0 {
		t.Fatalf("no fetch for empty ticker expected")
	}
}

func TestRunEmptyProfileOmitted(t *testing.T) {
	f := newFixture(t)
	f.resolver.links = models.CompanyLinks{ProfessionalProfileURL: "https://example.com/company/acme"}
	f.market.on("ACME", snapFor("ACME"), nil)
	f.profile.profile = &models.ProfileData{} // fetch degraded to all-absent

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.profile.calls != 1 {
		t.Fatalf("profile fetch expected, got %d calls", f.profile.calls)
	}
	if record.ProfileData != nil {
		t.Fatalf("all-absent profile must be omitted: %+v", record.ProfileData)
	}
}

func TestRunPersistsReportBlob(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)

	if _, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME", PastDays: 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := "market_report_ACME_2024-01-01_2024-01-31.md"
	w, ok := f.blob.sets[key]
	if !ok {
		t.Fatalf("report blob missing, keys: %v", f.blob.sets)
	}
	if w.contentType != "text/markdown" {
		t.Fatalf("unexpected content type %q", w.contentType)
	}
	if w.value != "# Report" {
		t.Fatalf("unexpected report body %v", w.value)
	}
}

func TestRunBlobFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)
	f.blob.err = errors.New("store down")

	if _, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"}); err != nil {
		t.Fatalf("blob failures must not fail the run: %v", err)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("record should still be pushed, got %d", len(f.sink.records))
	}
}

func TestRunWriterFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)
	f.writer.err = errors.New("model down")
	f.writer.usage = models.TokenUsage{TotalTokens: 700}

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err == nil {
		t.Fatal("expected error")
	}
	if record != nil {
		t.Fatalf("no record expected, got %+v", record)
	}
	if len(f.sink.records) != 0 {
		t.Fatalf("nothing should be pushed, got %d", len(f.sink.records))
	}
	// tokens spent on the failed call are still charged: ceil(700/1000) = 1
	if counts := f.charger.find("1k-llm-tokens"); len(counts) != 2 || counts[1] != 1 {
		t.Fatalf("unexpected token charges %v", counts)
	}
}

func TestRunPushFailureReturnsError(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)
	f.sink.err = errors.New("sink down")

	record, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"})
	if err == nil {
		t.Fatal("expected error")
	}
	if record == nil {
		t.Fatal("assembled record should still be returned")
	}
}

func TestRunSingleTokenChargesOne(t *testing.T) {
	f := newFixture(t)
	f.resolver.usage = models.TokenUsage{TotalTokens: 1}
	f.market.on("ACME", snapFor("ACME"), nil)

	if _, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := f.charger.find("1k-llm-tokens")
	if len(counts) == 0 || counts[0] != 1 {
		t.Fatalf("expected charge count 1 for 1 token, got %v", counts)
	}
}

func TestReportJobParsesMapPayload(t *testing.T) {
	f := newFixture(t)
	f.market.on("ACME", snapFor("ACME"), nil)

	job := NewReportJob(f.run, testLogger(t))
	if job.Type() != ReportJobType {
		t.Fatalf("unexpected job type %q", job.Type())
	}

	payload := map[string]interface{}{"company_ticker": "ACME", "past_days": float64(30)}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("expected one pushed record, got %d", len(f.sink.records))
	}
}

func TestReportJobRejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	job := NewReportJob(f.run, testLogger(t))

	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatal("expected error for invalid payload type")
	}
	if len(f.charger.events) != 0 {
		t.Fatalf("no run should start on a bad payload, got charges %v", f.charger.events)
	}
}

func TestRunExactThousandTokensChargesOne(t *testing.T) {
	f := newFixture(t)
	f.resolver.usage = models.TokenUsage{TotalTokens: 1000}
	f.market.on("ACME", snapFor("ACME"), nil)

	if _, err := f.run.Run(context.Background(), models.RunInput{CompanyTicker: "ACME"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := f.charger.find("1k-llm-tokens")
	if len(counts) == 0 || counts[0] != 1 {
		t.Fatalf("expected charge count 1 for 1000 tokens, got %v", counts)
	}
}
