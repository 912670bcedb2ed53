package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

type fakeRunner struct {
	items     []map[string]any
	err       error
	lastJob   string
	lastInput map[string]any
	lastMemMB int
}

func (r *fakeRunner) Run(_ context.Context, jobID string, input map[string]any, memoryMB int) ([]map[string]any, error) {
	r.lastJob = jobID
	r.lastInput = input
	r.lastMemMB = memoryMB
	return r.items, r.err
}

type fakeBlob struct {
	sets map[string]any
	err  error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{sets: make(map[string]any)}
}

func (b *fakeBlob) Set(_ context.Context, key string, value any, _ string) error {
	if b.err != nil {
		return b.err
	}
	b.sets[key] = value
	return nil
}

func (b *fakeBlob) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("not found")
}

type chargeEvent struct {
	event string
	count int
}

type fakeCharger struct {
	events []chargeEvent
}

func (c *fakeCharger) Charge(_ context.Context, event string, count int) {
	c.events = append(c.events, chargeEvent{event, count})
}

type fakeMetrics struct{}

func (fakeMetrics) RecordCharge(string, int)   {}
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

var testQuery = models.TickerQuery{Ticker: "ACME", StartDate: "2024-01-01", EndDate: "2024-01-31"}

func TestMarketFetchMapsFields(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{{
		"results": map[string]any{
			"summaryDetail": map[string]any{
				"previousClose": 101.5,
				"marketCap":     2.5e12,
				"trailingPE":    31.2,
				"volume":        float64(1000),
			},
			"price": map[string]any{
				"regularMarketPrice": 102.0,
				"symbol":             "ACME",
				"shortName":          "Acme Corp",
				"currency":           "EUR",
			},
		},
		"chart": map[string]any{
			"quotes": []any{
				map[string]any{"date": "2024-01-02", "open": 100.0, "close": 101.0, "volume": float64(500)},
			},
		},
		"news": []any{
			map[string]any{"uuid": "n1", "title": "Acme up", "relatedTickers": []any{"ACME", "OTHER"}},
		},
	}}}
	blob := newFakeBlob()
	charger := &fakeCharger{}

	f := NewMarket(runner, blob, charger, fakeMetrics{}, testLogger(t))
	snap, err := f.Fetch(context.Background(), testQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.lastJob != marketActorID {
		t.Fatalf("unexpected job %q", runner.lastJob)
	}
	if runner.lastInput["ticker"] != "ACME" || runner.lastInput["startDate"] != "2024-01-01" {
		t.Fatalf("unexpected input %v", runner.lastInput)
	}
	if snap.SummaryMetrics.PreviousClose != 101.5 || snap.SummaryMetrics.MarketCap != 2.5e12 {
		t.Fatalf("unexpected summary %+v", snap.SummaryMetrics)
	}
	if snap.Quote.ShortName != "Acme Corp" || snap.Quote.Currency != "EUR" {
		t.Fatalf("unexpected quote %+v", snap.Quote)
	}
	if len(snap.DailyQuotes) != 1 || snap.DailyQuotes[0].Volume != 500 {
		t.Fatalf("unexpected quotes %+v", snap.DailyQuotes)
	}
	if len(snap.NewsItems) != 1 || len(snap.NewsItems[0].RelatedTickers) != 2 {
		t.Fatalf("unexpected news %+v", snap.NewsItems)
	}
	if _, ok := blob.sets["market_data_ACME_2024-01-01_2024-01-31"]; !ok {
		t.Fatalf("snapshot not persisted, keys: %v", blob.sets)
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 1}) {
		t.Fatalf("unexpected charges %v", charger.events)
	}
}

func TestMarketFetchIndexZeroesCompanyMetrics(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{{
		"results": map[string]any{
			"summaryDetail": map[string]any{
				"marketCap":                    9.9e12,
				"trailingPE":                   22.0,
				"forwardPE":                    20.0,
				"priceToSalesTrailing12Months": 3.3,
				"payoutRatio":                  0.4,
				"beta":                         1.1,
				"previousClose":                5000.0,
			},
			"price": map[string]any{"marketCap": 9.9e12},
		},
	}}}

	q := models.TickerQuery{Ticker: "^GSPC", StartDate: "2024-01-01", EndDate: "2024-01-31"}
	f := NewMarket(runner, newFakeBlob(), &fakeCharger{}, fakeMetrics{}, testLogger(t))
	snap, err := f.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := snap.SummaryMetrics
	if s.MarketCap != 0 || s.TrailingPE != 0 || s.ForwardPE != 0 ||
		s.PriceToSalesTrailing != 0 || s.PayoutRatio != 0 || s.Beta != 0 {
		t.Fatalf("company-only metrics not zeroed for index: %+v", s)
	}
	if snap.Quote.MarketCap != 0 {
		t.Fatalf("quote market cap not zeroed: %v", snap.Quote.MarketCap)
	}
	if s.PreviousClose != 5000.0 {
		t.Fatalf("shared metric should survive: %v", s.PreviousClose)
	}
}

func TestMarketFetchBlobFailureIsSwallowed(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{{
		"results": map[string]any{
			"price": map[string]any{"regularMarketPrice": 102.0, "symbol": "ACME"},
		},
	}}}
	blob := newFakeBlob()
	blob.err = errors.New("store down")
	charger := &fakeCharger{}

	f := NewMarket(runner, blob, charger, fakeMetrics{}, testLogger(t))
	snap, err := f.Fetch(context.Background(), testQuery)
	if err != nil {
		t.Fatalf("blob failure must not fail the fetch: %v", err)
	}
	if snap.Quote.RegularMarketPrice != 102.0 {
		t.Fatalf("unexpected snapshot %+v", snap.Quote)
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 1}) {
		t.Fatalf("unexpected charges %v", charger.events)
	}
}

func TestMarketFetchEmptyDataset(t *testing.T) {
	runner := &fakeRunner{items: nil}
	charger := &fakeCharger{}
	f := NewMarket(runner, newFakeBlob(), charger, fakeMetrics{}, testLogger(t))

	snap, err := f.Fetch(context.Background(), testQuery)
	if !errors.Is(err, drepo.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if snap == nil {
		t.Fatal("expected default snapshot, got nil")
	}
	if snap.Ticker != "ACME" || snap.Quote.Symbol != "ACME" || snap.Quote.Currency != "USD" {
		t.Fatalf("unexpected default %+v", snap)
	}
	if len(snap.DailyQuotes) != 0 || len(snap.NewsItems) != 0 {
		t.Fatalf("default sequences not empty: %+v", snap)
	}
	if len(charger.events) != 0 {
		t.Fatalf("no charge expected, got %v", charger.events)
	}
}

func TestMarketFetchRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	f := NewMarket(runner, newFakeBlob(), &fakeCharger{}, fakeMetrics{}, testLogger(t))

	snap, err := f.Fetch(context.Background(), testQuery)
	if err == nil {
		t.Fatal("expected error")
	}
	if snap == nil || snap.Ticker != "ACME" {
		t.Fatalf("expected default snapshot, got %+v", snap)
	}
}

func TestSearchFormatting(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{
		{
			"searchResult": map[string]any{
				"title":       "Acme Corp",
				"url":         "https://example.com/acme",
				"description": "Industrial supplier",
			},
			"markdown": "Acme makes anvils.",
		},
		{
			// content only, no search metadata
			"markdown": "Bare content.",
		},
		{
			// nothing usable: dropped
			"searchResult": map[string]any{},
		},
	}}
	charger := &fakeCharger{}
	f := NewSearch(runner, charger, fakeMetrics{}, testLogger(t))

	results, err := f.Search(context.Background(), "acme", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	for _, want := range []string{"# Acme Corp\n\n", "URL: https://example.com/acme\n\n", "Description: Industrial supplier\n\n", "Content:\nAcme makes anvils.\n"} {
		if !strings.Contains(first, want) {
			t.Fatalf("missing %q in %q", want, first)
		}
	}
	if results[1] != "Content:\nBare content.\n" {
		t.Fatalf("content-only block mismatch: %q", results[1])
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 2}) {
		t.Fatalf("charge should equal returned results: %v", charger.events)
	}
}

func TestSearchClampsMaxResults(t *testing.T) {
	runner := &fakeRunner{}
	f := NewSearch(runner, &fakeCharger{}, fakeMetrics{}, testLogger(t))

	if _, err := f.Search(context.Background(), "acme", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.lastInput["maxResults"] != 10 {
		t.Fatalf("maxResults not clamped: %v", runner.lastInput["maxResults"])
	}
}

func TestProfileFetchMapsNestedResult(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{{
		"data": []any{
			map[string]any{
				"result": map[string]any{
					"name":              "Acme Corp",
					"industry":          "Manufacturing",
					"numberOfEmployees": float64(1200),
					"specialties": []any{
						map[string]any{"value": "anvils"},
						map[string]any{"value": "rockets"},
					},
					"address": map[string]any{
						"streetAddress":   "1 Desert Rd",
						"addressLocality": "Tumbleweed",
						"addressRegion":   "",
						"postalCode":      "99999",
						"addressCountry":  "US",
					},
				},
			},
		},
	}}}
	charger := &fakeCharger{}
	blob := newFakeBlob()
	f := NewProfile(runner, blob, charger, fakeMetrics{}, testLogger(t))

	p, err := f.Fetch(context.Background(), "https://example.com/company/acme", testQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Acme Corp" || p.EmployeeCount != 1200 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(p.Specialties) != 2 || p.Specialties[0] != "anvils" {
		t.Fatalf("unexpected specialties %v", p.Specialties)
	}
	if p.Address != "1 Desert Rd, Tumbleweed, 99999, US" {
		t.Fatalf("unexpected address %q", p.Address)
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 1}) {
		t.Fatalf("unexpected charges %v", charger.events)
	}
	if _, ok := blob.sets["profile_ACME_2024-01-01_2024-01-31"]; !ok {
		t.Fatalf("profile not persisted: %v", blob.sets)
	}
}

func TestProfileFetchErrorReturnsEmpty(t *testing.T) {
	runner := &fakeRunner{err: errors.New("scraper down")}
	f := NewProfile(runner, newFakeBlob(), &fakeCharger{}, fakeMetrics{}, testLogger(t))

	p, err := f.Fetch(context.Background(), "https://example.com/company/acme", testQuery)
	if err != nil {
		t.Fatalf("profile errors must not propagate, got %v", err)
	}
	if !p.IsZero() {
		t.Fatalf("expected all-absent profile, got %+v", p)
	}
}

func TestStartupFetchWrapsSingleItem(t *testing.T) {
	runner := &fakeRunner{items: []map[string]any{
		{"name": "Acme", "funding": "series Z"},
	}}
	charger := &fakeCharger{}
	f := NewStartup(runner, newFakeBlob(), charger, fakeMetrics{}, testLogger(t))

	got, err := f.Fetch(context.Background(), "https://example.com/organization/acme", testQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "Acme" {
		t.Fatalf("unexpected result %v", got)
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 1}) {
		t.Fatalf("unexpected charges %v", charger.events)
	}
}

func TestStartupFetchEmptyDataset(t *testing.T) {
	runner := &fakeRunner{}
	charger := &fakeCharger{}
	f := NewStartup(runner, newFakeBlob(), charger, fakeMetrics{}, testLogger(t))

	got, err := f.Fetch(context.Background(), "https://example.com/organization/acme", testQuery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty sequence, got %v", got)
	}
	if len(charger.events) != 1 || charger.events[0] != (chargeEvent{"tool_result", 0}) {
		t.Fatalf("expected zero-count charge, got %v", charger.events)
	}
}
