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
	marketActorID = "harvest/yahoo-finance-scraper"
	marketMemMB   = 128
)

// MarketFetcher implements MarketData on top of a remote scraping job.
type MarketFetcher struct {
	runner  drepo.JobRunner
	blobs   drepo.BlobStore
	charger drepo.Charger
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewMarket creates a market-data fetcher.
func NewMarket(runner drepo.JobRunner, blobs drepo.BlobStore, charger drepo.Charger, metrics drepo.Metrics, lgr *applogger.Logger) drepo.MarketData {
	return &MarketFetcher{
		runner:  runner,
		blobs:   blobs,
		charger: charger,
		metrics: metrics,
		logger:  lgr,
	}
}

// Fetch retrieves the snapshot for one ticker and window. The returned
// snapshot is always structurally valid; the error marks the slot outcome
// for the caller (ErrNoData on an empty dataset).
func (f *MarketFetcher) Fetch(ctx context.Context, q models.TickerQuery) (*models.MarketSnapshot, error) {
	start := time.Now()
	defer func() {
		f.metrics.RecordFetch("market_data", time.Since(start).Seconds())
	}()

	f.logger.Info("fetching market data",
		applogger.String("ticker", q.Ticker),
		applogger.String("start", q.StartDate),
		applogger.String("end", q.EndDate))

	items, err := f.runner.Run(ctx, marketActorID, map[string]any{
		"ticker":    q.Ticker,
		"startDate": q.StartDate,
		"endDate":   q.EndDate,
	}, marketMemMB)
	if err != nil {
		f.metrics.RecordError("market_fetch")
		f.logger.Error("market data fetch failed",
			applogger.String("ticker", q.Ticker),
			applogger.Error(err))
		return models.NewDefaultSnapshot(q), fmt.Errorf("market data for %s: %w", q.Ticker, err)
	}
	if len(items) == 0 {
		f.metrics.RecordError("market_no_data")
		f.logger.Warn("market data empty", applogger.String("ticker", q.Ticker))
		return models.NewDefaultSnapshot(q), fmt.Errorf("market data for %s: %w", q.Ticker, drepo.ErrNoData)
	}

	snap := mapSnapshot(items[0], q)

	key := fmt.Sprintf("market_data_%s_%s_%s", q.Ticker, q.StartDate, q.EndDate)
	if err := f.blobs.Set(ctx, key, snap, "application/json"); err != nil {
		f.logger.Warn("market data store failed",
			applogger.String("key", key),
			applogger.Error(err))
	}

	f.logger.Info("market data fetched",
		applogger.String("ticker", q.Ticker),
		applogger.Int("quotes", len(snap.DailyQuotes)),
		applogger.Int("news", len(snap.NewsItems)))
	f.charger.Charge(ctx, "tool_result", 1)
	return snap, nil
}

func mapSnapshot(item map[string]any, q models.TickerQuery) *models.MarketSnapshot {
	isIndex := q.IsIndex()

	// Company-only metrics stay zero for indices even when the upstream
	// source reports a value.
	companyOnly := func(v float64) float64 {
		if isIndex {
			return 0
		}
		return v
	}

	sd := subMap(item, "results", "summaryDetail")
	summary := models.SummaryMetrics{
		PreviousClose:        getFloat(sd, "previousClose"),
		Open:                 getFloat(sd, "open"),
		DayLow:               getFloat(sd, "dayLow"),
		DayHigh:              getFloat(sd, "dayHigh"),
		Volume:               getInt(sd, "volume"),
		AverageVolume:        getInt(sd, "averageVolume"),
		MarketCap:            companyOnly(getFloat(sd, "marketCap")),
		FiftyTwoWeekLow:      getFloat(sd, "fiftyTwoWeekLow"),
		FiftyTwoWeekHigh:     getFloat(sd, "fiftyTwoWeekHigh"),
		PriceToSalesTrailing: companyOnly(getFloat(sd, "priceToSalesTrailing12Months")),
		FiftyDayAverage:      getFloat(sd, "fiftyDayAverage"),
		TwoHundredDayAverage: getFloat(sd, "twoHundredDayAverage"),
		TrailingPE:           companyOnly(getFloat(sd, "trailingPE")),
		ForwardPE:            companyOnly(getFloat(sd, "forwardPE")),
		DividendRate:         getFloat(sd, "dividendRate"),
		DividendYield:        getFloat(sd, "dividendYield"),
		PayoutRatio:          companyOnly(getFloat(sd, "payoutRatio")),
		Beta:                 companyOnly(getFloat(sd, "beta")),
	}

	pd := subMap(item, "results", "price")
	symbol := getStr(pd, "symbol")
	if symbol == "" {
		symbol = q.Ticker
	}
	currency := getStr(pd, "currency")
	if currency == "" {
		currency = "USD"
	}
	quote := models.Quote{
		RegularMarketPrice:         getFloat(pd, "regularMarketPrice"),
		RegularMarketChange:        getFloat(pd, "regularMarketChange"),
		RegularMarketChangePercent: getFloat(pd, "regularMarketChangePercent"),
		RegularMarketTime:          getStr(pd, "regularMarketTime"),
		RegularMarketVolume:        getInt(pd, "regularMarketVolume"),
		RegularMarketDayHigh:       getFloat(pd, "regularMarketDayHigh"),
		RegularMarketDayLow:        getFloat(pd, "regularMarketDayLow"),
		RegularMarketPreviousClose: getFloat(pd, "regularMarketPreviousClose"),
		RegularMarketOpen:          getFloat(pd, "regularMarketOpen"),
		Exchange:                   getStr(pd, "exchange"),
		ExchangeName:               getStr(pd, "exchangeName"),
		MarketState:                getStr(pd, "marketState"),
		QuoteType:                  getStr(pd, "quoteType"),
		Symbol:                     symbol,
		ShortName:                  getStr(pd, "shortName"),
		LongName:                   getStr(pd, "longName"),
		Currency:                   currency,
		MarketCap:                  companyOnly(getFloat(pd, "marketCap")),
	}

	chart := subMap(item, "chart")
	quotes := make([]models.DailyQuote, 0)
	for _, raw := range getList(chart, "quotes") {
		qd, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		quotes = append(quotes, models.DailyQuote{
			Date:     getStr(qd, "date"),
			Open:     getFloat(qd, "open"),
			High:     getFloat(qd, "high"),
			Low:      getFloat(qd, "low"),
			Close:    getFloat(qd, "close"),
			AdjClose: getFloat(qd, "adjclose"),
			Volume:   getInt(qd, "volume"),
		})
	}

	news := make([]models.NewsItem, 0)
	for _, raw := range getList(item, "news") {
		nd, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		news = append(news, models.NewsItem{
			UUID:                getStr(nd, "uuid"),
			Title:               getStr(nd, "title"),
			Publisher:           getStr(nd, "publisher"),
			Link:                getStr(nd, "link"),
			ProviderPublishTime: getStr(nd, "providerPublishTime"),
			Type:                getStr(nd, "type"),
			RelatedTickers:      getStrList(nd, "relatedTickers"),
		})
	}

	return &models.MarketSnapshot{
		SummaryMetrics: summary,
		Quote:          quote,
		DailyQuotes:    quotes,
		NewsItems:      news,
		Ticker:         q.Ticker,
		StartDate:      q.StartDate,
		EndDate:        q.EndDate,
	}
}
