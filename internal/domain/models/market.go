package models

import "strings"

// IndexPrefix marks a ticker as a market index rather than a single company.
const IndexPrefix = "^"

// TickerQuery is the immutable input of one market-data fetch.
// Dates are formatted YYYY-MM-DD.
type TickerQuery struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// IsIndex reports whether the queried ticker denotes a market index.
func (q TickerQuery) IsIndex() bool {
	return strings.HasPrefix(q.Ticker, IndexPrefix)
}

// SummaryMetrics holds the headline numbers of a snapshot. Company-only
// metrics (market cap, P/E ratios, price-to-sales, payout ratio, beta) are
// forced to zero for index tickers.
type SummaryMetrics struct {
	PreviousClose         float64 `json:"previous_close"`
	Open                  float64 `json:"open"`
	DayLow                float64 `json:"day_low"`
	DayHigh               float64 `json:"day_high"`
	Volume                int64   `json:"volume"`
	AverageVolume         int64   `json:"average_volume"`
	MarketCap             float64 `json:"market_cap"`
	FiftyTwoWeekLow       float64 `json:"fifty_two_week_low"`
	FiftyTwoWeekHigh      float64 `json:"fifty_two_week_high"`
	PriceToSalesTrailing  float64 `json:"price_to_sales_trailing_12m"`
	FiftyDayAverage       float64 `json:"fifty_day_average"`
	TwoHundredDayAverage  float64 `json:"two_hundred_day_average"`
	TrailingPE            float64 `json:"trailing_pe"`
	ForwardPE             float64 `json:"forward_pe"`
	DividendRate          float64 `json:"dividend_rate"`
	DividendYield         float64 `json:"dividend_yield"`
	PayoutRatio           float64 `json:"payout_ratio"`
	Beta                  float64 `json:"beta"`
}

// Quote is the point-in-time price record of a snapshot.
type Quote struct {
	RegularMarketPrice         float64 `json:"regular_market_price"`
	RegularMarketChange        float64 `json:"regular_market_change"`
	RegularMarketChangePercent float64 `json:"regular_market_change_percent"`
	RegularMarketTime          string  `json:"regular_market_time"`
	RegularMarketVolume        int64   `json:"regular_market_volume"`
	RegularMarketDayHigh       float64 `json:"regular_market_day_high"`
	RegularMarketDayLow        float64 `json:"regular_market_day_low"`
	RegularMarketPreviousClose float64 `json:"regular_market_previous_close"`
	RegularMarketOpen          float64 `json:"regular_market_open"`
	Exchange                   string  `json:"exchange"`
	ExchangeName               string  `json:"exchange_name"`
	MarketState                string  `json:"market_state"`
	QuoteType                  string  `json:"quote_type"`
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"short_name"`
	LongName                   string  `json:"long_name"`
	Currency                   string  `json:"currency"`
	MarketCap                  float64 `json:"market_cap"`
}

// DailyQuote is one OHLC bar. Insertion order is chronological.
type DailyQuote struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjclose"`
	Volume   int64   `json:"volume"`
}

// NewsItem is one news record attached to a snapshot.
type NewsItem struct {
	UUID               string   `json:"uuid"`
	Title              string   `json:"title"`
	Publisher          string   `json:"publisher"`
	Link               string   `json:"link"`
	ProviderPublishTime string  `json:"provider_publish_time"`
	Type               string   `json:"type"`
	RelatedTickers     []string `json:"related_tickers"`
}

// MarketSnapshot bundles everything fetched for one ticker over one window.
// A snapshot always exists: a failed fetch yields a zero-filled instance with
// empty sequences, never a nil pointer.
type MarketSnapshot struct {
	SummaryMetrics SummaryMetrics `json:"summary_metrics"`
	Quote          Quote          `json:"quote"`
	DailyQuotes    []DailyQuote   `json:"daily_quotes"`
	NewsItems      []NewsItem     `json:"news_items"`
	Ticker         string         `json:"ticker"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
}

// NewDefaultSnapshot builds the zero-filled snapshot used when a fetch
// returns no data. Sequence fields are empty, scalar fields are zero.
func NewDefaultSnapshot(q TickerQuery) *MarketSnapshot {
	return &MarketSnapshot{
		Quote: Quote{
			Symbol:   q.Ticker,
			Currency: "USD",
		},
		DailyQuotes: []DailyQuote{},
		NewsItems:   []NewsItem{},
		Ticker:      q.Ticker,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
	}
}
