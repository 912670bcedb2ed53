package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

const systemPrompt = `You are a professional financial analyst specializing in market research and analysis. Your task is to generate clear, concise, and insightful market reports based on provided financial data.

Your report should follow this structure:

1. Executive Summary
   - Company overview
   - Key performance metrics
   - Overall market sentiment

2. Price Analysis
   - Current price and price movement over the period
   - Percentage changes
   - Trading volume analysis
   - Price trends and patterns

3. Market Metrics
   - Market capitalization
   - Key ratios (P/E, P/S, etc.)
   - Moving averages (50-day, 200-day)
   - Beta and volatility indicators

4. Benchmark Comparison
   - Performance versus the S&P 500 over the period
   - Performance versus the sector index, if provided

5. News Impact
   - Most significant news events
   - Market reactions to news
   - Potential future implications

6. Risk Factors
   - Market risks
   - Company-specific risks
   - External factors affecting the stock

7. Outlook
   - Short-term outlook
   - Key factors to watch
   - Potential catalysts

Guidelines:
- Use clear, professional language
- Support all statements with data
- Highlight significant changes and trends
- Focus on actionable insights
- Format numbers consistently
- Use markdown formatting to structure the report. Start the report with a title using 1 #

Remember to:
- Base all analysis on the provided data
- Maintain objectivity
- Highlight both positive and negative indicators
- Provide context for all metrics
- Use proper financial terminology`

// Generator is the structured-output generative call the writer depends on.
type Generator interface {
	GenerateJSON(ctx context.Context, name, system, user string, out any) (models.TokenUsage, error)
}

// Writer turns an aggregated bundle into a structured market report.
type Writer struct {
	gen    Generator
	logger *applogger.Logger
}

// New creates a report writer.
func New(gen Generator, lgr *applogger.Logger) drepo.ReportWriter {
	return &Writer{gen: gen, logger: lgr}
}

func (w *Writer) Write(ctx context.Context, ticker string, bundle *models.AggregatedBundle) (*models.ReportInfo, models.TokenUsage, error) {
	prompt, err := buildPrompt(ticker, bundle)
	if err != nil {
		return nil, models.TokenUsage{}, err
	}

	w.logger.Info("generating market report", applogger.String("ticker", ticker))

	var info models.ReportInfo
	usage, err := w.gen.GenerateJSON(ctx, "market_report", systemPrompt, prompt, &info)
	if err != nil {
		return nil, usage, fmt.Errorf("generate report for %s: %w", ticker, err)
	}

	w.logger.Info("market report generated",
		applogger.String("ticker", ticker),
		applogger.String("company", info.CompanyName),
		applogger.Int64("total_tokens", usage.TotalTokens))
	return &info, usage, nil
}

// buildPrompt serializes every populated bundle slot into one prompt. The
// optional slots are simply left out when absent.
func buildPrompt(ticker string, bundle *models.AggregatedBundle) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate a market report for %q based on the following data:\n\n", ticker)

	if err := appendSection(&b, "Market Data", bundle.Primary); err != nil {
		return "", err
	}
	if bundle.Benchmark != nil {
		if err := appendSection(&b, "S&P 500 Benchmark Data", bundle.Benchmark); err != nil {
			return "", err
		}
	}
	if bundle.Sector != nil {
		if err := appendSection(&b, "Sector Index Data", bundle.Sector); err != nil {
			return "", err
		}
	}
	if bundle.Profile != nil && !bundle.Profile.IsZero() {
		if err := appendSection(&b, "Company Profile Data", bundle.Profile); err != nil {
			return "", err
		}
	}
	if len(bundle.Startup) > 0 {
		if err := appendSection(&b, "Startup Database Data", bundle.Startup); err != nil {
			return "", err
		}
	}

	return b.String(), nil
}

func appendSection(b *strings.Builder, title string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", title, err)
	}
	fmt.Fprintf(b, "%s:\n%s\n\n", title, data)
	return nil
}
