package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
)

const (
	searchActorID = "apify/rag-web-browser"
	searchMemMB   = 1024

	// Hard cap on requested results regardless of what the caller asks for.
	maxSearchResults = 10
)

// SearchFetcher implements WebSearch over a browsing job that returns the
// search hit metadata plus the retrieved page content.
type SearchFetcher struct {
	runner  drepo.JobRunner
	charger drepo.Charger
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewSearch creates a web-search fetcher.
func NewSearch(runner drepo.JobRunner, charger drepo.Charger, metrics drepo.Metrics, lgr *applogger.Logger) drepo.WebSearch {
	return &SearchFetcher{
		runner:  runner,
		charger: charger,
		metrics: metrics,
		logger:  lgr,
	}
}

func (f *SearchFetcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	start := time.Now()
	defer func() {
		f.metrics.RecordFetch("search", time.Since(start).Seconds())
	}()

	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	if maxResults < 1 {
		maxResults = 1
	}

	f.logger.Info("searching web",
		applogger.String("query", query),
		applogger.Int("max_results", maxResults))

	items, err := f.runner.Run(ctx, searchActorID, map[string]any{
		"query":         query,
		"maxResults":    maxResults,
		"outputFormats": []string{"markdown"},
	}, searchMemMB)
	if err != nil {
		f.metrics.RecordError("search_fetch")
		f.logger.Error("web search failed",
			applogger.String("query", query),
			applogger.Error(err))
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]string, 0, len(items))
	for _, item := range items {
		if block := formatSearchResult(item); block != "" {
			results = append(results, block)
		}
	}

	f.logger.Info("web search finished",
		applogger.String("query", query),
		applogger.Int("results", len(results)))
	f.charger.Charge(ctx, "tool_result", len(results))
	return results, nil
}

// formatSearchResult renders one result item as a text block: title heading,
// URL and description lines, then the page content. Sub-parts with no source
// field are omitted; an item yielding no text at all returns "".
func formatSearchResult(item map[string]any) string {
	var b strings.Builder

	meta := subMap(item, "searchResult")
	if title := getStr(meta, "title"); title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if url := getStr(meta, "url"); url != "" {
		fmt.Fprintf(&b, "URL: %s\n\n", url)
	}
	if desc := getStr(meta, "description"); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n\n", desc)
	}
	if content := getStr(item, "markdown"); content != "" {
		fmt.Fprintf(&b, "Content:\n%s\n", content)
	}

	return b.String()
}
