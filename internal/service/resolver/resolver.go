package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	icache "MarketBrief/internal/service/cache"
	applogger "MarketBrief/pkg/logger"
)

const systemPrompt = `You are a research assistant focused on finding accurate company profile URLs.
Given a company ticker, your task is to find their official LinkedIn company profile URL, their
Crunchbase profile URL, and the ticker of the sector-specific market index the company belongs to
(e.g. ^XLF for financials). Use the provided search results to verify the profiles are correct and
official. Return empty strings for anything you cannot determine.`

const (
	defaultSearchHits = 3
	cacheTTL          = 12 * time.Hour
)

// Generator is the structured-output generative call the resolver depends on.
type Generator interface {
	GenerateJSON(ctx context.Context, name, system, user string, out any) (models.TokenUsage, error)
}

// resolvedLinks is the schema of the single generative call. All three
// fields come back from one call on purpose: resolving them separately would
// cost one full round trip each.
type resolvedLinks struct {
	LinkedInURL   string `json:"linkedin_url" jsonschema_description:"URL of the company's LinkedIn profile, or empty string if unknown"`
	CrunchbaseURL string `json:"crunchbase_url" jsonschema_description:"URL of the company's Crunchbase profile, or empty string if unknown"`
	SectorIndex   string `json:"sector_index" jsonschema_description:"Sector-specific index ticker (e.g. ^XLF for financials), or empty string if unknown"`
}

// Resolver turns a ticker into CompanyLinks. It never fails past its
// boundary: every error path yields empty-string fields.
type Resolver struct {
	gen        Generator
	search     drepo.WebSearch
	cache      icache.BytesCache
	logger     *applogger.Logger
	searchHits int
}

// Option configures the resolver.
type Option func(*Resolver)

// WithSearchHits overrides the number of search results fed to the
// generative call.
func WithSearchHits(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.searchHits = n
		}
	}
}

// New creates a link resolver. cache may hold previously resolved links to
// skip the generative round trip for repeated tickers.
func New(gen Generator, search drepo.WebSearch, cache icache.BytesCache, lgr *applogger.Logger, opts ...Option) drepo.LinkResolver {
	r := &Resolver{
		gen:        gen,
		search:     search,
		cache:      cache,
		logger:     lgr,
		searchHits: defaultSearchHits,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, ticker string) (*models.CompanyLinks, models.TokenUsage) {
	cacheKey := "resolver_links_" + ticker
	if b, ok, err := r.cache.GetBytes(cacheKey); err == nil && ok {
		var links models.CompanyLinks
		if err := json.Unmarshal(b, &links); err == nil {
			r.logger.Info("company links cached", applogger.String("ticker", ticker))
			return &links, models.TokenUsage{}
		}
	}

	r.logger.Info("resolving company links", applogger.String("ticker", ticker))

	query := fmt.Sprintf("%s company official LinkedIn profile and Crunchbase profile", ticker)
	hits, err := r.search.Search(ctx, query, r.searchHits)
	if err != nil {
		// The generative call can still answer from its own knowledge.
		r.logger.Warn("link search failed",
			applogger.String("ticker", ticker),
			applogger.Error(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Find the LinkedIn company profile URL, Crunchbase URL, and sector index ticker for %s.", ticker)
	if len(hits) > 0 {
		b.WriteString("\n\nSearch results:\n\n")
		b.WriteString(strings.Join(hits, "\n---\n"))
	}

	var resolved resolvedLinks
	usage, err := r.gen.GenerateJSON(ctx, "company_links", systemPrompt, b.String(), &resolved)
	if err != nil {
		r.logger.Error("link resolution failed",
			applogger.String("ticker", ticker),
			applogger.Error(err))
		return &models.CompanyLinks{}, usage
	}

	links := &models.CompanyLinks{
		ProfessionalProfileURL: resolved.LinkedInURL,
		StartupProfileURL:      resolved.CrunchbaseURL,
		SectorIndexTicker:      resolved.SectorIndex,
	}

	if data, err := json.Marshal(links); err == nil {
		if err := r.cache.SetBytes(cacheKey, data, cacheTTL); err != nil {
			r.logger.Warn("link cache write failed", applogger.Error(err))
		}
	}

	r.logger.Info("company links resolved",
		applogger.String("ticker", ticker),
		applogger.String("profile_url", links.ProfessionalProfileURL),
		applogger.String("startup_url", links.StartupProfileURL),
		applogger.String("sector_index", links.SectorIndexTicker))
	return links, usage
}
