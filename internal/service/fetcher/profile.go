package fetcher

import (
	"context"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	drepo "MarketBrief/internal/domain/repository"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/util"
)

const (
	profileActorID = "icypeas_official/linkedin-company-scraper"
	profileMemMB   = 128
)

// ProfileFetcher implements ProfileSource. It never lets a remote failure
// escape: every error path yields the all-absent profile.
type ProfileFetcher struct {
	runner  drepo.JobRunner
	blobs   drepo.BlobStore
	charger drepo.Charger
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewProfile creates a professional-network profile fetcher.
func NewProfile(runner drepo.JobRunner, blobs drepo.BlobStore, charger drepo.Charger, metrics drepo.Metrics, lgr *applogger.Logger) drepo.ProfileSource {
	return &ProfileFetcher{
		runner:  runner,
		blobs:   blobs,
		charger: charger,
		metrics: metrics,
		logger:  lgr,
	}
}

func (f *ProfileFetcher) Fetch(ctx context.Context, profileURL string, q models.TickerQuery) (*models.ProfileData, error) {
	start := time.Now()
	defer func() {
		f.metrics.RecordFetch("profile", time.Since(start).Seconds())
	}()

	f.logger.Info("fetching company profile", applogger.String("url", profileURL))

	items, err := f.runner.Run(ctx, profileActorID, map[string]any{
		"linkedinUrls": []string{profileURL},
	}, profileMemMB)
	if err != nil {
		f.metrics.RecordError("profile_fetch")
		f.logger.Error("company profile fetch failed",
			applogger.String("url", profileURL),
			applogger.Error(err))
		return &models.ProfileData{}, nil
	}
	if len(items) == 0 {
		f.logger.Warn("company profile empty", applogger.String("url", profileURL))
		f.charger.Charge(ctx, "tool_result", 0)
		return &models.ProfileData{}, nil
	}

	profile := mapProfile(items[0])
	if profile.IsZero() {
		f.charger.Charge(ctx, "tool_result", 0)
		return profile, nil
	}

	key := fmt.Sprintf("profile_%s_%s_%s", q.Ticker, q.StartDate, q.EndDate)
	if err := f.blobs.Set(ctx, key, profile, "application/json"); err != nil {
		f.logger.Warn("profile store failed",
			applogger.String("key", key),
			applogger.Error(err))
	}

	f.logger.Info("company profile fetched",
		applogger.String("url", profileURL),
		applogger.String("name", profile.Name))
	f.charger.Charge(ctx, "tool_result", 1)
	return profile, nil
}

// mapProfile unwraps the nested result record the profile scraper emits:
// items[0].data[0].result.
func mapProfile(item map[string]any) *models.ProfileData {
	data := getList(item, "data")
	if len(data) == 0 {
		return &models.ProfileData{}
	}
	first, ok := data[0].(map[string]any)
	if !ok {
		return &models.ProfileData{}
	}
	result := subMap(first, "result")

	specialties := make([]string, 0)
	for _, raw := range getList(result, "specialties") {
		if sm, ok := raw.(map[string]any); ok {
			if v := getStr(sm, "value"); v != "" {
				specialties = append(specialties, v)
			}
		}
	}

	return &models.ProfileData{
		Name:          getStr(result, "name"),
		Description:   getStr(result, "description"),
		Industry:      getStr(result, "industry"),
		EmployeeCount: int(getInt(result, "numberOfEmployees")),
		Website:       getStr(result, "website"),
		Specialties:   specialties,
		Address:       formatAddress(result["address"]),
	}
}

// formatAddress joins the non-empty parts of a structured address. A plain
// string address passes through unchanged.
func formatAddress(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		return util.JoinNonEmpty(", ",
			getStr(v, "streetAddress"),
			getStr(v, "addressLocality"),
			getStr(v, "addressRegion"),
			getStr(v, "postalCode"),
			getStr(v, "addressCountry"),
		)
	}
	return ""
}
