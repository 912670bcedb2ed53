package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MarketBrief/internal/domain/models"
	icache "MarketBrief/internal/service/cache"
	applogger "MarketBrief/pkg/logger"
)

type fakeGen struct {
	links resolvedLinks
	usage models.TokenUsage
	err   error
	calls int
	user  string
}

func (g *fakeGen) GenerateJSON(_ context.Context, _, _, user string, out any) (models.TokenUsage, error) {
	g.calls++
	g.user = user
	if g.err != nil {
		return g.usage, g.err
	}
	*(out.(*resolvedLinks)) = g.links
	return g.usage, nil
}

type fakeSearch struct {
	hits []string
	err  error
}

func (s *fakeSearch) Search(_ context.Context, _ string, _ int) ([]string, error) {
	return s.hits, s.err
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestResolveMapsLinks(t *testing.T) {
	gen := &fakeGen{
		links: resolvedLinks{
			LinkedInURL:   "https://www.linkedin.com/company/acme",
			CrunchbaseURL: "https://www.crunchbase.com/organization/acme",
			SectorIndex:   "^XLK",
		},
		usage: models.TokenUsage{TotalTokens: 2500},
	}
	search := &fakeSearch{hits: []string{"# Acme Corp\n\nURL: https://www.linkedin.com/company/acme\n"}}
	r := New(gen, search, icache.NewTTLCache(), testLogger(t))

	links, usage := r.Resolve(context.Background(), "ACME")
	if links.ProfessionalProfileURL != "https://www.linkedin.com/company/acme" {
		t.Fatalf("unexpected profile url %q", links.ProfessionalProfileURL)
	}
	if links.StartupProfileURL != "https://www.crunchbase.com/organization/acme" {
		t.Fatalf("unexpected startup url %q", links.StartupProfileURL)
	}
	if links.SectorIndexTicker != "^XLK" {
		t.Fatalf("unexpected sector ticker %q", links.SectorIndexTicker)
	}
	if usage.TotalTokens != 2500 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if !strings.Contains(gen.user, "ACME") || !strings.Contains(gen.user, "Search results:") {
		t.Fatalf("prompt missing context: %q", gen.user)
	}
}

func TestResolveCachesLinks(t *testing.T) {
	gen := &fakeGen{
		links: resolvedLinks{LinkedInURL: "https://www.linkedin.com/company/acme"},
		usage: models.TokenUsage{TotalTokens: 900},
	}
	r := New(gen, &fakeSearch{}, icache.NewTTLCache(), testLogger(t))

	r.Resolve(context.Background(), "ACME")
	links, usage := r.Resolve(context.Background(), "ACME")

	if gen.calls != 1 {
		t.Fatalf("expected single generative call, got %d", gen.calls)
	}
	if usage.TotalTokens != 0 {
		t.Fatalf("cached resolve must report zero usage, got %+v", usage)
	}
	if links.ProfessionalProfileURL != "https://www.linkedin.com/company/acme" {
		t.Fatalf("unexpected cached links %+v", links)
	}
}

func TestResolveGenerationFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("model overloaded"), usage: models.TokenUsage{TotalTokens: 120}}
	r := New(gen, &fakeSearch{}, icache.NewTTLCache(), testLogger(t))

	links, usage := r.Resolve(context.Background(), "ACME")
	if links == nil {
		t.Fatal("links must never be nil")
	}
	if links.ProfessionalProfileURL != "" || links.StartupProfileURL != "" || links.SectorIndexTicker != "" {
		t.Fatalf("expected empty links, got %+v", links)
	}
	if usage.TotalTokens != 120 {
		t.Fatalf("usage must be reported even on failure, got %+v", usage)
	}
}

func TestResolveSearchFailureTolerated(t *testing.T) {
	gen := &fakeGen{links: resolvedLinks{SectorIndex: "^XLF"}}
	r := New(gen, &fakeSearch{err: errors.New("search down")}, icache.NewTTLCache(), testLogger(t))

	links, _ := r.Resolve(context.Background(), "ACME")
	if gen.calls != 1 {
		t.Fatalf("generative call should still run, got %d calls", gen.calls)
	}
	if links.SectorIndexTicker != "^XLF" {
		t.Fatalf("unexpected links %+v", links)
	}
	if strings.Contains(gen.user, "Search results:") {
		t.Fatalf("prompt should omit search section: %q", gen.user)
	}
}
