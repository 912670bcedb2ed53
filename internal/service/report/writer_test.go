package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MarketBrief/internal/domain/models"
	applogger "MarketBrief/pkg/logger"
)

type fakeGen struct {
	info  models.ReportInfo
	usage models.TokenUsage
	err   error
	user  string
}

func (g *fakeGen) GenerateJSON(_ context.Context, _, _, user string, out any) (models.TokenUsage, error) {
	g.user = user
	if g.err != nil {
		return g.usage, g.err
	}
	*(out.(*models.ReportInfo)) = g.info
	return g.usage, nil
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func snapshot(ticker string) *models.MarketSnapshot {
	return models.NewDefaultSnapshot(models.TickerQuery{Ticker: ticker, StartDate: "2024-01-01", EndDate: "2024-01-31"})
}

func TestWritePromptContainsOnlyPopulatedSlots(t *testing.T) {
	gen := &fakeGen{
		info:  models.ReportInfo{CompanyName: "Acme Corp", Report: "# Acme"},
		usage: models.TokenUsage{TotalTokens: 4000},
	}
	w := New(gen, testLogger(t))

	bundle := &models.AggregatedBundle{
		Primary:   snapshot("ACME"),
		Benchmark: snapshot("^GSPC"),
		Profile:   &models.ProfileData{Name: "Acme Corp"},
	}

	info, usage, err := w.Write(context.Background(), "ACME", bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CompanyName != "Acme Corp" || info.Report != "# Acme" {
		t.Fatalf("unexpected report %+v", info)
	}
	if usage.TotalTokens != 4000 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	for _, want := range []string{"Market Data:", "S&P 500 Benchmark Data:", "Company Profile Data:"} {
		if !strings.Contains(gen.user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.user)
		}
	}
	for _, absent := range []string{"Sector Index Data:", "Startup Database Data:"} {
		if strings.Contains(gen.user, absent) {
			t.Fatalf("prompt should not contain %q:\n%s", absent, gen.user)
		}
	}
}

func TestWriteEmptyProfileOmitted(t *testing.T) {
	gen := &fakeGen{info: models.ReportInfo{Report: "# r"}}
	w := New(gen, testLogger(t))

	bundle := &models.AggregatedBundle{
		Primary: snapshot("ACME"),
		Profile: &models.ProfileData{},
	}
	if _, _, err := w.Write(context.Background(), "ACME", bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(gen.user, "Company Profile Data:") {
		t.Fatalf("all-absent profile should be omitted:\n%s", gen.user)
	}
}

func TestWritePropagatesGenerationError(t *testing.T) {
	gen := &fakeGen{err: errors.New("model down"), usage: models.TokenUsage{TotalTokens: 50}}
	w := New(gen, testLogger(t))

	_, usage, err := w.Write(context.Background(), "ACME", &models.AggregatedBundle{Primary: snapshot("ACME")})
	if err == nil {
		t.Fatal("expected error")
	}
	if usage.TotalTokens != 50 {
		t.Fatalf("usage must be reported even on failure, got %+v", usage)
	}
}
