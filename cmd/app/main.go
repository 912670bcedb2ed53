package main

import (
	"context"
	"flag"
	"log"
	"os"

	"MarketBrief/internal/di"
	"MarketBrief/internal/domain/models"
	"MarketBrief/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	ticker := flag.String("ticker", "", "run one report for this ticker and exit")
	pastDays := flag.Int("days", 0, "lookback window in days (0 uses the configured default)")
	serve := flag.Bool("serve", false, "start the HTTP server and job queue")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *serve {
		if err := app.Run(); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}
		return
	}

	if *ticker == "" {
		log.Fatal("either -serve or -ticker is required")
	}
	if err := app.RunOnce(context.Background(), models.RunInput{
		CompanyTicker: *ticker,
		PastDays:      *pastDays,
	}); err != nil {
		log.Printf("report run failed: %v", err)
		os.Exit(1)
	}
}
