package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"market-screener/config"
	"market-screener/models"
	"market-screener/utils"
)

func TestBuildPipelineReleasesResources(t *testing.T) {
	mr := miniredis.RunT(t)
	csvPath := filepath.Join(t.TempDir(), "listings.csv")
	cfg := &config.Config{
		MarketplaceURL: "https://www.ebay.de/",
		PageCap:        30,
		WaitTimeout:    time.Second,
		RedisAddr:      mr.Addr(),
		CacheTTL:       time.Minute,
		CSVOutputPath:  csvPath,
	}
	logger := utils.NewLoggerTo(io.Discard, utils.LevelError)

	p, closeAll, err := buildPipeline(cfg, logger)
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	if p.Posts != nil || p.PostsError == nil {
		t.Error("expected social sentiment disabled without credentials")
	}
	if len(p.Sinks) != 1 {
		t.Fatalf("sinks: got %d, want the CSV writer", len(p.Sinks))
	}

	res := &models.AnalysisResult{Query: "ps5", Listings: &models.ListingSet{
		Listings: []models.NormalizedListing{{Title: "PS5"}},
	}}
	if err := p.Sinks[0].Write(context.Background(), res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	closeAll()

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "ps5,PS5") {
		t.Errorf("CSV not flushed on close: %q", data)
	}
	if _, _, err := p.Cache.Get(context.Background(), "ps5"); err == nil {
		t.Error("expected the Redis cache to be closed")
	}
}
