package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"market-screener/models"
)

func sampleResult(query string) *models.AnalysisResult {
	price := 12.5
	return &models.AnalysisResult{
		RunID: "run-1",
		Query: query,
		Listings: &models.ListingSet{
			Listings: []models.NormalizedListing{{Title: "A", Price: &price}},
			ImageURL: "https://i.ebayimg.com/a.jpg",
		},
	}
}

func TestCacheKeyNormalizes(t *testing.T) {
	if CacheKey("  MacBook   Air ") != CacheKey("macbook air") {
		t.Error("expected case and whitespace insensitive keys")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)

	if _, ok, _ := c.Get(ctx, "ps5"); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Put(ctx, "PS5", sampleResult("PS5")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "ps5")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.RunID != "run-1" {
		t.Errorf("RunID: got %q", got.RunID)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Put(ctx, "switch", sampleResult("switch"))
	now = now.Add(2 * time.Minute)

	if _, ok, _ := c.Get(ctx, "switch"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCacheReset(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	_ = c.Put(ctx, "a", sampleResult("a"))
	_ = c.Put(ctx, "b", sampleResult("b"))

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("expected miss after reset")
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(mr.Addr(), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.Get(ctx, "macbook"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Put(ctx, "MacBook", sampleResult("MacBook")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "macbook")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Listings.Len() != 1 || *got.Listings.Listings[0].Price != 12.5 {
		t.Errorf("decoded result mismatch: %+v", got.Listings)
	}
	if ttl := mr.TTL(redisKeyPrefix + "macbook"); ttl != time.Hour {
		t.Errorf("TTL: got %v, want 1h", ttl)
	}

	// Keys of other applications survive a reset.
	mr.Set("other:key", "keep")
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "macbook"); ok {
		t.Error("expected miss after reset")
	}
	if !mr.Exists("other:key") {
		t.Error("reset removed a foreign key")
	}
}
