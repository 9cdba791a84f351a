package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"market-screener/models"
)

// Runs only against a real database: POSTGRES_TEST_DSN="host=localhost ... sslmode=disable".
func TestPostgresWriterArchivesRun(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	pw, err := NewPostgresWriter(dsn)
	if err != nil {
		t.Fatalf("NewPostgresWriter: %v", err)
	}
	defer pw.Close()

	res := sampleResult("macbook")
	res.RunID = uuid.NewString()
	res.StartedAt = time.Now().Add(-time.Minute)
	res.FinishedAt = time.Now()
	res.Posts = []models.ScoredPost{{SocialPost: models.SocialPost{ID: "abc", Title: "love it"}, Sentiment: 0.6, Label: models.SentimentPositive}}

	if err := pw.Write(context.Background(), res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var n int
	if err := pw.db.QueryRow(`SELECT COUNT(*) FROM run_listings WHERE run_id = $1`, res.RunID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("archived listings: got %d, want 1", n)
	}
}
