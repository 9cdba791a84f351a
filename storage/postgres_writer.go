package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"market-screener/models"
)

// PostgresWriter archives finished runs to PostgreSQL. Nothing is read back
// by the pipeline; the tables are for offline analysis.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id          UUID         PRIMARY KEY,
			query           TEXT         NOT NULL,
			image_url       TEXT         NOT NULL DEFAULT '',
			pages           INTEGER      NOT NULL DEFAULT 0,
			overall_score   NUMERIC(6,4),
			overall_label   VARCHAR(16),
			mean_price      NUMERIC(12,2),
			median_price    NUMERIC(12,2),
			started_at      TIMESTAMPTZ  NOT NULL,
			finished_at     TIMESTAMPTZ  NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_listings (
			id          SERIAL PRIMARY KEY,
			run_id      UUID          NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			position    INTEGER       NOT NULL,
			title       TEXT          NOT NULL,
			price       NUMERIC(12,2),
			condition   TEXT,
			seller_type VARCHAR(16)
		);

		CREATE TABLE IF NOT EXISTS run_posts (
			id          SERIAL PRIMARY KEY,
			run_id      UUID          NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			post_id     TEXT          NOT NULL,
			title       TEXT          NOT NULL,
			sentiment   NUMERIC(6,4)  NOT NULL,
			label       VARCHAR(16)   NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_query          ON runs(query);
		CREATE INDEX IF NOT EXISTS idx_run_listings_run_id ON run_listings(run_id);
		CREATE INDEX IF NOT EXISTS idx_run_posts_run_id    ON run_posts(run_id);
	`)
	return err
}

// Write stores one run with its listings and posts in a single transaction.
func (pw *PostgresWriter) Write(ctx context.Context, res *models.AnalysisResult) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	var imageURL string
	var pages int
	if res.Listings != nil {
		imageURL, pages = res.Listings.ImageURL, res.Listings.Pages
	}
	var label *string
	if res.Sentiment.OverallLabel != nil {
		l := string(*res.Sentiment.OverallLabel)
		label = &l
	}
	var mean, median *float64
	if res.KPIs != nil {
		mean, median = res.KPIs.MeanPrice, res.KPIs.MedianPrice
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, query, image_url, pages, overall_score, overall_label,
		                  mean_price, median_price, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (run_id) DO NOTHING
	`, res.RunID, res.Query, imageURL, pages, res.Sentiment.OverallScore, label,
		mean, median, res.StartedAt, res.FinishedAt); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}

	if res.Listings != nil {
		const batchSize = 50
		all := res.Listings.Listings
		for i := 0; i < len(all); i += batchSize {
			end := min(i+batchSize, len(all))
			if err := insertListingBatch(ctx, tx, res.RunID, i, all[i:end]); err != nil {
				return err
			}
		}
	}

	for _, p := range res.Posts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_posts (run_id, post_id, title, sentiment, label)
			VALUES ($1,$2,$3,$4,$5)
		`, res.RunID, p.ID, p.Title, p.Sentiment, string(p.Label)); err != nil {
			return fmt.Errorf("postgres: insert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func insertListingBatch(ctx context.Context, tx *sql.Tx, runID string, offset int, batch []models.NormalizedListing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*6)

	for idx, l := range batch {
		base := idx * 6
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))

		var seller *string
		if l.SellerType != nil {
			s := string(*l.SellerType)
			seller = &s
		}
		valueArgs = append(valueArgs,
			runID, offset+idx, l.Title, l.Price, l.Condition, seller)
	}

	query := fmt.Sprintf(`
		INSERT INTO run_listings (run_id, position, title, price, condition, seller_type)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert listings: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
