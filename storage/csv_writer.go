package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"market-screener/models"
)

var csvHeader = []string{"query", "title", "price", "condition", "seller_type"}

// CSVWriter appends normalized listings of every run to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends the run's listings.
func (c *CSVWriter) Write(_ context.Context, res *models.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeRows(c.writer, res.Query, res.Listings); err != nil {
		return err
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteListingsCSV renders a listing set as CSV, header included.
func WriteListingsCSV(w io.Writer, query string, set *models.ListingSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	if err := writeRows(cw, query, set); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeRows(cw *csv.Writer, query string, set *models.ListingSet) error {
	if set == nil {
		return nil
	}
	for _, l := range set.Listings {
		row := []string{query, l.Title, "", "", ""}
		if l.Price != nil {
			row[2] = strconv.FormatFloat(*l.Price, 'f', 2, 64)
		}
		if l.Condition != nil {
			row[3] = *l.Condition
		}
		if l.SellerType != nil {
			row[4] = string(*l.SellerType)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	return nil
}
