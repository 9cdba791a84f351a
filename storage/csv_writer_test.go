package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"market-screener/models"
)

func TestWriteListingsCSV(t *testing.T) {
	price := 649.0
	cond := "Sehr gut - Refurbished"
	seller := models.SellerCommercial
	set := &models.ListingSet{Listings: []models.NormalizedListing{
		{Title: "MacBook Air", Price: &price, Condition: &cond, SellerType: &seller},
		{Title: "MacBook Air, defekt"},
	}}

	var buf bytes.Buffer
	if err := WriteListingsCSV(&buf, "macbook air", set); err != nil {
		t.Fatalf("WriteListingsCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	want := []string{"macbook air", "MacBook Air", "649.00", "Sehr gut - Refurbished", "commercial"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("row 1 col %d: got %q, want %q", i, rows[1][i], want[i])
		}
	}
	if rows[2][1] != "MacBook Air, defekt" || rows[2][2] != "" || rows[2][4] != "" {
		t.Errorf("row 2: got %v, want empty nullable columns", rows[2])
	}
}

func TestCSVWriterAppendsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	for _, q := range []string{"a", "b"} {
		res := &models.AnalysisResult{Query: q, Listings: &models.ListingSet{
			Listings: []models.NormalizedListing{{Title: q + "-1"}},
		}}
		if err := w.Write(context.Background(), res); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("rows: got %d, want header + 2", len(rows))
	}
}
