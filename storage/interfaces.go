package storage

import (
	"context"

	"market-screener/models"
)

// ResultWriter is the interface any archive sink for finished runs must satisfy.
type ResultWriter interface {
	Write(ctx context.Context, res *models.AnalysisResult) error
	Close() error
}

// ResultCache keeps finished runs so repeated queries skip collection.
type ResultCache interface {
	Get(ctx context.Context, query string) (*models.AnalysisResult, bool, error)
	Put(ctx context.Context, query string, res *models.AnalysisResult) error
	Reset(ctx context.Context) error
	Close() error
}
