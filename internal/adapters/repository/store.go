// Package repository persists analysis records and answers the grouped
// queries the analytics views are built from.
package repository

import (
	"context"

	"github.com/okian/sentiment/internal/domain/analysis"
)

// Store is the append-only analysis record store. Every failure is a
// *StoreError.
type Store interface {
	// Insert persists rec and sets its ID and CreatedAt. On error nothing is
	// persisted.
	Insert(ctx context.Context, rec *analysis.Record) error

	// FindPage returns records newest first.
	FindPage(ctx context.Context, req analysis.PageRequest) (analysis.Page, error)

	CountTotal(ctx context.Context) (int64, error)
	CountByPrediction(ctx context.Context, label string) (int64, error)
	CountByModelType(ctx context.Context, model string) (int64, error)

	// CountByConfidence splits records at threshold (inclusive on the high side).
	CountByConfidence(ctx context.Context, threshold float64) (analysis.ConfidenceSplit, error)
	// CountByTextLength buckets texts: short < shortMax <= medium <= longMin < long.
	CountByTextLength(ctx context.Context, shortMax, longMin int) (analysis.LengthBuckets, error)

	// LanguageCounts groups by language, skipping records without one.
	LanguageCounts(ctx context.Context) ([]analysis.LabelCount, error)
	// HourlyCounts groups by creation hour, labels "00".."23". Sparse.
	HourlyCounts(ctx context.Context) ([]analysis.LabelCount, error)
	// DailyCounts groups by creation day, labels "2006-01-02", ascending. Sparse.
	DailyCounts(ctx context.Context) ([]analysis.LabelCount, error)
	// ModelSentimentCounts groups by model and predicted label. Sparse.
	ModelSentimentCounts(ctx context.Context) ([]analysis.ModelSentimentCount, error)
	// AverageConfidence averages probability per predicted label in labels.
	AverageConfidence(ctx context.Context, labels []string) ([]analysis.LabelAverage, error)

	Ping(ctx context.Context) error
	Close() error
}
