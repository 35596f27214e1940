// Package analysis contains the sentiment analysis domain model shared by the
// orchestrator, the store and the analytics views.
package analysis

import (
	"strings"
	"time"
)

// Record is one persisted input/outcome pair. Records are append-only: the
// store assigns ID and CreatedAt on insert and nothing mutates them after.
type Record struct {
	ID           int64
	OriginalText string
	ModelType    string
	Prediction   string
	Probability  float64
	Language     *string
	CreatedAt    time.Time
}

// Request is an inbound analysis request.
type Request struct {
	Text      string
	ModelType ModelType
}

// Validate checks the request before any remote call is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if !r.ModelType.Valid() {
		return ErrUnknownModel
	}
	return nil
}

// Prediction is what the remote predictor returned for one text.
type Prediction struct {
	Label       string
	Probability float64
	Language    *string
	Algorithm   string
}

// NewRecord builds the record persisted for a successful prediction. ID and
// CreatedAt are left for the store.
func NewRecord(req Request, p Prediction) *Record {
	return &Record{
		OriginalText: req.Text,
		ModelType:    string(req.ModelType),
		Prediction:   p.Label,
		Probability:  p.Probability,
		Language:     p.Language,
	}
}

// PageRequest selects a page of history, newest first. Page is zero based.
type PageRequest struct {
	Page int
	Size int
}

// Page is a slice of history plus paging totals.
type Page struct {
	Records       []Record
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

// Normalize clamps the request into [0, ...] pages of [1, maxSize] records.
func (p PageRequest) Normalize(maxSize int) PageRequest {
	if maxSize <= 0 {
		maxSize = 1
	}
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// Offset is the number of records skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// TotalPages returns how many pages of size hold total records.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

const defaultPageSize = 20
