package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/okian/sentiment/internal/adapters/repository"
	"github.com/okian/sentiment/internal/domain/analysis"
)

// memStore is an in-memory repository.Store.
type memStore struct {
	mu      sync.Mutex
	records []analysis.Record
	nextID  int64

	now       func() time.Time
	insertErr error
	readErr   error
	onInsert  func()
	inserts   atomic.Int64
	closed    bool
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{now: func() time.Time { return time.Now().UTC() }}
}

func (m *memStore) Insert(ctx context.Context, rec *analysis.Record) error {
	m.inserts.Add(1)
	if m.onInsert != nil {
		m.onInsert()
	}
	if err := ctx.Err(); err != nil {
		return &repository.StoreError{Op: "insert", Kind: repository.KindIO, Err: err}
	}
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = m.now()
	m.records = append(m.records, *rec)
	return nil
}

// add stores a record as-is, bypassing the clock.
func (m *memStore) add(text, model, label string, prob float64, lang *string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records = append(m.records, analysis.Record{
		ID: m.nextID, OriginalText: text, ModelType: model, Prediction: label,
		Probability: prob, Language: lang, CreatedAt: at.UTC(),
	})
}

func (m *memStore) snapshot() ([]analysis.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]analysis.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) count(match func(analysis.Record) bool) (int64, error) {
	recs, err := m.snapshot()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range recs {
		if match(r) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindPage(_ context.Context, req analysis.PageRequest) (analysis.Page, error) {
	recs, err := m.snapshot()
	if err != nil {
		return analysis.Page{}, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	page := analysis.Page{Page: req.Page, Size: req.Size, TotalElements: int64(len(recs)),
		TotalPages: analysis.TotalPages(int64(len(recs)), req.Size), Records: []analysis.Record{}}
	from := req.Offset()
	if from < len(recs) {
		to := min(from+req.Size, len(recs))
		page.Records = recs[from:to]
	}
	return page, nil
}

func (m *memStore) CountTotal(context.Context) (int64, error) {
	return m.count(func(analysis.Record) bool { return true })
}

func (m *memStore) CountByPrediction(_ context.Context, label string) (int64, error) {
	return m.count(func(r analysis.Record) bool { return r.Prediction == label })
}

func (m *memStore) CountByModelType(_ context.Context, model string) (int64, error) {
	return m.count(func(r analysis.Record) bool { return r.ModelType == model })
}

func (m *memStore) CountByConfidence(_ context.Context, threshold float64) (analysis.ConfidenceSplit, error) {
	recs, err := m.snapshot()
	if err != nil {
		return analysis.ConfidenceSplit{}, err
	}
	var out analysis.ConfidenceSplit
	for _, r := range recs {
		if r.Probability >= threshold {
			out.High++
		} else {
			out.Rest++
		}
	}
	return out, nil
}

func (m *memStore) CountByTextLength(_ context.Context, shortMax, longMin int) (analysis.LengthBuckets, error) {
	recs, err := m.snapshot()
	if err != nil {
		return analysis.LengthBuckets{}, err
	}
	var out analysis.LengthBuckets
	for _, r := range recs {
		switch n := utf8.RuneCountInString(r.OriginalText); {
		case n < shortMax:
			out.Short++
		case n > longMin:
			out.Long++
		default:
			out.Medium++
		}
	}
	return out, nil
}

func (m *memStore) group(key func(analysis.Record) (string, bool)) ([]analysis.LabelCount, error) {
	recs, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, r := range recs {
		if k, ok := key(r); ok {
			counts[k]++
		}
	}
	out := make([]analysis.LabelCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, analysis.LabelCount{Label: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *memStore) LanguageCounts(context.Context) ([]analysis.LabelCount, error) {
	return m.group(func(r analysis.Record) (string, bool) {
		if r.Language == nil {
			return "", false
		}
		return *r.Language, true
	})
}

func (m *memStore) HourlyCounts(context.Context) ([]analysis.LabelCount, error) {
	return m.group(func(r analysis.Record) (string, bool) {
		return fmt.Sprintf("%02d", r.CreatedAt.UTC().Hour()), true
	})
}

func (m *memStore) DailyCounts(context.Context) ([]analysis.LabelCount, error) {
	return m.group(func(r analysis.Record) (string, bool) {
		return r.CreatedAt.UTC().Format("2006-01-02"), true
	})
}

func (m *memStore) ModelSentimentCounts(context.Context) ([]analysis.ModelSentimentCount, error) {
	recs, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	type key struct{ model, sentiment string }
	counts := map[key]int64{}
	for _, r := range recs {
		counts[key{r.ModelType, r.Prediction}]++
	}
	out := make([]analysis.ModelSentimentCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, analysis.ModelSentimentCount{Model: k.model, Sentiment: k.sentiment, Count: v})
	}
	return out, nil
}

func (m *memStore) AverageConfidence(_ context.Context, labels []string) ([]analysis.LabelAverage, error) {
	recs, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, l := range labels {
		want[l] = true
	}
	sum := map[string]float64{}
	n := map[string]float64{}
	for _, r := range recs {
		if want[r.Prediction] {
			sum[r.Prediction] += r.Probability
			n[r.Prediction]++
		}
	}
	out := make([]analysis.LabelAverage, 0, len(sum))
	for l, s := range sum {
		out = append(out, analysis.LabelAverage{Label: l, Average: s / n[l]})
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &repository.StoreError{Op: "ping", Kind: repository.KindIO, Err: fmt.Errorf("closed")}
	}
	return nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// fakePredictor answers with fn, or with a fixed positive prediction.
type fakePredictor struct {
	fn    func(ctx context.Context, text string, model analysis.ModelType) (analysis.Prediction, error)
	calls atomic.Int64
}

func (f *fakePredictor) Predict(ctx context.Context, text string, model analysis.ModelType) (analysis.Prediction, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, text, model)
	}
	return analysis.Prediction{Label: "Positivo", Probability: 0.97, Algorithm: string(model)}, nil
}

func strPtr(s string) *string { return &s }
