package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/sentiment/internal/adapters/repository"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
	"github.com/okian/sentiment/pkg/metrics"
)

const (
	dayLayout = "2006-01-02"

	defaultHighConfidence = 0.9
	defaultShortTextMax   = 50
	defaultLongTextMin    = 140
)

// Aggregator computes the analytics views. Every call reads the store afresh;
// nothing is cached and no two calls share a snapshot.
type Aggregator struct {
	store repository.Store

	highConfidence float64
	shortMax       int
	longMin        int
	emptyOnError   bool

	logger logger.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithHighConfidence sets the inclusive lower bound of the high confidence bucket.
func WithHighConfidence(threshold float64) AggregatorOption {
	return func(a *Aggregator) {
		if threshold >= 0 && threshold <= 1 {
			a.highConfidence = threshold
		}
	}
}

// WithTextLengthBounds sets the short and long text bucket bounds.
func WithTextLengthBounds(shortMax, longMin int) AggregatorOption {
	return func(a *Aggregator) {
		if shortMax > 0 && longMin >= shortMax {
			a.shortMax = shortMax
			a.longMin = longMin
		}
	}
}

// WithEmptyOnError makes store failures yield empty or zero-filled views
// instead of errors.
func WithEmptyOnError(enabled bool) AggregatorOption {
	return func(a *Aggregator) {
		a.emptyOnError = enabled
	}
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(l logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator builds an Aggregator reading from store.
func NewAggregator(store repository.Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:          store,
		highConfidence: defaultHighConfidence,
		shortMax:       defaultShortTextMax,
		longMin:        defaultLongTextMin,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Distribution counts records per sentiment, always over all sentiments.
func (a *Aggregator) Distribution(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("distribution", time.Now())
	labels := analysis.SentimentLabels()
	out := zeroChart(labels)
	for i, l := range labels {
		n, err := a.store.CountByPrediction(ctx, l)
		if err != nil {
			return a.fallbackChart(ctx, "distribution", zeroChart(labels), err)
		}
		out.Values[i] = n
	}
	return out, nil
}

// ModelUsage counts records per model, always over all models.
func (a *Aggregator) ModelUsage(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("models", time.Now())
	labels := analysis.ModelLabels()
	out := zeroChart(labels)
	for i, l := range labels {
		n, err := a.store.CountByModelType(ctx, l)
		if err != nil {
			return a.fallbackChart(ctx, "models", zeroChart(labels), err)
		}
		out.Values[i] = n
	}
	return out, nil
}

// KPIs returns the total and the share of positive records in percent. The
// share is 0 when there are no records.
func (a *Aggregator) KPIs(ctx context.Context) (analysis.KPIs, error) {
	defer a.observe("kpis", time.Now())
	total, err := a.store.CountTotal(ctx)
	if err != nil {
		return analysis.KPIs{}, a.fallback(ctx, "kpis", err)
	}
	positive, err := a.store.CountByPrediction(ctx, string(analysis.Positive))
	if err != nil {
		return analysis.KPIs{}, a.fallback(ctx, "kpis", err)
	}
	return analysis.KPIs{Total: total, PositivityPercentage: percentage(positive, total)}, nil
}

// LanguageDistribution counts records per detected language. Records without
// a language are left out.
func (a *Aggregator) LanguageDistribution(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("languages", time.Now())
	rows, err := a.store.LanguageCounts(ctx)
	if err != nil {
		return a.fallbackChart(ctx, "languages", zeroChart(nil), err)
	}
	out := zeroChart(nil)
	for _, r := range rows {
		out.Labels = append(out.Labels, r.Label)
		out.Values = append(out.Values, r.Count)
	}
	return out, nil
}

// HourlyDistribution counts records per hour of day: exactly 24 buckets
// labelled "00" to "23".
func (a *Aggregator) HourlyDistribution(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("hourly", time.Now())
	rows, err := a.store.HourlyCounts(ctx)
	if err != nil {
		return a.fallbackChart(ctx, "hourly", zeroChart(hourLabels()), err)
	}
	return analysis.DenseChart(hourLabels(), rows), nil
}

// SentimentByModel returns one dataset per sentiment with one value per model.
func (a *Aggregator) SentimentByModel(ctx context.Context) (analysis.StackedChartData, error) {
	defer a.observe("sentiment_by_model", time.Now())
	rows, err := a.store.ModelSentimentCounts(ctx)
	if err != nil {
		if ferr := a.fallback(ctx, "sentiment_by_model", err); ferr != nil {
			return analysis.StackedChartData{}, ferr
		}
		rows = nil
	}

	models := analysis.ModelLabels()
	sentiments := analysis.SentimentLabels()
	col := make(map[string]int, len(models))
	for i, m := range models {
		col[m] = i
	}
	series := make(map[string][]int64, len(sentiments))
	out := analysis.StackedChartData{Labels: models, Datasets: make([]analysis.Dataset, 0, len(sentiments))}
	for _, s := range sentiments {
		data := make([]int64, len(models))
		series[s] = data
		out.Datasets = append(out.Datasets, analysis.Dataset{Label: s, Data: data})
	}
	for _, r := range rows {
		data, ok := series[r.Sentiment]
		i, known := col[r.Model]
		if ok && known {
			data[i] += r.Count
		}
	}
	return out, nil
}

// ConfidenceLevels splits records into high confidence and the rest.
func (a *Aggregator) ConfidenceLevels(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("confidence", time.Now())
	labels := []string{
		fmt.Sprintf("Alta (>%d%%)", int(math.Round(a.highConfidence*100))),
		"Média/Baixa",
	}
	split, err := a.store.CountByConfidence(ctx, a.highConfidence)
	if err != nil {
		return a.fallbackChart(ctx, "confidence", zeroChart(labels), err)
	}
	return analysis.ChartData{Labels: labels, Values: []int64{split.High, split.Rest}}, nil
}

// FeedbackLength buckets records by text length.
func (a *Aggregator) FeedbackLength(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("feedback_length", time.Now())
	labels := []string{
		fmt.Sprintf("Curtos (<%d)", a.shortMax),
		fmt.Sprintf("Médios (%d-%d)", a.shortMax, a.longMin),
		fmt.Sprintf("Longos (>%d)", a.longMin),
	}
	b, err := a.store.CountByTextLength(ctx, a.shortMax, a.longMin)
	if err != nil {
		return a.fallbackChart(ctx, "feedback_length", zeroChart(labels), err)
	}
	return analysis.ChartData{Labels: labels, Values: []int64{b.Short, b.Medium, b.Long}}, nil
}

// Timeline counts records per day from the first to the last day with data.
// Days without records in between are present with 0.
func (a *Aggregator) Timeline(ctx context.Context) (analysis.ChartData, error) {
	defer a.observe("timeline", time.Now())
	rows, err := a.store.DailyCounts(ctx)
	if err != nil {
		return a.fallbackChart(ctx, "timeline", zeroChart(nil), err)
	}

	counts := make(map[string]int64, len(rows))
	var first, last time.Time
	for _, r := range rows {
		d, err := time.Parse(dayLayout, r.Label)
		if err != nil {
			a.logger.Warn(ctx, "skipping unparsable day", logger.String("day", r.Label), logger.Error(err))
			continue
		}
		counts[d.Format(dayLayout)] += r.Count
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}

	out := zeroChart(nil)
	if first.IsZero() {
		return out, nil
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		out.Labels = append(out.Labels, key)
		out.Values = append(out.Values, counts[key])
	}
	return out, nil
}

// AverageConfidenceBySentiment returns the mean probability per sentiment,
// 0 for sentiments without records.
func (a *Aggregator) AverageConfidenceBySentiment(ctx context.Context) (analysis.RatioChartData, error) {
	defer a.observe("average_confidence", time.Now())
	labels := analysis.SentimentLabels()
	out := analysis.RatioChartData{Labels: labels, Values: make([]float64, len(labels))}

	rows, err := a.store.AverageConfidence(ctx, labels)
	if err != nil {
		if ferr := a.fallback(ctx, "average_confidence", err); ferr != nil {
			return analysis.RatioChartData{}, ferr
		}
		return out, nil
	}
	avg := make(map[string]float64, len(rows))
	for _, r := range rows {
		avg[r.Label] = r.Average
	}
	for i, l := range labels {
		out.Values[i] = avg[l]
	}
	return out, nil
}

// fallback returns err unless empty-on-error is enabled, in which case it
// logs and returns nil.
func (a *Aggregator) fallback(ctx context.Context, view string, err error) error {
	if !a.emptyOnError {
		return err
	}
	a.logger.Warn(ctx, "analytics read failed, serving empty view",
		logger.String("view", view),
		logger.Error(err))
	return nil
}

func (a *Aggregator) fallbackChart(ctx context.Context, view string, empty analysis.ChartData, err error) (analysis.ChartData, error) {
	if ferr := a.fallback(ctx, view, err); ferr != nil {
		return analysis.ChartData{}, ferr
	}
	return empty, nil
}

func (a *Aggregator) observe(view string, start time.Time) {
	metrics.RecordAnalytics(view, time.Since(start).Seconds())
}

func zeroChart(labels []string) analysis.ChartData {
	out := analysis.ChartData{Labels: make([]string, len(labels)), Values: make([]int64, len(labels))}
	copy(out.Labels, labels)
	return out
}

func hourLabels() []string {
	out := make([]string, 24)
	for h := range out {
		out[h] = fmt.Sprintf("%02d", h)
	}
	return out
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
