package analysis

// ChartData is a labelled series of counts. Labels and Values always have
// the same length.
type ChartData struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// RatioChartData is a labelled series of fractional values.
type RatioChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Dataset is one stacked series.
type Dataset struct {
	Label string  `json:"label"`
	Data  []int64 `json:"data"`
}

// StackedChartData is a dense matrix: one Dataset per series label, each with
// one value per entry of Labels.
type StackedChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// KPIs are headline numbers over the whole history.
type KPIs struct {
	Total                int64   `json:"total"`
	PositivityPercentage float64 `json:"positivityPercentage"`
}

// LabelCount is one row of a grouped count query.
type LabelCount struct {
	Label string
	Count int64
}

// LabelAverage is one row of a grouped average query.
type LabelAverage struct {
	Label   string
	Average float64
}

// ModelSentimentCount is one row of the model x sentiment cross count.
type ModelSentimentCount struct {
	Model     string
	Sentiment string
	Count     int64
}

// LengthBuckets holds counts of texts by length class.
type LengthBuckets struct {
	Short  int64
	Medium int64
	Long   int64
}

// ConfidenceSplit holds counts above and below the high confidence threshold.
type ConfidenceSplit struct {
	High int64
	Rest int64
}

// DenseChart builds a ChartData over keys, taking counts from rows and
// filling missing keys with zero. Rows whose label is not in keys are dropped.
func DenseChart(keys []string, rows []LabelCount) ChartData {
	idx := make(map[string]int64, len(rows))
	for _, r := range rows {
		idx[r.Label] += r.Count
	}
	out := ChartData{Labels: make([]string, len(keys)), Values: make([]int64, len(keys))}
	for i, k := range keys {
		out.Labels[i] = k
		out.Values[i] = idx[k]
	}
	return out
}
