package analysis

import "strings"

// Sentiment is a predicted sentiment label as emitted by the predictor.
type Sentiment string

const (
	Positive Sentiment = "Positivo"
	Negative Sentiment = "Negativo"
	Neutral  Sentiment = "Neutro"
)

// AllSentiments returns the fixed, ordered sentiment set used by dense views.
func AllSentiments() []Sentiment {
	return []Sentiment{Positive, Negative, Neutral}
}

// SentimentLabels returns AllSentiments as strings.
func SentimentLabels() []string {
	out := make([]string, 0, 3)
	for _, s := range AllSentiments() {
		out = append(out, string(s))
	}
	return out
}

// Valid reports whether s is one of the known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Negative, Neutral:
		return true
	}
	return false
}

// ModelType identifies the predictor algorithm requested by the client.
type ModelType string

const (
	ModelSVM ModelType = "svm"
	ModelNB  ModelType = "nb"
	ModelLR  ModelType = "lr"
)

// AllModelTypes returns the fixed, ordered model set used by dense views.
func AllModelTypes() []ModelType {
	return []ModelType{ModelSVM, ModelNB, ModelLR}
}

// ModelLabels returns AllModelTypes as strings.
func ModelLabels() []string {
	out := make([]string, 0, 3)
	for _, m := range AllModelTypes() {
		out = append(out, string(m))
	}
	return out
}

// Valid reports whether m is a known algorithm.
func (m ModelType) Valid() bool {
	switch m {
	case ModelSVM, ModelNB, ModelLR:
		return true
	}
	return false
}

// ParseModelType trims and lowercases s and validates the result.
func ParseModelType(s string) (ModelType, error) {
	m := ModelType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrUnknownModel
	}
	return m, nil
}
