package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/sentiment/internal/app"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
)

const (
	unavailableLabel = "serviço_indisponivel"
	maxBodyBytes     = 1 << 20
)

// createRequest mirrors the request schema for POST /sentiment.
type createRequest struct {
	Text      string `json:"text"`
	Algorithm string `json:"algorithm"`
}

func (c createRequest) toDomain() (analysis.Request, error) {
	switch {
	case strings.TrimSpace(c.Text) == "":
		return analysis.Request{}, errors.New("o campo 'text' não pode estar vazio")
	case strings.TrimSpace(c.Algorithm) == "":
		return analysis.Request{}, errors.New("o campo 'algorithm' não pode estar vazio")
	}
	model, err := analysis.ParseModelType(c.Algorithm)
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{Text: c.Text, ModelType: model}, nil
}

type predictionResponse struct {
	Previsao      string  `json:"previsao"`
	Probabilidade float64 `json:"probabilidade"`
}

type historyItem struct {
	ID            int64     `json:"id"`
	Text          string    `json:"text"`
	ModelType     string    `json:"modelType"`
	Previsao      string    `json:"previsao"`
	Probabilidade float64   `json:"probabilidade"`
	Idioma        *string   `json:"idioma"`
	CreatedAt     time.Time `json:"createdAt"`
}

type historyResponse struct {
	Content       []historyItem `json:"content"`
	Page          int           `json:"page"`
	Size          int           `json:"size"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
}

// SentimentHandler handles analysis creation and history.
type SentimentHandler struct {
	deps   Analyzer
	logger logger.Logger
}

// NewSentimentHandler creates a new sentiment handler.
func NewSentimentHandler(deps Analyzer, l logger.Logger) *SentimentHandler {
	return &SentimentHandler{deps: deps, logger: l}
}

// HandleCreate handles POST /sentiment. Any failure past validation answers
// 503 with the unavailable placeholder body.
func (h *SentimentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	pred, err := h.deps.CreateAnalysis(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	case err != nil:
		if !errors.Is(err, service.ErrUnavailable) {
			h.logger.Error(r.Context(), "unexpected analysis failure", logger.Error(err))
		}
		writeJSON(w, http.StatusServiceUnavailable, predictionResponse{Previsao: unavailableLabel, Probabilidade: 0.0})
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{Previsao: pred.Label, Probabilidade: pred.Probability})
}

// HandleHistory handles GET /sentiment/history?page=&size=.
func (h *SentimentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	res, err := h.deps.History(r.Context(), analysis.PageRequest{Page: page, Size: size})
	if err != nil {
		h.logger.Error(r.Context(), "history query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("history unavailable"))
		return
	}

	out := historyResponse{
		Content:       make([]historyItem, 0, len(res.Records)),
		Page:          res.Page,
		Size:          res.Size,
		TotalElements: res.TotalElements,
		TotalPages:    res.TotalPages,
	}
	for _, rec := range res.Records {
		out.Content = append(out.Content, historyItem{
			ID:            rec.ID,
			Text:          rec.OriginalText,
			ModelType:     rec.ModelType,
			Previsao:      rec.Prediction,
			Probabilidade: rec.Probability,
			Idioma:        rec.Language,
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, key)
	}
	return n, nil
}
