// Package service orchestrates sentiment analysis requests: it calls the
// remote predictor, guards the store with the admission gate, persists the
// outcome and serves history and analytics over the stored records.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/sentiment/internal/adapters/repository"
	"github.com/okian/sentiment/internal/domain/admission"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
	"github.com/okian/sentiment/pkg/metrics"
)

const defaultMaxPageSize = 100

// Predictor is the remote inference call.
type Predictor interface {
	Predict(ctx context.Context, text string, model analysis.ModelType) (analysis.Prediction, error)
}

// Gate admits at most a fixed number of concurrent store writes.
type Gate interface {
	Do(fn func() error) error
	Stats() admission.Stats
}

// StageObserver is told about every lifecycle stage a request enters.
type StageObserver func(ctx context.Context, stage analysis.Stage)

// Service handles analysis requests.
type Service struct {
	mu sync.RWMutex

	predictor Predictor
	gate      Gate
	store     repository.Store

	maxPageSize int
	observer    StageObserver

	started   bool
	completed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxPageSize caps the history page size.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithStageObserver registers a callback for lifecycle stages.
func WithStageObserver(o StageObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// New constructs a Service over its three collaborators.
func New(p Predictor, g Gate, st repository.Store, opts ...Option) *Service {
	s := &Service{
		predictor:   p,
		gate:        g,
		store:       st,
		maxPageSize: defaultMaxPageSize,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service ready to take requests.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("service start: %w", err)
	}
	s.started = true
	st := s.gate.Stats()
	s.logger.Info(ctx, "sentiment service started",
		logger.Int("admission_capacity", st.Capacity),
		logger.Int("max_page_size", s.maxPageSize))
	return nil
}

// Stop closes the store. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "sentiment service stopped")
}

// CreateAnalysis predicts the sentiment of req and persists the outcome.
//
// Every failure after validation is an *UnavailableError (matching
// ErrUnavailable) and leaves no record behind. A prediction that cannot be
// persisted is discarded: the caller only sees results that were stored.
func (s *Service) CreateAnalysis(ctx context.Context, req analysis.Request) (analysis.Prediction, error) {
	if logger.RequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, uuid.NewString())
	}
	if err := req.Validate(); err != nil {
		return analysis.Prediction{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	lc := s.newLifecycle(ctx)
	start := time.Now()

	lc.to(analysis.StagePredicting)
	pred, err := s.predictor.Predict(ctx, req.Text, req.ModelType)
	if err != nil {
		return analysis.Prediction{}, s.unavailable(lc, analysis.StagePredictFailed, err)
	}
	lc.to(analysis.StagePredicted)

	lc.to(analysis.StagePersisting)
	if err := ctx.Err(); err != nil {
		return analysis.Prediction{}, s.unavailable(lc, analysis.StagePersistFailed, err)
	}

	rec := analysis.NewRecord(req, pred)
	err = s.gate.Do(func() error {
		return s.store.Insert(ctx, rec)
	})
	switch {
	case errors.Is(err, admission.ErrRejected):
		return analysis.Prediction{}, s.unavailable(lc, analysis.StagePersistRejected, err)
	case err != nil:
		return analysis.Prediction{}, s.unavailable(lc, analysis.StagePersistFailed, err)
	}

	lc.to(analysis.StageCompleted)
	s.completed.Add(1)
	metrics.RecordAnalysisCompleted()
	s.logger.Info(ctx, "analysis completed",
		logger.Int64("id", rec.ID),
		logger.String("model", rec.ModelType),
		logger.String("label", rec.Prediction),
		logger.Float64("probability", rec.Probability),
		logger.Duration("took", time.Since(start)))
	return pred, nil
}

func (s *Service) unavailable(lc *lifecycle, stage analysis.Stage, err error) error {
	lc.to(stage)
	s.failed.Add(1)
	metrics.RecordAnalysisFailed(string(stage))
	s.logger.Warn(lc.ctx, "analysis unavailable",
		logger.String("stage", string(stage)),
		logger.Error(err))
	return &UnavailableError{Stage: stage, Err: err}
}

// History returns a page of stored analyses, newest first.
func (s *Service) History(ctx context.Context, req analysis.PageRequest) (analysis.Page, error) {
	return s.store.FindPage(ctx, req.Normalize(s.maxPageSize))
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	return map[string]any{
		"started":     started,
		"completed":   s.completed.Load(),
		"unavailable": s.failed.Load(),
		"admission":   s.gate.Stats(),
		"maxPageSize": s.maxPageSize,
	}
}

// lifecycle tracks the stage of one request.
type lifecycle struct {
	ctx      context.Context
	stage    analysis.Stage
	log      logger.Logger
	observer StageObserver
}

func (s *Service) newLifecycle(ctx context.Context) *lifecycle {
	lc := &lifecycle{ctx: ctx, stage: analysis.StageReceived, log: s.logger, observer: s.observer}
	lc.notify()
	return lc
}

func (l *lifecycle) to(next analysis.Stage) {
	if !l.stage.CanTransition(next) {
		l.log.Error(l.ctx, "illegal stage transition",
			logger.String("from", string(l.stage)),
			logger.String("to", string(next)))
	}
	l.stage = next
	l.notify()
}

func (l *lifecycle) notify() {
	metrics.RecordStage(string(l.stage))
	l.log.Debug(l.ctx, "analysis stage", logger.String("stage", string(l.stage)))
	if l.observer != nil {
		l.observer(l.ctx, l.stage)
	}
}
