package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/sentiment/pkg/logger"
)

// ErrMismatch is returned when the gateway stored a different number of
// records than it acknowledged.
var ErrMismatch = errors.New("stored records do not match acknowledged analyses")

type kpisResponse struct {
	Total int64 `json:"total"`
}

type predictionResponse struct {
	Previsao string `json:"previsao"`
}

// Runner submits generated analyses to a gateway.
type Runner struct {
	cfg    Config
	client *resty.Client
	log    logger.Logger
}

// NewRunner builds a Runner for cfg.
func NewRunner(cfg Config, l logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Nop()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Runner{cfg: cfg, client: client, log: l}, nil
}

// Run executes the complete load test: health check, baseline count,
// concurrent submission and verification.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	r.log.Info(ctx, "starting load run",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("requests", r.cfg.Requests),
		logger.Int("workers", r.cfg.Workers),
		logger.Duration("timeout", r.cfg.Timeout))

	if err := r.checkHealth(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	before, err := r.storedTotal(ctx)
	if err != nil {
		return stats, fmt.Errorf("baseline count failed: %w", err)
	}
	stats.StoredBefore = before

	r.submit(ctx, Generate(r.cfg.Requests, r.cfg.Seed), &stats)

	after, err := r.storedTotal(ctx)
	if err != nil {
		return stats, fmt.Errorf("final count failed: %w", err)
	}
	stats.StoredAfter = after
	stats.Duration = time.Since(start)

	r.report(ctx, stats)
	if stats.Stored() != stats.Succeeded {
		return stats, fmt.Errorf("%w: acknowledged %d, stored %d", ErrMismatch, stats.Succeeded, stats.Stored())
	}
	return stats, nil
}

func (r *Runner) checkHealth(ctx context.Context) error {
	resp, err := r.client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}

func (r *Runner) storedTotal(ctx context.Context) (int64, error) {
	var out kpisResponse
	resp, err := r.client.R().SetContext(ctx).SetResult(&out).Get("/sentiment/stats/kpis")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return out.Total, nil
}

// submit fans the requests out over a fixed worker pool.
func (r *Runner) submit(ctx context.Context, reqs []Request, stats *Stats) {
	var submitted, succeeded, unavailable, limited, failed atomic.Int64

	work := make(chan Request, r.cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				submitted.Add(1)
				switch r.submitOne(ctx, req) {
				case http.StatusOK:
					succeeded.Add(1)
				case http.StatusServiceUnavailable:
					unavailable.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, req := range reqs {
			select {
			case <-ctx.Done():
				return
			case work <- req:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = submitted.Load()
	stats.Succeeded = succeeded.Load()
	stats.Unavailable = unavailable.Load()
	stats.RateLimited = limited.Load()
	stats.Failed = failed.Load()
}

// submitOne returns the HTTP status, or 0 when the request never completed.
func (r *Runner) submitOne(ctx context.Context, req Request) int {
	var out predictionResponse
	resp, err := r.client.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/sentiment")
	if err != nil {
		r.log.Debug(ctx, "submit failed", logger.Error(err))
		return 0
	}
	return resp.StatusCode()
}

func (r *Runner) report(ctx context.Context, s Stats) {
	var perSecond float64
	if s.Duration > 0 {
		perSecond = float64(s.Submitted) / s.Duration.Seconds()
	}
	r.log.Info(ctx, "load run finished",
		logger.Int64("submitted", s.Submitted),
		logger.Int64("succeeded", s.Succeeded),
		logger.Int64("unavailable", s.Unavailable),
		logger.Int64("rateLimited", s.RateLimited),
		logger.Int64("failed", s.Failed),
		logger.Int64("stored", s.Stored()),
		logger.Duration("duration", s.Duration),
		logger.Float64("requestsPerSecond", perSecond))
}
