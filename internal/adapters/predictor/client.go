// Package predictor is the HTTP client of the remote sentiment inference
// service.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
	"github.com/okian/sentiment/pkg/metrics"
)

const predictPath = "/predict"

type predictRequest struct {
	Text      string `json:"text"`
	Algorithm string `json:"algorithm"`
}

type predictResponse struct {
	Previsao      *string  `json:"previsao"`
	Probabilidade *float64 `json:"probabilidade"`
	Idioma        *string  `json:"idioma"`
	Algoritmo     string   `json:"algoritmo"`
}

// Client calls POST {baseURL}/predict. One Client is shared by all requests;
// it is safe for concurrent use. Calls are never retried.
type Client struct {
	rest           *resty.Client
	log            logger.Logger
	connectTimeout time.Duration
	requestTimeout time.Duration
	maxConnections int
}

// New builds a Client for the predictor rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		log:            logger.Nop(),
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
		maxConnections: defaultMaxConnections,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   c.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       c.maxConnections,
		MaxIdleConns:          c.maxConnections,
		MaxIdleConnsPerHost:   c.maxConnections,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: c.requestTimeout,
	}

	c.rest = resty.New().
		SetTransport(transport).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(c.requestTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return c
}

// HTTPClient exposes the underlying *http.Client, e.g. for transport mocks.
func (c *Client) HTTPClient() *http.Client {
	return c.rest.GetClient()
}

// Predict sends one text to the predictor. Every failure is an *Error.
func (c *Client) Predict(ctx context.Context, text string, model analysis.ModelType) (analysis.Prediction, error) {
	start := time.Now()
	p, err := c.predict(ctx, text, model)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		c.log.Warn(ctx, "predictor call failed",
			logger.String("model", string(model)),
			logger.String("kind", outcome),
			logger.Duration("took", time.Since(start)),
			logger.Error(err))
	} else {
		c.log.Debug(ctx, "predictor call ok",
			logger.String("model", string(model)),
			logger.String("label", p.Label),
			logger.Float64("probability", p.Probability),
			logger.Duration("took", time.Since(start)))
	}
	metrics.RecordPredictorRequest(outcome, time.Since(start).Seconds())
	return p, err
}

func (c *Client) predict(ctx context.Context, text string, model analysis.ModelType) (analysis.Prediction, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(predictRequest{Text: text, Algorithm: string(model)}).
		Post(predictPath)
	if err != nil {
		return analysis.Prediction{}, classify(ctx, err)
	}

	status := resp.StatusCode()
	switch {
	case status >= 400 && status < 500:
		return analysis.Prediction{}, &Error{Kind: KindRemoteClient, StatusCode: status, Body: truncate(resp.Body())}
	case status < 200 || status >= 300:
		return analysis.Prediction{}, &Error{Kind: KindRemoteServer, StatusCode: status, Body: truncate(resp.Body())}
	}

	var out predictResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return analysis.Prediction{}, &Error{Kind: KindParse, Err: err}
	}
	if out.Previsao == nil || strings.TrimSpace(*out.Previsao) == "" {
		return analysis.Prediction{}, &Error{Kind: KindParse, Err: errors.New("missing previsao")}
	}
	if out.Probabilidade == nil {
		return analysis.Prediction{}, &Error{Kind: KindParse, Err: errors.New("missing probabilidade")}
	}

	p := analysis.Prediction{
		Label:       *out.Previsao,
		Probability: *out.Probabilidade,
		Algorithm:   out.Algoritmo,
	}
	if out.Idioma != nil && *out.Idioma != "" {
		lang := *out.Idioma
		p.Language = &lang
	}
	return p, nil
}

// classify maps a transport error to an *Error.
func classify(ctx context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	}
	// Refused or reset connections, DNS failures and anything else below HTTP.
	return &Error{Kind: KindConnection, Err: err}
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
