// Package loadgen drives a running sentiment gateway with generated
// analyses and checks that what it reports matches what it stored.
package loadgen

import (
	"errors"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string        // Base URL of the gateway
	Requests int           // Number of analyses to submit
	Workers  int           // Number of concurrent workers
	Timeout  time.Duration // HTTP request timeout
	Seed     int64         // Seed for text and model selection; 0 picks one from the clock
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid load config")

// Validate checks the config before a run.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Requests <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("requests must be positive"))
	case c.Workers <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.Timeout <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("timeout must be positive"))
	}
	return nil
}

// Request is one generated analysis.
type Request struct {
	Text      string `json:"text"`
	Algorithm string `json:"algorithm"`
}

// Stats holds the outcome of a run.
type Stats struct {
	Submitted   int64
	Succeeded   int64
	Unavailable int64
	RateLimited int64
	Failed      int64

	StoredBefore int64
	StoredAfter  int64

	Duration time.Duration
}

// Stored is the number of records the run added according to the gateway.
func (s Stats) Stored() int64 { return s.StoredAfter - s.StoredBefore }
