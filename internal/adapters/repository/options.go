package repository

import (
	"time"

	"github.com/okian/sentiment/pkg/logger"
)

// Clock supplies record creation times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Option configures a GormStore.
type Option func(*GormStore)

// WithClock overrides the source of CreatedAt.
func WithClock(c Clock) Option {
	return func(s *GormStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger routes store and SQL logging to l.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns bounds idle pooled connections.
func WithMaxIdleConns(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.maxIdleConns = n
		}
	}
}

// WithConnMaxLifetime recycles pooled connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithSlowQueryThreshold logs queries slower than d as warnings.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.slowThreshold = d
		}
	}
}
