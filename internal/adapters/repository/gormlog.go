package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/sentiment/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger sends GORM output through the service logger. Statements are
// logged at debug, slow statements and failures at warn.
type gormLogger struct {
	log           logger.Logger
	slowThreshold time.Duration
}

func newGormLogger(l logger.Logger, slowThreshold time.Duration) *gormLogger {
	return &gormLogger{log: l, slowThreshold: slowThreshold}
}

// LogMode is a no-op; the level is owned by pkg/logger.
func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return g
}

func (g *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	g.log.Debug(ctx, fmt.Sprintf(msg, data...))
}

func (g *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	g.log.Warn(ctx, fmt.Sprintf(msg, data...))
}

func (g *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	g.log.Error(ctx, fmt.Sprintf(msg, data...))
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		g.log.Warn(ctx, "query error",
			logger.String("sql", sql),
			logger.Int64("rows_affected", rows),
			logger.Int64("duration_ms", elapsed.Milliseconds()),
			logger.Error(err))
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		g.log.Warn(ctx, "slow query",
			logger.String("sql", sql),
			logger.Int64("rows_affected", rows),
			logger.Int64("duration_ms", elapsed.Milliseconds()),
			logger.Duration("threshold", g.slowThreshold))
	default:
		g.log.Debug(ctx, "sql query",
			logger.String("sql", sql),
			logger.Int64("rows_affected", rows),
			logger.Int64("duration_ms", elapsed.Milliseconds()))
	}
}
