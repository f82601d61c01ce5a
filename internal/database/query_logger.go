package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowQuery is the duration above which a statement logs as slow.
const DefaultSlowQuery = 200 * time.Millisecond

// QueryLogger sends GORM output to slog. Failed statements log as errors,
// slow ones as warnings, and every statement at debug when the level is Info.
type QueryLogger struct {
	log       *slog.Logger
	level     logger.LogLevel
	slowAfter time.Duration
}

// NewQueryLogger returns a QueryLogger at warn level. A nil l falls back to
// slog.Default.
func NewQueryLogger(l *slog.Logger) *QueryLogger {
	if l == nil {
		l = slog.Default()
	}
	return &QueryLogger{
		log:       l.With(slog.String("component", "gorm")),
		level:     logger.Warn,
		slowAfter: DefaultSlowQuery,
	}
}

// LogMode returns a copy at the given level.
func (q *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *QueryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	q.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (q *QueryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	q.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (q *QueryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	q.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (q *QueryLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, args []interface{}) {
	if q.level < min {
		return
	}
	q.log.Log(ctx, level, fmt.Sprintf(msg, args...))
}

// Trace is called by GORM after every statement.
func (q *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case q.slowAfter > 0 && elapsed > q.slowAfter && q.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case q.level >= logger.Info:
		level, msg = slog.LevelDebug, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil && level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, level, msg, attrs...)
}
