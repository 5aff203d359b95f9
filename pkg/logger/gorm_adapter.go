package logger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's query log through the context logger, so SQL
// lines carry the request id of the settlement call that issued them.
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger logs errors and slow queries (over 200ms) only.
func NewGormLogger() *GormLogger {
	return &GormLogger{SlowThreshold: 200 * time.Millisecond, LogLevel: gormlogger.Warn}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		Info(ctx).Msgf(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		Warn(ctx).Msgf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		Error(ctx).Msgf(msg, data...)
	}
}

// Trace picks one event per statement: failed, slow, or plain.
// ErrRecordNotFound is an expected miss for store lookups and is not an error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if l.LogLevel >= gormlogger.Error {
			ev = Error(ctx).Err(err)
		}
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold:
		if l.LogLevel >= gormlogger.Warn {
			ev = Warn(ctx).Dur("threshold", l.SlowThreshold).Bool("slow_query", true)
		}
	default:
		if l.LogLevel >= gormlogger.Info {
			ev = Info(ctx)
		}
	}
	if ev == nil {
		return
	}
	sql, rows := fc()
	ev.Str("sql", sql).
		Float64("elapsed_ms", float64(elapsed.Nanoseconds())/1e6).
		Int64("rows", rows).
		Msg("gorm query")
}
