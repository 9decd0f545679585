package logger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth a warning line.
const slowQueryThreshold = 500 * time.Millisecond

// GormLogger routes gorm's query log through the context logger so SQL lines
// carry request_id / job_id like everything else.
type GormLogger struct {
	level gormlogger.LogLevel
}

// NewGormLogger returns a gorm logger. verbose enables per-query trace lines.
func NewGormLogger(verbose bool) *GormLogger {
	level := gormlogger.Warn
	if verbose {
		level = gormlogger.Info
	}
	return &GormLogger{level: level}
}

// LogMode implements gormlogger.Interface.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{level: level}
}

// Info implements gormlogger.Interface.
func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		FromContext(ctx).WithField(FieldComponent, "gorm").Infof(msg, args...)
	}
}

// Warn implements gormlogger.Interface.
func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		FromContext(ctx).WithField(FieldComponent, "gorm").Warnf(msg, args...)
	}
}

// Error implements gormlogger.Interface.
func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		FromContext(ctx).WithField(FieldComponent, "gorm").Errorf(msg, args...)
	}
}

// Trace implements gormlogger.Interface.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := With(Fields{
		FieldComponent:  "gorm",
		FieldDurationMs: elapsed.Milliseconds(),
		FieldCount:      rows,
	})

	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		entry.Error(ctx, "Query failed: %v: %s", err, sql)
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		entry.Warn(ctx, "Slow query: %s", sql)
	case g.level >= gormlogger.Info:
		entry.Debug(ctx, "Query: %s", sql)
	}
}
