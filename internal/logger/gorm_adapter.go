package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter routes GORM's logging through zerolog.
// SQL statements are logged at trace level; slow queries and query errors at warn.
type GormAdapter struct {
	log           zerolog.Logger
	slowThreshold time.Duration
}

// NewGormAdapter creates a GORM logger. A zero slowThreshold disables slow query warnings.
func NewGormAdapter(l zerolog.Logger, slowThreshold time.Duration) *GormAdapter {
	return &GormAdapter{log: l, slowThreshold: slowThreshold}
}

// LogMode returns the adapter itself; the level is owned by the zerolog logger.
func (a *GormAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug().Msg(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn().Msg(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error().Msg(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		a.log.Warn().
			Err(err).
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Msg("query error")

	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		sql, rows := fc()
		a.log.Warn().
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Dur("threshold", a.slowThreshold).
			Msg("slow query")

	default:
		if a.log.GetLevel() > zerolog.TraceLevel {
			return
		}
		sql, rows := fc()
		a.log.Trace().
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Msg("sql query")
	}
}
