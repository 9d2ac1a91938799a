package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arencloud/courtside/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// gormJSONLogger implements gorm's logger.Interface and forwards entries to the
// zap-backed logger as fields instead of formatted text.
type gormJSONLogger struct {
	l             logging.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(l logging.Logger, lvl logger.LogLevel) *gormJSONLogger {
	return &gormJSONLogger{l: l, level: lvl, slowThreshold: 2 * time.Second}
}

func (g *gormJSONLogger) LogMode(l logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = l
	return &cp
}

func (g *gormJSONLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Info {
		g.l.Info("gorm", "msg", msg, "args", data)
	}
}

func (g *gormJSONLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Warn {
		g.l.Warn("gorm_warn", "msg", msg, "args", data)
	}
}

func (g *gormJSONLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Error {
		g.l.Error("gorm_error", "msg", msg, "args", data)
	}
}

// Trace logs each statement as op/table/rows/duration. Raw SQL is never logged:
// stage rows and snapshot payloads pass through these statements.
func (g *gormJSONLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	sql, rows := fc()
	dur := time.Since(begin)
	op, table := summarizeSQL(sql)
	fields := []any{"op", op, "table", table, "rows", rows, "durationMs", float64(dur) / 1e6, "caller", utils.FileWithLineNum()}
	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		if g.level >= logger.Info {
			g.l.Debug("gorm_sql", append(fields, "notFound", true)...)
		}
	case err != nil && g.level >= logger.Error:
		g.l.Error("gorm_sql", append(fields, "error", err.Error())...)
	case g.slowThreshold > 0 && dur > g.slowThreshold && g.level >= logger.Warn:
		g.l.Warn("gorm_slow_sql", fields...)
	case g.level >= logger.Info:
		g.l.Debug("gorm_sql", fields...)
	}
}

var tableAfter = []string{
	"CREATE TABLE IF NOT EXISTS ",
	"CREATE TABLE ",
	"INSERT INTO ",
	"DELETE FROM ",
	"UPDATE ",
}

// summarizeSQL returns a masked summary like ("INSERT", "load_history") without parameters.
func summarizeSQL(sql string) (op string, table string) {
	q := strings.ToUpper(strings.Join(strings.Fields(sql), " "))
	parts := strings.Fields(q)
	if len(parts) == 0 {
		return "", ""
	}
	op = parts[0]
	rest := ""
	for _, p := range tableAfter {
		if strings.HasPrefix(q, p) {
			rest = q[len(p):]
			break
		}
	}
	if rest == "" {
		if idx := strings.Index(q, " FROM "); idx >= 0 {
			rest = q[idx+len(" FROM "):]
		} else if idx := strings.Index(q, " INTO "); idx >= 0 {
			rest = q[idx+len(" INTO "):]
		}
	}
	if ws := strings.Fields(rest); len(ws) > 0 {
		table = strings.Trim(ws[0], "`\"(")
	}
	return op, strings.ToLower(table)
}
