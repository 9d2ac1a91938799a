package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	// With returns a child logger that adds kv to every entry.
	With(kv ...any) Logger
	// Recent returns up to n most recent entries (newest-first). Loggers built
	// with FromZap keep no history and return nil.
	Recent(n int) []Entry
	Zap() *zap.Logger
}

type zapLogger struct {
	s   *zap.SugaredLogger
	rec *ring
}

const recentSize = 1000

// New creates a logger; honors env vars LOG_LEVEL (debug|info|warn|error), LOG_JSON (true|false).
// LOG_JSON defaults to true in every environment; false selects console
// encoding, with colored levels in dev.
func New(env string) Logger {
	lvl := zap.NewAtomicLevelAt(ParseLevel(os.Getenv("LOG_LEVEL")))
	j := true
	if v := os.Getenv("LOG_JSON"); v == "false" {
		j = false
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var enc zapcore.Encoder
	if j {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		if env == "dev" {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	rec := newRing(recentSize)
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl),
		&recentCore{LevelEnabler: lvl, buf: rec},
	)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).With(zap.String("env", env))
	return &zapLogger{s: z.Sugar(), rec: rec}
}

// FromZap wraps an existing zap logger, e.g. a zaptest observer in tests.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{s: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Nop discards everything.
func Nop() Logger { return FromZap(zap.NewNop()) }

// ParseLevel maps a LOG_LEVEL value to a zap level; unknown values give info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{s: l.s.With(kv...), rec: l.rec}
}

func (l *zapLogger) Recent(n int) []Entry {
	if l.rec == nil {
		return nil
	}
	return l.rec.recent(n)
}

func (l *zapLogger) Zap() *zap.Logger { return l.s.Desugar().WithOptions(zap.AddCallerSkip(-1)) }
