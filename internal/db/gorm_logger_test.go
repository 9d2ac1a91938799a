package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arencloud/courtside/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSummarizeSQL(t *testing.T) {
	cases := []struct{ in, op, table string }{
		{"SELECT * FROM `load_history` WHERE id = ?", "SELECT", "load_history"},
		{"insert into stages (name) values (?)", "INSERT", "stages"},
		{"UPDATE stages SET url = ? WHERE name = ?", "UPDATE", "stages"},
		{"CREATE TABLE IF NOT EXISTS RAW_NBA_SCOREBOARD (game_data JSONB)", "CREATE", "raw_nba_scoreboard"},
		{"  ", "", ""},
	}
	for _, c := range cases {
		op, table := summarizeSQL(c.in)
		assert.Equal(t, c.op, op, c.in)
		assert.Equal(t, c.table, table, c.in)
	}
}

func TestTraceNeverLogsRawSQL(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := newGormLogger(logging.FromZap(zap.New(core)), logger.Info)
	secret := "INSERT INTO stages (name,url) VALUES ('s','s3://bucket/raw/')"

	g.Trace(context.Background(), time.Now(), func() (string, int64) { return secret, 1 }, nil)
	g.Trace(context.Background(), time.Now(), func() (string, int64) { return secret, 0 }, errors.New("boom"))
	g.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT * FROM stages", 0 }, gorm.ErrRecordNotFound)

	require.Equal(t, 3, logs.Len())
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "s3://")
			}
		}
	}
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
	assert.Equal(t, true, logs.All()[2].ContextMap()["notFound"])
}

func TestLogModeDoesNotMutateReceiver(t *testing.T) {
	g := newGormLogger(logging.Nop(), logger.Warn)
	quiet := g.LogMode(logger.Silent)
	assert.Equal(t, logger.Warn, g.level)
	assert.Equal(t, logger.Silent, quiet.(*gormJSONLogger).level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, logger.Info, levelFor(zapcore.DebugLevel))
	assert.Equal(t, logger.Warn, levelFor(zapcore.InfoLevel))
	assert.Equal(t, logger.Warn, levelFor(zapcore.WarnLevel))
	assert.Equal(t, logger.Error, levelFor(zapcore.ErrorLevel))
}
