package loader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/db"
	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/snapshot"
	"github.com/arencloud/courtside/internal/warehouse"
	"github.com/arencloud/courtside/internal/warehouse/local"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeSession is an in-memory warehouse: every successful copy appends one
// row and one ledger entry.
type fakeSession struct {
	rows    []string
	history []warehouse.LoadRecord
	stages  map[string]warehouse.StageSpec

	historyErr, tableErr, grantsErr, contextErr, stageErr, copyErr error
	copyResult                                                     *warehouse.CopyResult

	copies, closes int
}

func newFakeSession() *fakeSession { return &fakeSession{stages: map[string]warehouse.StageSpec{}} }

func (f *fakeSession) Context(context.Context) (warehouse.SessionContext, error) {
	return warehouse.SessionContext{User: "LOADER", Role: "SYSADMIN"}, f.contextErr
}
func (f *fakeSession) EnsureTable(context.Context, string) error { return f.tableErr }
func (f *fakeSession) Grants(context.Context, string) ([]warehouse.Grant, error) {
	return []warehouse.Grant{{Privilege: "OWNERSHIP", GrantedTo: "ROLE", Grantee: "SYSADMIN"}}, f.grantsErr
}
func (f *fakeSession) CopyHistory(_ context.Context, _ string, limit int) ([]warehouse.LoadRecord, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	out := make([]warehouse.LoadRecord, 0, len(f.history))
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.history[i])
	}
	return out, nil
}
func (f *fakeSession) CreateStage(_ context.Context, s warehouse.StageSpec) error {
	if f.stageErr != nil {
		return f.stageErr
	}
	f.stages[s.Name] = s
	return nil
}
func (f *fakeSession) CopyInto(_ context.Context, s warehouse.CopySpec) (warehouse.CopyResult, error) {
	f.copies++
	if f.copyErr != nil {
		return warehouse.CopyResult{}, f.copyErr
	}
	if f.copyResult != nil {
		return *f.copyResult, nil
	}
	f.rows = append(f.rows, s.File)
	f.history = append(f.history, warehouse.LoadRecord{FileName: "raw/" + s.File, Status: warehouse.StatusLoaded, RowsLoaded: 1})
	return warehouse.CopyResult{File: s.File, Files: 1, Status: warehouse.StatusLoaded, RowsParsed: 1, RowsLoaded: 1}, nil
}
func (f *fakeSession) Close() error { f.closes++; return nil }

type fakeConnector struct {
	sess  *fakeSession
	err   error
	opens int
}

func (c *fakeConnector) Open(context.Context) (warehouse.Session, error) {
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	return c.sess, nil
}

func testConfig() *config.Config {
	return &config.Config{
		S3Bucket: "bucket", S3Prefix: "raw/", AWSAccessKey: "AKIA", AWSSecretKey: "secret",
		WarehouseDriver: "sqlite", DBPath: "unused.db",
		TargetTable: "RAW_NBA_SCOREBOARD", StageName: "nba_stage", HistoryLimit: 100,
	}
}

func observed() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}

func TestScenarioSingleSnapshotIsLoadedOnce(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	sess := newFakeSession()
	conn := &fakeConnector{sess: sess}
	l := New(testConfig(), store, conn, logging.Nop())

	rep, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.Equal(t, NotLoaded, rep.Dedup)
	assert.Equal(t, "nba_scoreboard_20240101_120000.json", rep.File)
	assert.EqualValues(t, 1, rep.RowsLoaded)
	assert.Len(t, sess.rows, 1)
	assert.Equal(t, "s3://bucket/raw/", sess.stages["nba_stage"].URL)

	rep, err = l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLoaded, rep.Outcome)
	assert.Equal(t, AlreadyLoaded, rep.Dedup)
	assert.Equal(t, "raw/nba_scoreboard_20240101_120000.json", rep.DedupMatch)
	assert.Len(t, sess.rows, 1, "second run must not add rows")
	assert.Equal(t, 1, sess.copies)
	assert.Equal(t, 2, sess.closes)
}

func TestScenarioNewestOfTwoIsLoaded(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	store.PutAt("raw/nba_scoreboard_20240101_130000.json", []byte(`{}`), t0.Add(time.Hour))
	sess := newFakeSession()

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nba_scoreboard_20240101_130000.json", rep.File)
	assert.Equal(t, []string{"nba_scoreboard_20240101_130000.json"}, sess.rows)
}

func TestEmptyStoreIsNoOp(t *testing.T) {
	conn := &fakeConnector{sess: newFakeSession()}
	log, logs := observed()
	rep, err := New(testConfig(), snapshot.NewMemStore(), conn, log).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSnapshot, rep.Outcome)
	assert.Zero(t, conn.opens)
	assert.Equal(t, 1, logs.FilterMessage("no snapshot found, nothing to load").Len())
}

func TestLedgerSubstringMatchSkipsCopy(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	sess := newFakeSession()
	sess.history = []warehouse.LoadRecord{{FileName: "scoreboard_20240101_120000", Status: "Loaded"}}

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLoaded, rep.Outcome)
	assert.Zero(t, sess.copies)
	assert.Empty(t, sess.stages)
}

func TestFailedLedgerEntryDoesNotCount(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	sess := newFakeSession()
	sess.history = []warehouse.LoadRecord{{FileName: "raw/nba_scoreboard_20240101_120000.json", Status: "Load failed"}}

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.Equal(t, 1, sess.copies)
}

func TestLedgerFailureFailsOpen(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	sess := newFakeSession()
	sess.historyErr = errors.New("SQL compilation error: unsupported")
	log, logs := observed()

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, log).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.Equal(t, Unknown, rep.Dedup)
	assert.True(t, rep.Degraded())
	assert.Equal(t, 1, sess.copies)

	warns := logs.FilterMessage("dedup check unavailable, failing open").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)
}

func TestCheckLoadedStates(t *testing.T) {
	ctx := context.Background()
	sess := newFakeSession()
	assert.Equal(t, NotLoaded, CheckLoaded(ctx, sess, "T", "a.json", 10, logging.Nop()).State)

	sess.history = []warehouse.LoadRecord{{FileName: "raw/a.json", Status: "Loaded"}, {FileName: "raw/b.json"}}
	assert.Equal(t, AlreadyLoaded, CheckLoaded(ctx, sess, "T", "a.json", 10, logging.Nop()).State)
	// outside the window
	assert.Equal(t, NotLoaded, CheckLoaded(ctx, sess, "T", "a.json", 1, logging.Nop()).State)

	sess.historyErr = errors.New("boom")
	d := CheckLoaded(ctx, sess, "T", "a.json", 10, logging.Nop())
	assert.Equal(t, Unknown, d.State)
	assert.EqualError(t, d.Err, "boom")
}

func TestMissingConfigAbortsBeforeRemoteCalls(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)
	for _, tc := range []struct {
		name  string
		unset func(*config.Config)
		want  string
	}{
		{"bucket", func(c *config.Config) { c.S3Bucket = "" }, "S3_BUCKET_NAME"},
		{"secret", func(c *config.Config) { c.AWSSecretKey = "" }, "AWS_SECRET_ACCESS_KEY"},
		{"stage", func(c *config.Config) { c.StageName = "" }, "STAGE_NAME"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.unset(cfg)
			conn := &fakeConnector{sess: newFakeSession()}
			lists := store.Lists

			rep, err := New(cfg, store, conn, logging.Nop()).Run(context.Background())
			var le *Error
			require.ErrorAs(t, err, &le)
			assert.Equal(t, KindConfig, le.Kind)
			assert.Contains(t, err.Error(), tc.want)
			assert.Equal(t, OutcomeFailed, rep.Outcome)
			assert.Equal(t, lists, store.Lists, "store must not be listed")
			assert.Zero(t, conn.opens)
		})
	}
}

func TestInfrastructureErrors(t *testing.T) {
	store := snapshot.NewMemStore()
	store.ListErr = errors.New("InvalidAccessKeyId")
	_, err := New(testConfig(), store, &fakeConnector{sess: newFakeSession()}, logging.Nop()).Run(context.Background())
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindInfrastructure, le.Kind)
	assert.True(t, le.Retryable())

	store = snapshot.NewMemStore()
	store.PutAt("raw/a.json", []byte(`{}`), t0)
	_, err = New(testConfig(), store, &fakeConnector{err: errors.New("390100: incorrect password")}, logging.Nop()).Run(context.Background())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindInfrastructure, le.Kind)

	sess := newFakeSession()
	sess.tableErr = errors.New("insufficient privileges")
	_, err = New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindInfrastructure, le.Kind)
	assert.Zero(t, sess.copies)
	assert.Equal(t, 1, sess.closes)
}

func TestLoadErrorsCarryFileIdentity(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0)

	sess := newFakeSession()
	sess.copyErr = errors.New("JSON file format can produce one and only one column")
	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindLoad, le.Kind)
	assert.False(t, le.Retryable())
	assert.Equal(t, "nba_scoreboard_20240101_120000.json", le.File)
	assert.Contains(t, rep.Error, "nba_scoreboard_20240101_120000.json")
	assert.Equal(t, 1, sess.closes)

	sess = newFakeSession()
	sess.copyResult = &warehouse.CopyResult{Files: 1, Status: warehouse.StatusLoadFailed, FirstError: "Invalid credentials"}
	_, err = New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindLoad, le.Kind)
	assert.Contains(t, err.Error(), "Invalid credentials")

	sess = newFakeSession()
	sess.stageErr = errors.New("bad url")
	_, err = New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindLoad, le.Kind)
	assert.Zero(t, sess.copies)
}

func TestZeroFilesProcessedIsAlreadyLoaded(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/a.json", []byte(`{}`), t0)
	sess := newFakeSession()
	sess.copyResult = &warehouse.CopyResult{Files: 0, Status: "Copy executed with 0 files processed."}

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, logging.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLoaded, rep.Outcome)
	assert.Equal(t, NotLoaded, rep.Dedup)
}

func TestDiagnosticsNeverBlock(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/a.json", []byte(`{}`), t0)
	sess := newFakeSession()
	sess.contextErr = errors.New("no current warehouse")
	sess.grantsErr = errors.New("SHOW GRANTS not allowed")
	log, logs := observed()

	rep, err := New(testConfig(), store, &fakeConnector{sess: sess}, log).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.Equal(t, 1, logs.FilterMessage("error retrieving current session context").Len())
	assert.Equal(t, 1, logs.FilterMessage("error listing grants").Len())
}

func TestOutcomesLogDistinctMessages(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/a.json", []byte(`{}`), t0)
	sess := newFakeSession()
	log, logs := observed()
	l := New(testConfig(), store, &fakeConnector{sess: sess}, log)

	_, err := l.Run(context.Background())
	require.NoError(t, err)
	_, err = l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("copied snapshot into table").Len())
	assert.Equal(t, 1, logs.FilterMessage("file already loaded, skipping copy").Len())
	finished := logs.FilterMessage("load finished").All()
	require.Len(t, finished, 2)
	assert.Equal(t, OutcomeLoaded, finished[0].ContextMap()["outcome"])
	assert.Equal(t, OutcomeAlreadyLoaded, finished[1].ContextMap()["outcome"])
}

// The remaining tests drive the local sqlite warehouse end to end.

func localLoader(t *testing.T, store *snapshot.MemStore) (*Loader, func() int64) {
	t.Helper()
	cfg := testConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "wh.db")
	gdb, err := db.Open(cfg, logging.Nop())
	require.NoError(t, err)
	conn := local.NewConnector(gdb, store, logging.Nop())
	t.Cleanup(func() { conn.Close() })
	count := func() int64 {
		var n int64
		require.NoError(t, gdb.Table(cfg.TargetTable).Count(&n).Error)
		return n
	}
	return New(cfg, store, conn, logging.Nop()), count
}

func TestLocalWarehouseIdempotentRuns(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{"scoreboard":{"games":[]}}`), t0)
	l, count := localLoader(t, store)

	rep, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.EqualValues(t, 1, count())

	rep, err = l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLoaded, rep.Outcome)
	assert.EqualValues(t, 1, count())
}

func TestLocalWarehousePartialFile(t *testing.T) {
	store := snapshot.NewMemStore()
	body := "{\"g\":1}\n{\"g\":2}\n{broken\n{\"g\":3}\nnope\n{\"g\":4}\n"
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(body), t0)
	l, count := localLoader(t, store)

	rep, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, rep.Outcome)
	assert.Equal(t, warehouse.StatusPartiallyLoaded, rep.CopyStatus)
	assert.EqualValues(t, 4, rep.RowsLoaded)
	assert.EqualValues(t, 2, rep.RowsSkipped)
	assert.EqualValues(t, 4, count())
}

func TestLocalWarehouseAllRowsMalformed(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte("nope\nstill nope\n"), t0)
	l, count := localLoader(t, store)

	rep, err := l.Run(context.Background())
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindLoad, le.Kind)
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Equal(t, warehouse.StatusLoadFailed, rep.CopyStatus)
	assert.EqualValues(t, 0, rep.RowsLoaded)
	assert.EqualValues(t, 2, rep.RowsSkipped)
	assert.Contains(t, rep.FirstError, "line 1")
	assert.EqualValues(t, 0, count())
}

func TestSnapshotCaptureTimeIsLogged(t *testing.T) {
	store := snapshot.NewMemStore()
	store.PutAt("raw/nba_scoreboard_20240101_120000.json", []byte(`{}`), t0.Add(time.Minute))
	log, logs := observed()

	_, err := New(testConfig(), store, &fakeConnector{sess: newFakeSession()}, log).Run(context.Background())
	require.NoError(t, err)
	entries := logs.FilterMessage("most recent snapshot").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "nba_scoreboard", fields["source"])
	at, ok := fields["capturedAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, t0.Equal(at))
}
