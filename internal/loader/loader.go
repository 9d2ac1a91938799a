// Package loader moves the newest scoreboard snapshot from the object store
// into the warehouse target table, at most once per file as far as the
// warehouse load history can tell.
package loader

import (
	"context"
	"time"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/snapshot"
	"github.com/arencloud/courtside/internal/warehouse"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeLoaded        Outcome = "loaded"
	OutcomeNoSnapshot    Outcome = "no_snapshot"
	OutcomeAlreadyLoaded Outcome = "already_loaded"
	OutcomeFailed        Outcome = "failed"
)

// Report is the only feedback a run gives its invoker besides the logs.
type Report struct {
	RunID       string    `json:"runId"`
	Outcome     Outcome   `json:"outcome"`
	Key         string    `json:"key,omitempty"`
	File        string    `json:"file,omitempty"`
	Dedup       LoadState `json:"dedup,omitempty"`
	DedupMatch  string    `json:"dedupMatch,omitempty"`
	CopyStatus  string    `json:"copyStatus,omitempty"`
	RowsLoaded  int64     `json:"rowsLoaded"`
	RowsSkipped int64     `json:"rowsSkipped"`
	FirstError  string    `json:"firstError,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Degraded reports a run that proceeded without a usable load history.
func (r Report) Degraded() bool { return r.Dedup == Unknown }

type Loader struct {
	cfg   *config.Config
	store snapshot.Store
	wh    warehouse.Connector
	log   logging.Logger
	now   func() time.Time
}

func New(cfg *config.Config, store snapshot.Store, wh warehouse.Connector, log logging.Logger) *Loader {
	return &Loader{cfg: cfg, store: store, wh: wh, log: log, now: time.Now}
}

// Execution is the per-run context handed to every step; it is built in Run
// and its session is closed before Run returns.
type Execution struct {
	Store   snapshot.Store
	Session warehouse.Session
	Log     logging.Logger
}

// Run performs one load. No-op outcomes return a nil error; failures return
// a *Error alongside a report with OutcomeFailed.
func (l *Loader) Run(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: l.now().UTC()}
	log := l.log.With("run", rep.RunID)
	defer func() {
		rep.FinishedAt = l.now().UTC()
		if err != nil {
			rep.Outcome, rep.Error = OutcomeFailed, err.Error()
			log.Error("load failed", "file", rep.File, "rowsLoaded", rep.RowsLoaded, "rowsSkipped", rep.RowsSkipped, "error", err)
			return
		}
		log.Info("load finished", "outcome", rep.Outcome, "file", rep.File, "rowsLoaded", rep.RowsLoaded,
			"rowsSkipped", rep.RowsSkipped, "dedup", rep.Dedup, "degraded", rep.Degraded())
	}()

	if err := l.cfg.ValidateLoad(); err != nil {
		return rep, &Error{Kind: KindConfig, Op: "validate config", Err: err}
	}
	log.Info("load starting", l.cfg.Sanitized()...)

	prefix := snapshot.NormalizePrefix(l.cfg.S3Prefix)
	snap, found, err := snapshot.Select(ctx, l.store, prefix)
	if err != nil {
		return rep, &Error{Kind: KindInfrastructure, Op: "list snapshots", Err: err}
	}
	if !found {
		log.Info("no snapshot found, nothing to load", "bucket", l.cfg.S3Bucket, "prefix", prefix)
		rep.Outcome = OutcomeNoSnapshot
		return rep, nil
	}
	rep.Key, rep.File = snap.Key, snap.FileName()
	kv := []any{"key", snap.Key, "file", rep.File, "lastModified", snap.LastModified}
	if source, at, err := snapshot.ParseKey(snap.Key); err == nil {
		kv = append(kv, "source", source, "capturedAt", at)
	}
	log.Info("most recent snapshot", kv...)

	sess, err := l.wh.Open(ctx)
	if err != nil {
		return rep, &Error{Kind: KindInfrastructure, Op: "open warehouse session", Err: err}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("closing warehouse session", "error", cerr)
		}
	}()
	x := &Execution{Store: l.store, Session: sess, Log: log}
	err = x.load(ctx, l.cfg, snap, prefix, &rep)
	return rep, err
}

func (x *Execution) load(ctx context.Context, cfg *config.Config, snap snapshot.Snapshot, prefix string, rep *Report) error {
	x.logSessionContext(ctx)
	if err := x.provision(ctx, cfg.TargetTable); err != nil {
		return &Error{Kind: KindInfrastructure, Op: "provision table " + cfg.TargetTable, Err: err}
	}

	file := snap.FileName()
	d := CheckLoaded(ctx, x.Session, cfg.TargetTable, file, cfg.HistoryLimit, x.Log)
	rep.Dedup, rep.DedupMatch = d.State, d.Match
	if d.State == AlreadyLoaded {
		x.Log.Info("file already loaded, skipping copy", "file", file, "match", d.Match)
		rep.Outcome = OutcomeAlreadyLoaded
		return nil
	}

	stage := warehouse.StageSpec{
		Name:   cfg.StageName,
		URL:    warehouse.StageURL(cfg.S3Bucket, prefix),
		KeyID:  cfg.AWSAccessKey,
		Secret: cfg.AWSSecretKey,
	}
	if err := x.Session.CreateStage(ctx, stage); err != nil {
		return &Error{Kind: KindLoad, Op: "create stage " + stage.Name, File: file, Err: err}
	}
	x.Log.Info("stage created or replaced", "stage", stage.Name, "url", stage.URL)

	res, err := x.Session.CopyInto(ctx, warehouse.CopySpec{Table: cfg.TargetTable, Stage: stage.Name, File: file})
	if err != nil {
		return &Error{Kind: KindLoad, Op: "copy into " + cfg.TargetTable, File: file, Err: err}
	}
	rep.CopyStatus, rep.FirstError = res.Status, res.FirstError
	rep.RowsLoaded, rep.RowsSkipped = res.RowsLoaded, res.Skipped()
	switch {
	case res.Files == 0:
		// the warehouse's own load metadata already covers this file
		x.Log.Info("copy processed no files, file already loaded", "file", file, "status", res.Status)
		rep.Outcome = OutcomeAlreadyLoaded
		return nil
	case res.Status == warehouse.StatusLoadFailed:
		return &Error{Kind: KindLoad, Op: "copy into " + cfg.TargetTable, File: file, Err: copyFailed(res)}
	}
	rep.Outcome = OutcomeLoaded
	if rep.RowsSkipped > 0 {
		x.Log.Warn("copy skipped malformed rows", "file", file, "rowsLoaded", res.RowsLoaded,
			"rowsSkipped", rep.RowsSkipped, "firstError", res.FirstError)
	}
	x.Log.Info("copied snapshot into table", "file", file, "table", cfg.TargetTable, "status", res.Status, "rowsLoaded", res.RowsLoaded)
	return nil
}

// logSessionContext is diagnostic only and never stops the run.
func (x *Execution) logSessionContext(ctx context.Context) {
	sc, err := x.Session.Context(ctx)
	if err != nil {
		x.Log.Error("error retrieving current session context", "error", err)
		return
	}
	x.Log.Info("current warehouse session", "user", sc.User, "role", sc.Role, "warehouse", sc.Warehouse,
		"database", sc.Database, "schema", sc.Schema)
}

// provision creates the table if needed; grant listing is best-effort.
func (x *Execution) provision(ctx context.Context, table string) error {
	if err := x.Session.EnsureTable(ctx, table); err != nil {
		return err
	}
	x.Log.Info("table is set up (or already exists)", "table", table)
	grants, err := x.Session.Grants(ctx, table)
	if err != nil {
		x.Log.Error("error listing grants", "table", table, "error", err)
		return nil
	}
	for _, g := range grants {
		x.Log.Info("table grant", "table", table, "privilege", g.Privilege, "grantedTo", g.GrantedTo, "grantee", g.Grantee)
	}
	return nil
}
