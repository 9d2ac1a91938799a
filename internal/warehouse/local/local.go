// Package local implements warehouse.Session on a gorm database (postgres or
// sqlite) so the load pipeline can run without Snowflake. Stage reads go
// through the snapshot store instead of the stage credentials.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/models"
	"github.com/arencloud/courtside/internal/snapshot"
	"github.com/arencloud/courtside/internal/warehouse"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Connector struct {
	db    *gorm.DB
	store snapshot.Store
	log   logging.Logger
}

func NewConnector(db *gorm.DB, store snapshot.Store, log logging.Logger) *Connector {
	return &Connector{db: db, store: store, log: log}
}

func (c *Connector) Open(ctx context.Context) (warehouse.Session, error) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", c.db.Name(), err)
	}
	return &Session{db: c.db, store: c.store, log: c.log}, nil
}

// Close releases the underlying pool; sessions share it.
func (c *Connector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type Session struct {
	db    *gorm.DB
	store snapshot.Store
	log   logging.Logger
}

func (s *Session) postgres() bool { return s.db.Name() == "postgres" }

func (s *Session) Context(ctx context.Context) (warehouse.SessionContext, error) {
	if !s.postgres() {
		return warehouse.SessionContext{User: "local", Warehouse: s.db.Name(), Database: "main", Schema: "main"}, nil
	}
	var sc warehouse.SessionContext
	row := s.db.WithContext(ctx).Raw("SELECT current_user, current_database(), current_schema()").Row()
	if err := row.Scan(&sc.User, &sc.Database, &sc.Schema); err != nil {
		return sc, err
	}
	sc.Role, sc.Warehouse = sc.User, s.db.Name()
	return sc, nil
}

func (s *Session) EnsureTable(ctx context.Context, table string) error {
	if err := warehouse.ValidIdent(table); err != nil {
		return err
	}
	colType := "TEXT"
	if s.postgres() {
		colType = "JSONB"
	}
	return s.db.WithContext(ctx).Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s)", table, warehouse.DataColumn, colType)).Error
}

// Grants lists table privileges; sqlite has no grant model and returns none.
func (s *Session) Grants(ctx context.Context, table string) ([]warehouse.Grant, error) {
	if err := warehouse.ValidIdent(table); err != nil {
		return nil, err
	}
	if !s.postgres() {
		return nil, nil
	}
	name := strings.ToLower(table[strings.LastIndex(table, ".")+1:])
	var rows []struct {
		PrivilegeType string
		Grantee       string
	}
	err := s.db.WithContext(ctx).
		Raw("SELECT privilege_type, grantee FROM information_schema.role_table_grants WHERE table_name = ?", name).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]warehouse.Grant, 0, len(rows))
	for _, r := range rows {
		out = append(out, warehouse.Grant{Privilege: r.PrivilegeType, GrantedTo: "ROLE", Grantee: r.Grantee})
	}
	return out, nil
}

func (s *Session) CopyHistory(ctx context.Context, table string, limit int) ([]warehouse.LoadRecord, error) {
	var recs []models.LoadRecord
	err := s.db.WithContext(ctx).
		Where("target_table = ?", table).
		Order("loaded_at desc, id desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]warehouse.LoadRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, warehouse.LoadRecord{
			FileName: r.FileName, Status: r.Status, RowsParsed: r.RowsParsed, RowsLoaded: r.RowsLoaded,
			ErrorsSeen: r.ErrorsSeen, FirstError: r.FirstError, LoadedAt: r.LoadedAt,
		})
	}
	return out, nil
}

func (s *Session) CreateStage(ctx context.Context, spec warehouse.StageSpec) error {
	if err := warehouse.ValidIdent(spec.Name); err != nil {
		return err
	}
	if _, err := stagePrefix(spec.URL); err != nil {
		return err
	}
	st := models.Stage{Name: spec.Name, URL: spec.URL, FileFormat: "JSON"}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoUpdates: clause.AssignmentColumns([]string{"url", "file_format", "updated_at"})}).
		Create(&st).Error
}

// CopyInto reads the staged file, loads every parseable JSON row and records
// the attempt in load_history. Malformed rows are skipped (ON_ERROR=CONTINUE);
// a file with no loadable rows is recorded as LOAD_FAILED.
func (s *Session) CopyInto(ctx context.Context, spec warehouse.CopySpec) (warehouse.CopyResult, error) {
	res := warehouse.CopyResult{File: spec.File}
	if err := warehouse.ValidIdent(spec.Table); err != nil {
		return res, err
	}
	var st models.Stage
	if err := s.db.WithContext(ctx).First(&st, "name = ?", spec.Stage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, fmt.Errorf("stage %s does not exist", spec.Stage)
		}
		return res, err
	}
	prefix, err := stagePrefix(st.URL)
	if err != nil {
		return res, err
	}
	key := prefix + spec.File
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return res, fmt.Errorf("read staged file %s: %w", key, err)
	}

	rows, bad, firstErr := splitRows(body)
	res.Files = 1
	res.RowsParsed = int64(len(rows) + bad)
	res.ErrorsSeen = int64(bad)
	res.FirstError = firstErr
	switch {
	case bad == 0:
		res.Status = warehouse.StatusLoaded
	case len(rows) == 0:
		res.Status = warehouse.StatusLoadFailed
	default:
		res.Status = warehouse.StatusPartiallyLoaded
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", spec.Table, warehouse.DataColumn)
	if s.postgres() {
		insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (CAST(? AS JSONB))", spec.Table, warehouse.DataColumn)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.Status != warehouse.StatusLoadFailed {
			for _, r := range rows {
				if err := tx.Exec(insert, string(r)).Error; err != nil {
					return err
				}
				res.RowsLoaded++
			}
		}
		return tx.Create(&models.LoadRecord{
			Target: spec.Table, FileName: key, Status: res.Status,
			RowsParsed: res.RowsParsed, RowsLoaded: res.RowsLoaded, ErrorsSeen: res.ErrorsSeen,
			FirstError: res.FirstError, LoadedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		res.RowsLoaded = 0
		return res, err
	}
	return res, nil
}

// Close is a no-op: the pool belongs to the Connector.
func (s *Session) Close() error { return nil }

// stagePrefix returns the key prefix of an s3://bucket/prefix/ stage URL.
func stagePrefix(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", fmt.Errorf("stage url %q: only s3:// locations are supported", url)
	}
	_, prefix, ok := strings.Cut(rest, "/")
	if !ok {
		return "", nil
	}
	return prefix, nil
}
