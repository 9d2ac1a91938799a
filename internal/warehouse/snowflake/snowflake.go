// Package snowflake implements warehouse.Session on Snowflake through the
// gosnowflake database/sql driver.
package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/warehouse"

	sf "github.com/snowflakedb/gosnowflake"
)

type Connector struct {
	cfg *sf.Config
	log logging.Logger
}

func NewConnector(c config.Snowflake, log logging.Logger) *Connector {
	return &Connector{
		cfg: &sf.Config{
			Account:   c.Account,
			User:      c.User,
			Password:  c.Password,
			Role:      c.Role,
			Warehouse: c.Warehouse,
			Database:  c.Database,
			Schema:    c.Schema,
		},
		log: log,
	}
}

// Open pins a single connection so every statement of the run shares one
// Snowflake session (role, warehouse and schema stay consistent).
func (c *Connector) Open(ctx context.Context) (warehouse.Session, error) {
	db := sql.OpenDB(sf.NewConnector(sf.SnowflakeDriver{}, *c.cfg))
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		c.logAuth(err)
		return nil, fmt.Errorf("connect to snowflake account %s: %w", c.cfg.Account, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		c.logAuth(err)
		return nil, fmt.Errorf("ping snowflake account %s: %w", c.cfg.Account, err)
	}
	return &Session{db: db, conn: conn, log: c.log}, nil
}

func (c *Connector) logAuth(err error) {
	if IsAuthError(err) {
		c.log.Error("snowflake rejected the credentials, check SNOWFLAKE_USER and SNOWFLAKE_PASSWORD",
			"account", c.cfg.Account, "user", c.cfg.User)
	}
}

type Session struct {
	db   *sql.DB
	conn *sql.Conn
	log  logging.Logger
}

func (s *Session) Context(ctx context.Context) (warehouse.SessionContext, error) {
	var u, r, w, d, sc sql.NullString
	if err := s.conn.QueryRowContext(ctx, sessionContextSQL).Scan(&u, &r, &w, &d, &sc); err != nil {
		return warehouse.SessionContext{}, err
	}
	return warehouse.SessionContext{User: u.String, Role: r.String, Warehouse: w.String, Database: d.String, Schema: sc.String}, nil
}

func (s *Session) EnsureTable(ctx context.Context, table string) error {
	if err := warehouse.ValidIdent(table); err != nil {
		return err
	}
	return s.exec(ctx, createTableSQL(table), createTableSQL(table))
}

func (s *Session) Grants(ctx context.Context, table string) ([]warehouse.Grant, error) {
	if err := warehouse.ValidIdent(table); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, grantsSQL(table))
	if err != nil {
		return nil, err
	}
	out := make([]warehouse.Grant, 0, len(rows))
	for _, r := range rows {
		out = append(out, parseGrantRow(r))
	}
	return out, nil
}

func (s *Session) CopyHistory(ctx context.Context, table string, limit int) ([]warehouse.LoadRecord, error) {
	if err := warehouse.ValidIdent(table); err != nil {
		return nil, err
	}
	// COPY_HISTORY matches the unqualified, upper-cased table name
	name := table[strings.LastIndex(table, ".")+1:]
	rows, err := s.query(ctx, historySQL(strings.ToUpper(name), limit))
	if err != nil {
		return nil, err
	}
	out := make([]warehouse.LoadRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, parseHistoryRow(r))
	}
	return out, nil
}

func (s *Session) CreateStage(ctx context.Context, spec warehouse.StageSpec) error {
	if err := warehouse.ValidIdent(spec.Name); err != nil {
		return err
	}
	return s.exec(ctx, stageSQL(spec, spec.KeyID, spec.Secret), stageSQL(spec, "****", "****"))
}

func (s *Session) CopyInto(ctx context.Context, spec warehouse.CopySpec) (warehouse.CopyResult, error) {
	if err := warehouse.ValidIdent(spec.Table); err != nil {
		return warehouse.CopyResult{}, err
	}
	if err := warehouse.ValidIdent(spec.Stage); err != nil {
		return warehouse.CopyResult{}, err
	}
	if err := warehouse.ValidFileName(spec.File); err != nil {
		return warehouse.CopyResult{}, err
	}
	rows, err := s.query(ctx, copySQL(spec))
	if err != nil {
		return warehouse.CopyResult{File: spec.File}, err
	}
	return parseCopyResult(rows, spec.File)
}

func (s *Session) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

func (s *Session) exec(ctx context.Context, stmt, logged string) error {
	s.log.Info("executing sql", "sql", logged)
	_, err := s.conn.ExecContext(ctx, stmt)
	return err
}

func (s *Session) query(ctx context.Context, stmt string) ([]map[string]string, error) {
	s.log.Info("executing sql", "sql", stmt)
	rows, err := s.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaps(rows)
}

// scanMaps reads every row into a lower-cased column -> text map.
func scanMaps(rows *sql.Rows) ([]map[string]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]string, len(cols))
		for i, c := range cols {
			m[strings.ToLower(c)] = vals[i].String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsAuthError reports login/credential rejections (incorrect user or password,
// invalid JWT, locked user).
func IsAuthError(err error) bool {
	var se *sf.SnowflakeError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Number {
	case 390100, 390101, 390102, 390144:
		return true
	}
	return false
}
