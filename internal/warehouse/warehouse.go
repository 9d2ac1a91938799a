// Package warehouse describes the SQL surface the loader drives: session
// introspection, table provisioning, load history, staging and bulk copy.
package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Copy statuses, as reported by Snowflake's COPY INTO and COPY_HISTORY.
const (
	StatusLoaded          = "LOADED"
	StatusPartiallyLoaded = "PARTIALLY_LOADED"
	StatusLoadFailed      = "LOAD_FAILED"
)

// DataColumn is the single semi-structured column of the target table.
const DataColumn = "game_data"

type SessionContext struct {
	User      string
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

type Grant struct {
	Privilege string
	GrantedTo string
	Grantee   string
}

// LoadRecord is one ledger entry of a completed copy operation.
type LoadRecord struct {
	FileName   string
	Status     string
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
	FirstError string
	LoadedAt   time.Time
}

// Failed reports whether the warehouse rejected the whole file.
func (r LoadRecord) Failed() bool {
	return strings.EqualFold(strings.ReplaceAll(r.Status, " ", "_"), StatusLoadFailed)
}

// StageSpec binds a named stage to an external location holding JSON files.
type StageSpec struct {
	Name   string
	URL    string // s3://bucket/prefix/
	KeyID  string
	Secret string
}

type CopySpec struct {
	Table string
	Stage string
	File  string // file name relative to the stage URL
}

// CopyResult summarizes one COPY INTO. Files is 0 when the warehouse decided
// there was nothing new to load.
type CopyResult struct {
	File       string
	Files      int
	Status     string
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
	FirstError string
}

// Skipped is the number of rows dropped by ON_ERROR=CONTINUE.
func (r CopyResult) Skipped() int64 {
	if n := r.RowsParsed - r.RowsLoaded; n > 0 {
		return n
	}
	return r.ErrorsSeen
}

// Session is one open warehouse connection. All calls are synchronous.
type Session interface {
	Context(ctx context.Context) (SessionContext, error)
	EnsureTable(ctx context.Context, table string) error
	Grants(ctx context.Context, table string) ([]Grant, error)
	// CopyHistory returns up to limit of the most recent ledger entries for table.
	CopyHistory(ctx context.Context, table string, limit int) ([]LoadRecord, error)
	CreateStage(ctx context.Context, spec StageSpec) error
	CopyInto(ctx context.Context, spec CopySpec) (CopyResult, error)
	Close() error
}

// Connector opens sessions. Open failures are infrastructure errors.
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// ValidIdent guards table and stage names that are spliced into SQL text.
func ValidIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

var fileRe = regexp.MustCompile(`^[A-Za-z0-9_.\-/]+$`)

// ValidFileName guards stage-relative file names spliced into SQL text.
func ValidFileName(name string) error {
	if !fileRe.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// StageURL is the external location for a bucket and normalized prefix.
func StageURL(bucket, prefix string) string {
	return "s3://" + bucket + "/" + prefix
}
