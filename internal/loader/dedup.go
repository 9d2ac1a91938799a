package loader

import (
	"context"
	"strings"

	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/warehouse"
)

// LoadState is the outcome of the load-history check.
type LoadState string

const (
	NotLoaded     LoadState = "not_loaded"
	AlreadyLoaded LoadState = "already_loaded"
	// Unknown means the ledger could not be read; callers proceed as NotLoaded.
	Unknown LoadState = "unknown"
)

type DedupResult struct {
	State LoadState
	Match string // ledger file reference that matched, for AlreadyLoaded
	Err   error  // ledger failure, for Unknown
}

// CheckLoaded scans the most recent limit ledger entries of table for file.
// An entry matches when either name contains the other; entries the warehouse
// recorded as LOAD_FAILED are ignored. A failing ledger query fails open.
func CheckLoaded(ctx context.Context, sess warehouse.Session, table, file string, limit int, log logging.Logger) DedupResult {
	recs, err := sess.CopyHistory(ctx, table, limit)
	if err != nil {
		log.Warn("dedup check unavailable, failing open", "file", file, "table", table, "error", err)
		return DedupResult{State: Unknown, Err: err}
	}
	log.Info("load history fetched", "table", table, "entries", len(recs), "limit", limit)
	for _, r := range recs {
		log.Debug("load history entry", "fileName", r.FileName, "status", r.Status)
		if r.Failed() || !sameFile(file, r.FileName) {
			continue
		}
		log.Info("found matching file in load history", "file", file, "match", r.FileName, "status", r.Status)
		return DedupResult{State: AlreadyLoaded, Match: r.FileName}
	}
	return DedupResult{State: NotLoaded}
}

func sameFile(candidate, recorded string) bool {
	if candidate == "" || recorded == "" {
		return false
	}
	return strings.Contains(recorded, candidate) || strings.Contains(candidate, recorded)
}
