// Package snapshot names, lists and selects the timestamped scoreboard captures
// kept in the object store.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// TimeLayout is the timestamp embedded in every key: <source>_<YYYYMMDD_HHMMSS>.json
const TimeLayout = "20060102_150405"

var ErrEmptyPrefix = errors.New("snapshot prefix must not be empty")

type Snapshot struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// FileName is the key without its prefix, the name the warehouse records in load history.
func (s Snapshot) FileName() string { return path.Base(s.Key) }

// Store is the append-only object store holding snapshots.
type Store interface {
	List(ctx context.Context, prefix string) ([]Snapshot, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
}

// NormalizePrefix trims surrounding slashes and spaces and appends exactly one
// trailing slash. An empty result means the prefix was blank.
func NormalizePrefix(prefix string) string {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Key builds <prefix>/<source>_<YYYYMMDD_HHMMSS>.json for a capture taken at t (UTC).
func Key(prefix, source string, t time.Time) string {
	return NormalizePrefix(prefix) + source + "_" + t.UTC().Format(TimeLayout) + ".json"
}

// ParseKey extracts the source name and capture time from a key produced by Key.
func ParseKey(key string) (source string, at time.Time, err error) {
	name := strings.TrimSuffix(path.Base(key), ".json")
	if len(name) < len(TimeLayout)+2 || name[len(name)-len(TimeLayout)-1] != '_' {
		return "", time.Time{}, fmt.Errorf("snapshot key %q: no timestamp suffix", key)
	}
	at, err = time.Parse(TimeLayout, name[len(name)-len(TimeLayout):])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("snapshot key %q: %w", key, err)
	}
	return name[:len(name)-len(TimeLayout)-1], at, nil
}

// Latest returns the snapshot with the newest LastModified. Equal timestamps
// resolve to the lexicographically largest key. Folder markers (keys ending
// in "/") are ignored. found is false when nothing qualifies.
func Latest(snaps []Snapshot) (latest Snapshot, found bool) {
	for _, s := range snaps {
		if s.Key == "" || strings.HasSuffix(s.Key, "/") {
			continue
		}
		if !found || s.LastModified.After(latest.LastModified) ||
			(s.LastModified.Equal(latest.LastModified) && s.Key > latest.Key) {
			latest, found = s, true
		}
	}
	return latest, found
}

// Select lists the prefix and returns its newest snapshot. Nothing under the
// prefix is a "none found" result (found=false, nil error); a blank prefix is
// ErrEmptyPrefix and listing failures are returned as is.
func Select(ctx context.Context, store Store, prefix string) (Snapshot, bool, error) {
	p := NormalizePrefix(prefix)
	if p == "" {
		return Snapshot{}, false, ErrEmptyPrefix
	}
	snaps, err := store.List(ctx, p)
	if err != nil {
		return Snapshot{}, false, err
	}
	s, ok := Latest(snaps)
	return s, ok, nil
}
