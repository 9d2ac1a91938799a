package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

type Entry struct {
	Time   time.Time      `json:"time"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

type ring struct {
	mu      sync.RWMutex
	entries []*Entry
	next    int
}

func newRing(n int) *ring { return &ring{entries: make([]*Entry, n)} }

func (r *ring) add(e *Entry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	r.mu.Unlock()
}

func (r *ring) recent(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]Entry, 0, n)
	i := (r.next - 1 + len(r.entries)) % len(r.entries)
	for c := 0; c < len(r.entries) && len(out) < n; c++ {
		if r.entries[i] != nil {
			out = append(out, *r.entries[i])
		}
		i = (i - 1 + len(r.entries)) % len(r.entries)
	}
	return out
}

// recentCore is a zapcore.Core that copies every enabled entry into the ring.
type recentCore struct {
	zapcore.LevelEnabler
	buf    *ring
	fields []zapcore.Field
}

func (c *recentCore) With(fs []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fs))
	merged = append(merged, c.fields...)
	merged = append(merged, fs...)
	return &recentCore{LevelEnabler: c.LevelEnabler, buf: c.buf, fields: merged}
}

func (c *recentCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *recentCore) Write(e zapcore.Entry, fs []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fs {
		f.AddTo(enc)
	}
	var fields map[string]any
	if len(enc.Fields) > 0 {
		fields = enc.Fields
	}
	c.buf.add(&Entry{Time: e.Time, Level: e.Level.String(), Msg: e.Message, Fields: fields})
	return nil
}

func (c *recentCore) Sync() error { return nil }
