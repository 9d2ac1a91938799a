package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arencloud/courtside/internal/s3"
)

// S3Store keeps snapshots in one bucket of an S3-compatible store.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Bucket() string { return s.bucket }

func (s *S3Store) List(ctx context.Context, prefix string) ([]Snapshot, error) {
	objs, err := s.client.ListObjects(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	out := make([]Snapshot, 0, len(objs))
	for _, o := range objs {
		out = append(out, Snapshot{Key: o.Key, LastModified: o.LastModified, Size: o.Size})
	}
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Download(ctx, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return b, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte) error {
	if err := s.client.Upload(ctx, s.bucket, key, body, "application/json"); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// MemStore is an in-process Store for local runs and tests.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
	// ListErr, when set, is returned by every List call.
	ListErr error
	Lists   int
}

type memObject struct {
	body    []byte
	modTime time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{objects: map[string]memObject{}, now: time.Now}
}

// PutAt stores body under key with an explicit modification time.
func (m *MemStore) PutAt(key string, body []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{body: append([]byte(nil), body...), modTime: at}
}

func (m *MemStore) Put(_ context.Context, key string, body []byte) error {
	m.PutAt(key, body, m.now())
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: no such key", key)
	}
	return append([]byte(nil), o.body...), nil
}

func (m *MemStore) List(_ context.Context, prefix string) ([]Snapshot, error) {
	m.mu.Lock()
	m.Lists++
	m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Snapshot{Key: k, LastModified: o.modTime, Size: int64(len(o.body))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
