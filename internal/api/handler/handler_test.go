package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hanzhu/tablab/internal/job"
)

// fakeStore is an in-memory job.Store for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*job.Record
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*job.Record{}}
}

func (s *fakeStore) put(rec *job.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RequestID] = rec
}

func (s *fakeStore) Create(ctx context.Context, requestID string) error {
	s.put(&job.Record{RequestID: requestID, Status: job.StatusQueued, UpdatedAt: time.Now()})
	return nil
}

func (s *fakeStore) Get(ctx context.Context, requestID string) (*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return nil, job.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) MarkRunning(ctx context.Context, requestID string) error {
	return errors.New("not used in handler tests")
}

func (s *fakeStore) MarkDone(ctx context.Context, requestID, summaryURL, histURL string, timing map[string]int64) error {
	return errors.New("not used in handler tests")
}

func (s *fakeStore) MarkFailed(ctx context.Context, requestID, message string) error {
	return errors.New("not used in handler tests")
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

// fakeCache is an in-memory cache.Cache.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	pingErr error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return c.pingErr }

func (c *fakeCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 0, errors.New("not used in handler tests")
}
