package job

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const statusFilename = "status.json"

// FSStore persists one status.json per request directory under base. Writes
// serialize the full record to a temp file and rename it into place, so a
// concurrent reader observes either the previous record or the new one,
// never a partial write. The record's lifecycle is tied to its directory:
// the retention sweep deletes both together.
type FSStore struct {
	base string
	mu   sync.Mutex
}

// NewFSStore creates a filesystem-backed store rooted at base.
func NewFSStore(base string) *FSStore {
	return &FSStore{base: base}
}

func (s *FSStore) path(requestID string) string {
	return filepath.Join(s.base, requestID, statusFilename)
}

func (s *FSStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.base)
	if err != nil {
		return fmt.Errorf("stat base dir: %w", err)
	}
	return nil
}

// Create writes a fresh queued record for requestID.
func (s *FSStore) Create(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(&Record{
		RequestID: requestID,
		Status:    StatusQueued,
		UpdatedAt: time.Now().UTC(),
	})
}

// Get returns the current record, or ErrNotFound for an unknown id.
func (s *FSStore) Get(ctx context.Context, requestID string) (*Record, error) {
	b, err := os.ReadFile(s.path(requestID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &rec, nil
}

func (s *FSStore) MarkRunning(ctx context.Context, requestID string) error {
	return s.transition(ctx, requestID, StatusQueued, func(rec *Record) {
		rec.Status = StatusRunning
	})
}

func (s *FSStore) MarkDone(ctx context.Context, requestID, summaryURL, histURL string, timing map[string]int64) error {
	return s.transition(ctx, requestID, StatusRunning, func(rec *Record) {
		rec.Status = StatusDone
		rec.SummaryURL = summaryURL
		rec.HistURL = histURL
		rec.TimingMS = timing
	})
}

func (s *FSStore) MarkFailed(ctx context.Context, requestID, message string) error {
	return s.transition(ctx, requestID, StatusRunning, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Error = message
	})
}

// transition performs a guarded read-modify-write. The mutex serializes the
// whole cycle so two writers cannot interleave between read and rename.
func (s *FSStore) transition(ctx context.Context, requestID, from string, apply func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if rec.Status != from {
		return fmt.Errorf("%w: %s -> ? (record is %s)", ErrInvalidTransition, from, rec.Status)
	}
	apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	return s.write(rec)
}

func (s *FSStore) write(rec *Record) error {
	dir := filepath.Join(s.base, rec.RequestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create request dir: %w", err)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	tmp := filepath.Join(dir, statusFilename+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, statusFilename)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace status: %w", err)
	}
	return nil
}
