// Package model persists trained anomaly bundles and caches the active one.
package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hanzhu/tablab/internal/anomaly"
)

// ErrModelLoad wraps any failure to read or decode a bundle file.
var ErrModelLoad = errors.New("model load failed")

// Bundle pairs a trained forest with the ordered feature columns it was
// trained on, plus the training-time decision threshold.
type Bundle struct {
	Forest         *anomaly.Forest
	FeatureColumns []string
	Contamination  float64
	Threshold      float64
}

// SaveBundle writes the bundle to path as gob, creating parent directories.
func SaveBundle(path string, b *Bundle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

func loadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelLoad, path, err)
	}
	if b.Forest == nil || len(b.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: %s is missing forest or feature columns", ErrModelLoad, path)
	}
	return &b, nil
}

// Store is a single-slot, process-lifetime cache of the active bundle.
// The slot is replaced wholesale under the lock, so concurrent readers see
// either the old or the new bundle, never a partial one. There is no
// automatic expiry; invalidation is explicit via Reload.
type Store struct {
	mu     sync.RWMutex
	path   string
	bundle *Bundle
}

// NewStore creates an empty store bound to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the configured bundle path.
func (s *Store) Path() string {
	return s.path
}

// Cached returns the bundle currently in the slot, if any. Never loads.
func (s *Store) Cached() (*Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle, s.bundle != nil
}

// Load returns the cached bundle, deserializing and populating the slot on
// first use.
func (s *Store) Load() (*Bundle, error) {
	if b, ok := s.Cached(); ok {
		return b, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle != nil { // lost the race to another loader
		return s.bundle, nil
	}
	b, err := loadBundle(s.path)
	if err != nil {
		return nil, err
	}
	s.bundle = b
	return b, nil
}

// Reload unconditionally invalidates the slot and loads from disk. On
// failure the slot stays empty — callers must treat a failed reload as "no
// model available" until a later reload succeeds. Last writer wins under
// concurrent reloads.
func (s *Store) Reload() (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundle = nil
	b, err := loadBundle(s.path)
	if err != nil {
		return nil, err
	}
	s.bundle = b
	return b, nil
}
