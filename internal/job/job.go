// Package job owns the per-request status lifecycle: the state machine, its
// persistence backends, and the orchestrator that drives submissions through
// background execution.
package job

import (
	"context"
	"errors"
	"time"
)

// Job statuses. queued and running are non-terminal; done and failed are
// terminal and immutable.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Record is the status document for one submitted request. It is created at
// submission, mutated only by the background execution path, and read-only
// to API consumers. Every write re-stamps UpdatedAt.
type Record struct {
	RequestID  string           `json:"request_id"`
	Status     string           `json:"status"`
	UpdatedAt  time.Time        `json:"updated_at"`
	SummaryURL string           `json:"summary_url,omitempty"`
	HistURL    string           `json:"hist_url,omitempty"`
	Error      string           `json:"error,omitempty"`
	TimingMS   map[string]int64 `json:"timing_ms,omitempty"`
}

// Terminal reports whether status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusDone || status == StatusFailed
}

// Store persists status records keyed by request id. Allowed transitions are
// queued → running → {done, failed}; implementations return
// ErrInvalidTransition for anything else and ErrNotFound for unknown ids.
// Reads never mutate.
type Store interface {
	Create(ctx context.Context, requestID string) error
	Get(ctx context.Context, requestID string) (*Record, error)
	MarkRunning(ctx context.Context, requestID string) error
	MarkDone(ctx context.Context, requestID, summaryURL, histURL string, timing map[string]int64) error
	MarkFailed(ctx context.Context, requestID, message string) error
	Ping(ctx context.Context) error
}
