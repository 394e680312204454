// Package retention deletes expired per-request result directories.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hanzhu/tablab/internal/metrics"
)

// Sweep removes every immediate subdirectory of base whose last-modified
// time is older than ttl, returning the number removed. Deletion is
// best-effort: a failure on one directory never aborts the sweep of the
// others. Idempotent — an immediate re-run removes nothing more.
func Sweep(base string, ttl time.Duration) int {
	entries, err := os.ReadDir(base)
	if err != nil {
		slog.Error("sweep: read base dir", "dir", base, "error", err)
		return 0
	}

	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			slog.Warn("sweep: stat", "name", e.Name(), "error", err)
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}
		path := filepath.Join(base, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("sweep: remove", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.SweepRemoved.Add(float64(removed))
		slog.Info("sweep complete", "dir", base, "removed", removed)
	}
	return removed
}

// Run sweeps base every interval until ctx is cancelled. A ttl of zero
// disables sweeping entirely.
func Run(ctx context.Context, base string, ttl, interval time.Duration) {
	if ttl <= 0 {
		slog.Info("retention sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Sweep(base, ttl)
		}
	}
}
