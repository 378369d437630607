package media

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// defaultLedgerLimit bounds the registry; conversions are transient, so a
// ledger this deep only fills up if cleanup has been failing for a while.
const defaultLedgerLimit = 256

// Ledger is a process-wide registry of conversion outputs that have not yet
// been claimed by a send. It is a best-effort safety net: the per-request
// artifact release is the primary reclaim path, the ledger only catches files
// orphaned by crashes between conversion and send. Sweep runs at shutdown
// and from the periodic scheduler.
type Ledger struct {
	logger *slog.Logger

	mu    sync.Mutex
	paths []string
	limit int
}

// NewLedger creates an empty ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{
		logger: logger.With("component", "temp_ledger"),
		limit:  defaultLedgerLimit,
	}
}

// Add registers a path for the shutdown sweep. When the registry is full the
// oldest entry is dropped.
func (l *Ledger) Add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.paths) >= l.limit {
		l.logger.Warn("Temp-file ledger full, dropping oldest entry", "dropped", l.paths[0])
		l.paths = l.paths[1:]
	}
	l.paths = append(l.paths, path)
}

// Remove unregisters a path once its owner has reclaimed it.
func (l *Ledger) Remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, p := range l.paths {
		if p == path {
			l.paths = append(l.paths[:i], l.paths[i+1:]...)
			return
		}
	}
}

// Sweep deletes every registered path that still exists and clears the
// registry. Individual deletion failures are logged, never raised.
func (l *Ledger) Sweep() {
	l.mu.Lock()
	paths := l.paths
	l.paths = nil
	l.mu.Unlock()

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(path); err != nil {
			l.logger.Error("Failed to delete temp file", "path", path, "error", err)
			continue
		}
		l.logger.Info("Deleted orphaned temp file", "path", path)
	}
}

// SweepStale deletes regular files under dir older than maxAge and returns
// how many were removed. It is used by the periodic sweep of the downloads
// directory.
func SweepStale(logger *slog.Logger, dir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			logger.Error("Failed to delete stale file", "path", path, "error", err)
			return nil
		}
		logger.Info("Deleted stale file", "path", path, "age", time.Since(info.ModTime()))
		removed++
		return nil
	})

	return removed, err
}
