// Package trace persists guard decisions as JSON Lines with daily rotation
// and retention cleanup. The files are the durable audit trail; the
// in-memory decision store serves interactive queries.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// traceFilePattern matches trace filenames: decisions-YYYY-MM-DD.jsonl
var traceFilePattern = regexp.MustCompile(`^decisions-(\d{4}-\d{2}-\d{2})\.jsonl$`)

// Config holds configuration for the file-based decision trace.
type Config struct {
	// Dir is the directory where trace files are stored.
	Dir string
	// RetentionDays is the number of days to keep trace files (default 7).
	RetentionDays int
}

// Writer appends decisions to a dated JSONL file, rotating at UTC midnight
// and deleting files older than the retention period.
type Writer struct {
	dir           string
	retentionDays int
	currentFile   *os.File
	currentDate   string
	mu            sync.Mutex
	logger        *slog.Logger
	cancel        context.CancelFunc
	done          chan struct{}
	closed        bool
}

// NewWriter creates the trace directory if needed, opens today's file, runs
// retention cleanup, and starts the hourly cleanup goroutine.
func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Writer{
		dir:           cfg.Dir,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := w.openFileLocked(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	w.runCleanup()
	go w.cleanupLoop(ctx)

	return w, nil
}

// Record appends one decision as a JSON line, rotating first if the
// decision's date differs from the open file's.
func (w *Writer) Record(_ context.Context, d policy.Decision) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("trace writer closed")
	}

	dateStr := d.Timestamp.UTC().Format("2006-01-02")
	if dateStr != w.currentDate {
		if err := w.rotateLocked(dateStr); err != nil {
			return fmt.Errorf("trace rotation: %w", err)
		}
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	if _, err := w.currentFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// Flush forces pending records to disk by syncing the current file.
func (w *Writer) Flush(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile != nil {
		return w.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.cancel()
	<-w.done

	if w.currentFile != nil {
		_ = w.currentFile.Sync()
		err := w.currentFile.Close()
		w.currentFile = nil
		return err
	}
	return nil
}

// openFileLocked opens or creates the trace file for the given date.
// Must be called with w.mu held (or before the writer is shared).
func (w *Writer) openFileLocked(dateStr string) error {
	path := filepath.Join(w.dir, fmt.Sprintf("decisions-%s.jsonl", dateStr))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open file %s: %w", path, err)
	}
	w.currentFile = f
	w.currentDate = dateStr
	return nil
}

// rotateLocked closes the current file and opens one for the new date.
// Must be called with w.mu held.
func (w *Writer) rotateLocked(dateStr string) error {
	if w.currentFile != nil {
		_ = w.currentFile.Sync()
		_ = w.currentFile.Close()
		w.currentFile = nil
	}
	return w.openFileLocked(dateStr)
}

// runCleanup deletes trace files older than the retention period.
func (w *Writer) runCleanup() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("trace cleanup: failed to read directory", "dir", w.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)
	deleted := 0

	for _, e := range entries {
		matches := traceFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", matches[1])
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil {
				w.logger.Error("trace cleanup: failed to delete file", "file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		w.logger.Info("trace cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup every hour until the context is cancelled.
func (w *Writer) cleanupLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCleanup()
		}
	}
}

// Compile-time interface verification.
var _ policy.DecisionLog = (*Writer)(nil)
