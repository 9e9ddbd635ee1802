// Package cache persists extraction results next to their source policy
// documents so that re-ingesting an unchanged document skips the LLM
// pipeline entirely.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// Suffix is appended to the source document path to form the cache path.
const Suffix = ".cache.json"

// FileStore reads and writes per-document extraction caches. Writes are
// atomic (write-tmp-then-rename) and guarded by an flock on path+".lock"
// for cross-process safety plus a mutex for in-process safety.
type FileStore struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates a FileStore.
func NewFileStore(logger *slog.Logger) *FileStore {
	return &FileStore{logger: logger}
}

// Path returns the cache path for a source document.
func (s *FileStore) Path(documentPath string) string {
	return documentPath + Suffix
}

// Load returns the cached definitions for the document, or (nil, false, nil)
// when no cache exists. A cache that exists but fails to parse is an error:
// silently re-extracting would mask a corrupted file.
func (s *FileStore) Load(documentPath string) ([]policy.Definition, bool, error) {
	cachePath := s.Path(documentPath)
	data, err := os.ReadFile(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read extraction cache: %w", err)
	}
	defs, err := policy.ParseDefinitions(data)
	if err != nil {
		return nil, false, fmt.Errorf("parse extraction cache %s: %w", cachePath, err)
	}
	s.logger.Info("extraction cache hit", "path", cachePath, "rules", len(defs))
	return defs, true, nil
}

// Save writes the definitions to the document's cache path.
//
// The write sequence is:
//  1. Acquire in-process mutex
//  2. Acquire flock on cache path+".lock"
//  3. Marshal definitions as indented JSON
//  4. Write to cache path+".tmp" with 0600 permissions
//  5. Fsync the temp file
//  6. Rename cache path+".tmp" -> cache path
func (s *FileStore) Save(documentPath string, defs []policy.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cachePath := s.Path(documentPath)

	lockPath := cachePath + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	data, err := json.MarshalIndent(defs, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal extraction cache: %w", err)
	}
	data = append(data, '\n')

	if err := writeAtomic(cachePath, data); err != nil {
		return err
	}

	s.logger.Debug("extraction cache saved", "path", cachePath, "rules", len(defs))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over the
// target path. On any error the temp file is cleaned up.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to cache: %w", err)
	}
	return nil
}
