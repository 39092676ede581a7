package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileStore stores runs as JSON files in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based run store.
// If baseDir is empty, defaults to ~/.cache/blockorder/runs/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("get cache dir: %w", err)
		}
		baseDir = filepath.Join(dir, "blockorder", "runs")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) runPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *FileStore) Get(ctx context.Context, id string) (*Run, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := readRun(s.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if run.IsExpired() {
		return nil, ErrNotFound
	}
	return run, nil
}

func readRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", filepath.Base(path), err)
	}
	return &run, nil
}

func (s *FileStore) Put(ctx context.Context, run *Run) error {
	if err := ValidateID(run.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := os.WriteFile(s.runPath(run.ID), data, 0o600); err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*Run
	err := s.each(func(path string, run *Run) {
		if !run.IsExpired() {
			runs = append(runs, run.Summary())
		}
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(runs, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.runPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run file: %w", err)
	}
	return nil
}

func (s *FileStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.each(func(path string, run *Run) {
		if run.IsExpired() && os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// each calls fn for every readable run file. Unreadable files are skipped.
func (s *FileStore) each(fn func(path string, run *Run)) error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read run dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		run, err := readRun(path)
		if err != nil {
			continue
		}
		fn(path, run)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for run files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
