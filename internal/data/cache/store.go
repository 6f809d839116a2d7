package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store is the SQLite transform cache. Safe for concurrent use; writes are
// serialized on one connection.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the entry for path; ok is false when none is stored.
func (s *Store) Lookup(path string) (entry FileEntry, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updatedRaw, resolvedRaw string
	err = s.withRetry("lookup file", func() error {
		row := s.db.QueryRow(`
SELECT path, content_hash, options_hash, output_hash, rewritten, resolved, updated_at_utc
FROM files WHERE path = ?`, path)
		return row.Scan(&entry.Path, &entry.ContentHash, &entry.OptionsHash, &entry.OutputHash, &entry.Rewritten, &resolvedRaw, &updatedRaw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return FileEntry{}, false, nil
	}
	if err != nil {
		return FileEntry{}, false, err
	}

	ts, err := time.Parse(time.RFC3339Nano, updatedRaw)
	if err != nil {
		return FileEntry{}, false, fmt.Errorf("parse updated_at %q: %w", updatedRaw, err)
	}
	entry.UpdatedAt = ts.UTC()
	if err := json.Unmarshal([]byte(resolvedRaw), &entry.Resolved); err != nil {
		return FileEntry{}, false, fmt.Errorf("decode resolved sites for %q: %w", path, err)
	}
	return entry, true, nil
}

func (s *Store) Put(entry FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(entry.Path) == "" {
		return fmt.Errorf("cache entry path must not be empty")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	resolved := entry.Resolved
	if resolved == nil {
		resolved = []ResolvedSite{}
	}
	resolvedRaw, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("encode resolved sites for %q: %w", entry.Path, err)
	}

	return s.withRetry("put file", func() error {
		_, err := s.db.Exec(`
INSERT INTO files (path, content_hash, options_hash, output_hash, rewritten, resolved, updated_at_utc)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  content_hash=excluded.content_hash,
  options_hash=excluded.options_hash,
  output_hash=excluded.output_hash,
  rewritten=excluded.rewritten,
  resolved=excluded.resolved,
  updated_at_utc=excluded.updated_at_utc
`,
			entry.Path,
			entry.ContentHash,
			entry.OptionsHash,
			entry.OutputHash,
			entry.Rewritten,
			string(resolvedRaw),
			entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("delete file", func() error {
		_, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
		return err
	})
}

// SaveRun inserts or updates a run row.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		return fmt.Errorf("run id must be set")
	}
	finished := ""
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	return s.withRetry("save run", func() error {
		_, err := s.db.Exec(`
INSERT INTO runs (id, mode, started_at_utc, finished_at_utc, files, rewritten, failed)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  finished_at_utc=excluded.finished_at_utc,
  files=excluded.files,
  rewritten=excluded.rewritten,
  failed=excluded.failed
`,
			run.ID.String(),
			run.Mode,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			finished,
			run.Files,
			run.Rewritten,
			run.Failed,
		)
		return err
	})
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT id, mode, started_at_utc, finished_at_utc, files, rewritten, failed
FROM runs ORDER BY started_at_utc DESC LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			idRaw       string
			startedRaw  string
			finishedRaw string
			run         Run
		)
		if err := rows.Scan(&idRaw, &run.Mode, &startedRaw, &finishedRaw, &run.Files, &run.Rewritten, &run.Failed); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.ID, err = uuid.Parse(idRaw); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", idRaw, err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run start %q: %w", startedRaw, err)
		}
		run.StartedAt = started.UTC()
		if finishedRaw != "" {
			finished, err := time.Parse(time.RFC3339Nano, finishedRaw)
			if err != nil {
				return nil, fmt.Errorf("parse run finish %q: %w", finishedRaw, err)
			}
			run.FinishedAt = finished.UTC()
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// IsCorruptError reports errors that mean the cache file should be discarded.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
