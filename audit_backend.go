// audit_backend.go: Storage backends for the layout audit trail
//
// Two backends are provided. SQLite (the default) keeps a schema-versioned,
// indexed table that can be queried for statistics; JSONL appends one JSON
// object per line and is selected by a .jsonl output file.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package layout

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend is the storage contract of the AuditLogger.
type auditBackend interface {
	// Write persists a batch of events. Must be safe for concurrent use.
	Write(events []AuditEvent) error
	Flush() error
	Close() error
	GetStats() (AuditStats, error)
}

// AuditStats summarizes the events held by an audit backend.
type AuditStats struct {
	Backend       string           `json:"backend"`
	Path          string           `json:"path"`
	TotalEvents   int64            `json:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	OldestEvent   *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time       `json:"newest_event,omitempty"`
	SizeBytes     int64            `json:"size_bytes"`
	SchemaVersion int              `json:"schema_version"`
}

func newAuditStats(backend, path string) AuditStats {
	return AuditStats{
		Backend:       backend,
		Path:          path,
		EventsByLevel: make(map[string]int64),
		EventsByName:  make(map[string]int64),
	}
}

// createAuditBackend picks JSONL for .jsonl files and SQLite otherwise,
// falling back to JSONL when SQLite cannot be opened.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config.OutputFile)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}
	if config.OutputFile == "" {
		return nil, err
	}

	jsonlBackend, jsonlErr := newJSONLBackend(config.OutputFile + ".jsonl")
	if jsonlErr != nil {
		return nil, errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("all audit backends failed, JSONL: %v", jsonlErr))
	}
	return jsonlBackend, nil
}

// defaultAuditPath is the shared database used when no output file is configured.
func defaultAuditPath() string {
	return filepath.Join(os.TempDir(), "layout", "layout-audit.db")
}

// sqliteAuditBackend stores events in a WAL-mode SQLite database.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

const auditSchemaVersion = 2

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := config.OutputFile
	if dbPath == "" {
		dbPath = defaultAuditPath()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to create audit database directory").
			WithContext("path", dbPath)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open audit database").
			WithContext("path", dbPath)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to ping audit database").
			WithContext("path", dbPath)
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}
	if err := backend.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(`
	INSERT INTO layout_audit_events (
		timestamp, level, event, component, layout_id,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to prepare audit insert statement")
	}
	backend.insertStmt = stmt
	return backend, nil
}

// ensureSchemaVersion creates or migrates the schema to auditSchemaVersion.
func (s *sqliteAuditBackend) ensureSchemaVersion() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create schema_info table")
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, ErrCodeIOError, "failed to read audit schema version")
	}
	if version >= auditSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to begin migration transaction")
	}
	for v := version; v < auditSchemaVersion; v++ {
		var stmts []string
		switch v {
		case 0:
			stmts = []string{
				`CREATE TABLE IF NOT EXISTS layout_audit_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					timestamp TEXT NOT NULL,
					level TEXT NOT NULL,
					event TEXT NOT NULL,
					component TEXT NOT NULL,
					layout_id TEXT,
					process_id INTEGER NOT NULL,
					process_name TEXT NOT NULL,
					context TEXT,
					checksum TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);`,
				"CREATE INDEX IF NOT EXISTS idx_layout_audit_timestamp ON layout_audit_events(timestamp)",
				"CREATE INDEX IF NOT EXISTS idx_layout_audit_event ON layout_audit_events(event)",
			}
		case 1:
			stmts = []string{
				"CREATE INDEX IF NOT EXISTS idx_layout_audit_layout_time ON layout_audit_events(layout_id, timestamp)",
				"CREATE INDEX IF NOT EXISTS idx_layout_audit_level_time ON layout_audit_events(level, created_at)",
			}
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return errors.Wrap(err, ErrCodeIOError, fmt.Sprintf("audit schema migration to v%d failed", v+1))
			}
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)",
		auditSchemaVersion); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, ErrCodeIOError, "failed to update audit schema version")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to commit audit schema migration")
	}
	return nil
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(ErrCodeIOError, "cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to begin audit transaction")
	}
	stmt := tx.Stmt(s.insertStmt)
	defer func() { _ = stmt.Close() }()

	for _, event := range events {
		contextJSON := ""
		if event.Context != nil {
			data, err := json.Marshal(event.Context)
			if err != nil {
				_ = tx.Rollback()
				return errors.Wrap(err, ErrCodeIOError, "failed to serialize audit context")
			}
			contextJSON = string(data)
		}
		if _, err := stmt.Exec(
			event.Timestamp.Format(time.RFC3339Nano),
			event.Level.String(),
			event.Event,
			event.Component,
			event.LayoutID,
			event.ProcessID,
			event.ProcessName,
			contextJSON,
			event.Checksum,
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, ErrCodeIOError, "failed to insert audit event")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to commit audit transaction")
	}
	return nil
}

func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to flush SQLite audit backend")
	}
	return nil
}

func (s *sqliteAuditBackend) GetStats() (AuditStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := newAuditStats("sqlite", s.dbPath)
	if s.closed {
		return stats, errors.New(ErrCodeIOError, "SQLite audit backend is closed")
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM layout_audit_events").Scan(&stats.TotalEvents); err != nil {
		return stats, errors.Wrap(err, ErrCodeIOError, "failed to count audit events")
	}
	if err := s.groupCount("level", stats.EventsByLevel); err != nil {
		return stats, err
	}
	if err := s.groupCount("event", stats.EventsByName); err != nil {
		return stats, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM layout_audit_events").
		Scan(&oldest, &newest); err != nil && err != sql.ErrNoRows {
		return stats, errors.Wrap(err, ErrCodeIOError, "failed to read audit time range")
	}
	stats.OldestEvent = parseAuditTime(oldest)
	stats.NewestEvent = parseAuditTime(newest)

	if err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").
		Scan(&stats.SchemaVersion); err != nil && err != sql.ErrNoRows {
		return stats, errors.Wrap(err, ErrCodeIOError, "failed to read audit schema version")
	}
	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// groupCount fills into with COUNT(*) grouped by column (a fixed identifier).
func (s *sqliteAuditBackend) groupCount(column string, into map[string]int64) error {
	rows, err := s.db.Query(fmt.Sprintf("SELECT %s, COUNT(*) FROM layout_audit_events GROUP BY %s", column, column))
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to group audit events").WithContext("column", column)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to scan audit stats")
		}
		into[key] = count
	}
	return rows.Err()
}

func parseAuditTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		errs = append(errs, err)
	}
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.New(ErrCodeIOError, fmt.Sprintf("errors closing SQLite audit backend: %v", errs))
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per event.
type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to create JSONL audit log directory").
			WithContext("path", path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- operator supplied audit path
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open JSONL audit log file").
			WithContext("path", path)
	}
	return &jsonlAuditBackend{file: file, path: path}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New(ErrCodeIOError, "cannot write to closed JSONL audit backend")
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to serialize audit event")
		}
		data = append(data, '\n')
		if _, err := j.file.Write(data); err != nil {
			return errors.Wrap(err, ErrCodeIOError, "failed to write audit event to JSONL")
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to sync JSONL audit file")
	}
	return nil
}

// GetStats scans the file; JSONL has no index so this is linear in its size.
func (j *jsonlAuditBackend) GetStats() (AuditStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	stats := newAuditStats("jsonl", j.path)
	stats.SchemaVersion = 1

	f, err := os.Open(j.path) // #nosec G304 -- path of our own audit file
	if err != nil {
		return stats, errors.Wrap(err, ErrCodeIOError, "failed to open JSONL audit file")
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		stats.TotalEvents++
		stats.EventsByLevel[event.Level.String()]++
		stats.EventsByName[event.Event]++
		ts := event.Timestamp
		if stats.OldestEvent == nil || ts.Before(*stats.OldestEvent) {
			stats.OldestEvent = &ts
		}
		if stats.NewestEvent == nil || ts.After(*stats.NewestEvent) {
			stats.NewestEvent = &ts
		}
	}
	if info, err := f.Stat(); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, scanner.Err()
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
