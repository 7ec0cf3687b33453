package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/logging"
)

// migration is a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				version     INTEGER NOT NULL,
				state       TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL,
				expires_at  TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_expires ON sessions (expires_at);
		`,
	},
}

// SQLiteStore is a Store persisted to SQLite, for deployments that must
// survive restarts. The full session is stored as one JSON document;
// the version column carries the compare-and-swap stamp.
type SQLiteStore struct {
	sql  *sql.DB
	ttl  time.Duration
	log  *logging.Logger
	stop chan struct{}
}

// OpenSQLite opens (or creates) the database at path, runs migrations,
// and starts the expiry reaper. Use ":memory:" for tests.
func OpenSQLite(path string, ttl time.Duration, log *logging.Logger) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == ":memory:" {
		// One shared connection, or each pooled conn gets its own empty db.
		sqlDB.SetMaxOpenConns(1)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	s := &SQLiteStore{
		sql:  sqlDB,
		ttl:  ttl,
		log:  log.Sub("store.sqlite"),
		stop: make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	go s.reap()
	s.log.Info().Str("path", path).Msg("session database opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.sql.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version,
		).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		s.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		tx, err := s.sql.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// reap deletes expired sessions once a minute until Close.
func (s *SQLiteStore) reap() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			res, err := s.sql.Exec(
				"DELETE FROM sessions WHERE expires_at < ?",
				time.Now().UTC().Format(time.RFC3339),
			)
			if err != nil {
				s.log.Warn().Err(err).Msg("session reap failed")
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				s.log.Info().Int64("count", n).Msg("expired sessions reaped")
			}
		}
	}
}

func (s *SQLiteStore) Create(trip domain.TripInfo) (*domain.Session, error) {
	sess := newSession(trip)
	doc, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.sql.Exec(
		`INSERT INTO sessions (id, version, state, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Version, string(doc),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
		now.Add(s.ttl).Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Get(id string) (*domain.Session, error) {
	return s.load(id, true)
}

func (s *SQLiteStore) Peek(id string) (*domain.Session, error) {
	return s.load(id, false)
}

func (s *SQLiteStore) load(id string, refreshTTL bool) (*domain.Session, error) {
	var doc, expiresAt string
	err := s.sql.QueryRow(
		"SELECT state, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&doc, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if exp, err := time.Parse(time.RFC3339, expiresAt); err == nil && exp.Before(time.Now().UTC()) {
		s.sql.Exec("DELETE FROM sessions WHERE id = ?", id)
		return nil, ErrSessionNotFound
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if refreshTTL {
		// Sliding TTL.
		s.sql.Exec(
			"UPDATE sessions SET expires_at = ? WHERE id = ?",
			time.Now().UTC().Add(s.ttl).Format(time.RFC3339), id,
		)
	}
	return &sess, nil
}

func (s *SQLiteStore) Commit(updated *domain.Session, baseVersion int64) (*domain.Session, error) {
	committed := updated.Clone()
	committed.Version = baseVersion + 1
	committed.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(committed)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	// The WHERE clause on version is the compare-and-swap: zero rows
	// updated means another turn committed after our snapshot was read.
	res, err := s.sql.Exec(
		`UPDATE sessions SET version = ?, state = ?, updated_at = ?, expires_at = ?
		 WHERE id = ? AND version = ?`,
		committed.Version, string(doc),
		committed.UpdatedAt.Format(time.RFC3339),
		committed.UpdatedAt.Add(s.ttl).Format(time.RFC3339),
		committed.ID, baseVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("commit result: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.sql.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", committed.ID).Scan(&exists); err == nil && exists == 0 {
			return nil, ErrSessionNotFound
		}
		return nil, ErrStaleSession
	}
	return committed, nil
}

func (s *SQLiteStore) Delete(id string) error {
	_, err := s.sql.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) List() []string {
	rows, err := s.sql.Query("SELECT id FROM sessions WHERE expires_at >= ?", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.log.Warn().Err(err).Msg("listing sessions failed")
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *SQLiteStore) Close() error {
	close(s.stop)
	s.log.Info().Msg("closing session database")
	return s.sql.Close()
}
