// Package prefs persists the only client-side durable state: user
// preferences and the auth session. Task snapshots are never written here.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quickhand-app/quickhand/internal/paths"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Session is the persisted auth state for the signed-in user.
type Session struct {
	UserID    string
	AuthToken string
	Locale    string
	UpdatedAt string
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DefaultPath returns the on-disk location of the prefs database,
// ~/.quickhand/quickhand.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return paths.DBPath(home), nil
}

// Open opens (creating if needed) the prefs database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000`)
	return db, nil
}

// Init runs migrations using PRAGMA user_version.
func (s *Store) Init() error {
	var ver int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&ver); err != nil {
		return err
	}
	if ver >= 1 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// v1 schema
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS prefs (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS session (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  user_id TEXT NOT NULL,
  auth_token TEXT NOT NULL,
  locale TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1`); err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns the value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set writes a preference, retrying on transient SQLITE_BUSY.
func (s *Store) Set(key, value string) error {
	return s.execWithRetries(
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, nowStamp(),
	)
}

// Delete removes a preference. Removing an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.execWithRetries(`DELETE FROM prefs WHERE key = ?`, key)
}

// SaveSession stores the singleton auth session.
func (s *Store) SaveSession(sess Session) error {
	if sess.UserID == "" || sess.AuthToken == "" {
		return fmt.Errorf("session requires user_id and auth_token")
	}
	return s.execWithRetries(
		`INSERT INTO session (id, user_id, auth_token, locale, updated_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, auth_token = excluded.auth_token,
		   locale = excluded.locale, updated_at = excluded.updated_at`,
		sess.UserID, sess.AuthToken, sess.Locale, nowStamp(),
	)
}

// LoadSession returns the stored session, or ErrNotFound when signed out.
func (s *Store) LoadSession() (*Session, error) {
	row := s.db.QueryRow(`SELECT user_id, auth_token, locale, updated_at FROM session WHERE id = 1`)
	var sess Session
	if err := row.Scan(&sess.UserID, &sess.AuthToken, &sess.Locale, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// ClearSession signs the user out.
func (s *Store) ClearSession() error {
	return s.execWithRetries(`DELETE FROM session WHERE id = 1`)
}

func (s *Store) execWithRetries(query string, args ...any) error {
	const maxRetries = 5
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		_, err := s.db.Exec(query, args...)
		if err == nil {
			return nil
		}
		lastErr = err
		if isSqliteBusy(err) {
			time.Sleep(time.Duration(10*(1<<i)) * time.Millisecond)
			continue
		}
		return err
	}
	return lastErr
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// isSqliteBusy reports whether err represents a busy/locked sqlite condition.
func isSqliteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return msg == "database is locked" || msg == "database is busy" || strings.Contains(msg, "SQLITE_BUSY")
}
