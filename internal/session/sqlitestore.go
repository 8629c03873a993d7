package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/waveforge/internal/paths"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a SQLite database at path and creates the
// tables it needs.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), paths.DirPerm); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    name        TEXT    PRIMARY KEY,
    sample_rate INTEGER NOT NULL,
    amplitude   INTEGER NOT NULL,
    created     TEXT    NOT NULL,
    updated     TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    session   TEXT    NOT NULL REFERENCES sessions(name) ON DELETE CASCADE,
    kind      TEXT    NOT NULL,
    notes     TEXT    NOT NULL DEFAULT '',
    chord     TEXT    NOT NULL DEFAULT '',
    frequency REAL    NOT NULL DEFAULT 0,
    start     REAL    NOT NULL DEFAULT 0,
    duration  REAL    NOT NULL DEFAULT 0,
    created   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session, id);
`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Ensure(name string, sampleRate, amplitude int) error {
	ts := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO sessions (name, sample_rate, amplitude, created, updated)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		name, sampleRate, amplitude, ts, ts,
	)
	return err
}

// Append records ev at the end of the session. A melody or harmony event
// replaces the whole buffer on replay, so earlier events are dropped.
func (s *SQLiteStore) Append(name string, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ts := time.Now().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE sessions SET updated = ? WHERE name = ?`, ts, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if ev.Kind == KindMelody || ev.Kind == KindHarmony {
		if _, err := tx.Exec(`DELETE FROM events WHERE session = ?`, name); err != nil {
			return err
		}
	}

	notesJSON, err := encodeNotes(ev)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO events (session, kind, notes, chord, frequency, start, duration, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, string(ev.Kind), notesJSON, ev.Chord,
		ev.Note.Frequency, ev.Note.Start, ev.Note.Duration, ts,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Get(name string) (Session, error) {
	var sess Session
	var created, updated string
	err := s.db.QueryRow(
		`SELECT name, sample_rate, amplitude, created, updated FROM sessions WHERE name = ?`, name,
	).Scan(&sess.Name, &sess.SampleRate, &sess.Amplitude, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Session{}, err
	}
	sess.Created, _ = time.Parse(time.RFC3339, created)
	sess.Updated, _ = time.Parse(time.RFC3339, updated)

	rows, err := s.db.Query(
		`SELECT id, kind, notes, chord, frequency, start, duration, created
		 FROM events WHERE session = ? ORDER BY id`, name,
	)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev Event
		var kind, notesJSON, ts string
		if err := rows.Scan(&ev.ID, &kind, &notesJSON, &ev.Chord,
			&ev.Note.Frequency, &ev.Note.Start, &ev.Note.Duration, &ts); err != nil {
			return Session{}, err
		}
		ev.Kind = Kind(kind)
		if notesJSON != "" {
			if err := json.Unmarshal([]byte(notesJSON), &ev.Notes); err != nil {
				return Session{}, fmt.Errorf("event %d: decoding notes: %w", ev.ID, err)
			}
		}
		ev.Created, _ = time.Parse(time.RFC3339, ts)
		sess.Events = append(sess.Events, ev)
	}
	return sess, rows.Err()
}

func (s *SQLiteStore) List() ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT s.name, s.sample_rate, s.updated, COUNT(e.id)
		 FROM sessions s LEFT JOIN events e ON e.session = s.name
		 GROUP BY s.name ORDER BY s.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.Name, &sum.SampleRate, &updated, &sum.Events); err != nil {
			return nil, err
		}
		sum.Updated, _ = time.Parse(time.RFC3339, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Reset deletes the session and its events. Resetting a missing session
// is not an error.
func (s *SQLiteStore) Reset(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events WHERE session = ?`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// encodeNotes returns a melody's note names as a JSON array. Names are
// free text, so they are never joined on a separator. Other kinds store
// an empty string.
func encodeNotes(ev Event) (string, error) {
	if ev.Kind != KindMelody {
		return "", nil
	}
	names := ev.Notes
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encoding notes: %w", err)
	}
	return string(data), nil
}
