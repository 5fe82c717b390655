package calendar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	start_ts    INTEGER NOT NULL,
	end_ts      INTEGER NOT NULL,
	tags        TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	series_id   TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user_start ON events(user_id, start_ts);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status, updated_at);
`

const eventColumns = `id, user_id, title, description, location, start_ts, end_ts, tags, status, source, series_id, created_at, updated_at`

// SQLiteStore persists events in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
}

// OpenSQLite opens (creating if needed) the database at path. Times are
// returned in loc; nil means time.Local.
func OpenSQLite(path string, loc *time.Location) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ConfigureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteStore(db, loc)
}

// ConfigureSQLite applies the connection settings shared by every store
// using the same database file.
func ConfigureSQLite(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// NewSQLiteStore wraps an already configured database handle and creates the
// schema.
func NewSQLiteStore(db *sql.DB, loc *time.Location) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.Local
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("failed to create events schema: %w", err)
	}
	return &SQLiteStore{db: db, loc: loc}, nil
}

// DB exposes the handle so other stores can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Insert(ctx context.Context, events ...Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		args, err := eventArgs(ev)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, ev Event) error {
	tags, err := json.Marshal(ev.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE events SET title = ?, description = ?, location = ?, start_ts = ?, end_ts = ?,
		tags = ?, status = ?, source = ?, series_id = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		ev.Title, ev.Description, ev.Location, ev.Start.UnixNano(), ev.End.UnixNano(),
		string(tags), string(ev.Status), ev.Source, ev.SeriesID, ev.UpdatedAt.UnixNano(), ev.UserID, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", ev.ID, err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE user_id = ? AND id = ?`, userID, id)
	ev, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) List(ctx context.Context, userID string, window TimeRange) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = ?`
	args := []any{userID}
	if !window.End.IsZero() {
		query += ` AND start_ts < ?`
		args = append(args, window.End.UnixNano())
	}
	if !window.Start.IsZero() {
		query += ` AND end_ts > ?`
		args = append(args, window.Start.UnixNano())
	}
	query += ` ORDER BY start_ts, end_ts`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PurgeCancelled(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE status = ? AND updated_at < ?`,
		string(StatusCancelled), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cancelled events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(r rowScanner) (Event, error) {
	var (
		ev                                 Event
		startNS, endNS, createdNS, updated int64
		tags, status                       string
	)
	err := r.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.Description, &ev.Location,
		&startNS, &endNS, &tags, &status, &ev.Source, &ev.SeriesID, &createdNS, &updated)
	if err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal([]byte(tags), &ev.Tags); err != nil {
		return Event{}, fmt.Errorf("failed to decode tags for %s: %w", ev.ID, err)
	}
	if ev.Tags == nil {
		ev.Tags = []string{}
	}
	ev.Status = EventStatus(status)
	ev.Start = time.Unix(0, startNS).In(s.loc)
	ev.End = time.Unix(0, endNS).In(s.loc)
	ev.CreatedAt = time.Unix(0, createdNS).In(s.loc)
	ev.UpdatedAt = time.Unix(0, updated).In(s.loc)
	return ev, nil
}

func eventArgs(ev Event) ([]any, error) {
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return []any{
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.Location,
		ev.Start.UnixNano(), ev.End.UnixNano(), string(encoded), string(ev.Status),
		ev.Source, ev.SeriesID, ev.CreatedAt.UnixNano(), ev.UpdatedAt.UnixNano(),
	}, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
