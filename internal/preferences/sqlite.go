package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const preferencesSchema = `
CREATE TABLE IF NOT EXISTS preferences (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	pref_key    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	value       TEXT NOT NULL DEFAULT '',
	weight      REAL NOT NULL DEFAULT 1.0,
	embedding   TEXT NOT NULL DEFAULT '[]',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	UNIQUE(user_id, pref_key)
);
`

const preferenceColumns = `id, user_id, pref_key, description, value, weight, embedding, created_at, updated_at`

// SQLiteRepository stores preferences in SQLite. Embeddings are kept as JSON
// arrays and scored in process.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteRepository creates the schema on db, which is typically shared
// with the calendar store.
func NewSQLiteRepository(db *sql.DB, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if _, err := db.Exec(preferencesSchema); err != nil {
		return nil, fmt.Errorf("failed to create preferences schema: %w", err)
	}
	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p Preference) (Preference, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Preference{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := r.scan(tx.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM preferences WHERE user_id = ? AND pref_key = ?`, p.UserID, p.Key))
	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
	case err != nil:
		return Preference{}, false, err
	default:
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}

	emb, err := json.Marshal(p.Embedding)
	if err != nil {
		return Preference{}, false, fmt.Errorf("failed to encode embedding: %w", err)
	}
	if created {
		_, err = tx.ExecContext(ctx, `INSERT INTO preferences (`+preferenceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.Key, p.Description, p.Value, p.Weight, string(emb), p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE preferences SET description = ?, value = ?, weight = ?, embedding = ?, updated_at = ? WHERE id = ?`,
			p.Description, p.Value, p.Weight, string(emb), p.UpdatedAt.UnixNano(), p.ID)
	}
	if err != nil {
		return Preference{}, false, fmt.Errorf("failed to store preference: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Preference{}, false, fmt.Errorf("failed to commit preference: %w", err)
	}
	return p, created, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Preference, error) {
	p, err := r.scan(r.db.QueryRowContext(ctx, `SELECT `+preferenceColumns+` FROM preferences WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, ErrNotFound
	}
	return p, err
}

func (r *SQLiteRepository) List(ctx context.Context, userID, key string) ([]Preference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM preferences WHERE user_id = ?`
	args := []any{userID}
	if key != "" {
		query += ` AND pref_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateWeight(ctx context.Context, id string, weight float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE preferences SET weight = ?, updated_at = ? WHERE id = ?`,
		weight, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update weight: %w", err)
	}
	return oneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return oneRow(res)
}

func (r *SQLiteRepository) Clear(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear preferences: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scan(s scanner) (Preference, error) {
	var (
		p                  Preference
		emb                string
		createdNS, updated int64
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.Key, &p.Description, &p.Value, &p.Weight, &emb, &createdNS, &updated); err != nil {
		return Preference{}, err
	}
	if err := json.Unmarshal([]byte(emb), &p.Embedding); err != nil {
		return Preference{}, fmt.Errorf("failed to decode embedding for %s: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(0, createdNS).In(r.loc)
	p.UpdatedAt = time.Unix(0, updated).In(r.loc)
	return p, nil
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
