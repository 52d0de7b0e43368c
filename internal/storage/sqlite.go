package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"lead_bot/internal/filter"
	"lead_bot/internal/model"
	"lead_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertWorkspace creates the workspace or updates its channel and window.
func (s *SQLite) UpsertWorkspace(ctx context.Context, ws *model.Workspace) error {
	if ws.Window == "" {
		ws.Window = model.WindowDay
	}
	now := s.now().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, channel_id, post_window, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   channel_id = excluded.channel_id,
		   post_window = excluded.post_window,
		   updated_at = excluded.updated_at`,
		ws.ID, ws.ChannelID, string(ws.Window), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	stored, err := s.GetWorkspace(ctx, ws.ID)
	if err != nil {
		return err
	}
	*ws = *stored
	return nil
}

// GetWorkspace returns the settings of one workspace, or ErrNotFound.
func (s *SQLite) GetWorkspace(ctx context.Context, id int64) (*model.Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, post_window, created_at, updated_at FROM workspaces WHERE id = ?`, id,
	)
	ws, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %d: %w", id, ErrNotFound)
	}
	return ws, err
}

// ListWorkspaces returns every configured workspace.
func (s *SQLite) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, post_window, created_at, updated_at FROM workspaces ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

// AddPhrase registers a trimmed phrase. It reports false when the phrase, or
// one differing only in case or spacing, already exists.
func (s *SQLite) AddPhrase(ctx context.Context, workspaceID int64, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("phrase is empty")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO phrases (workspace_id, phrase, phrase_key, created_at) VALUES (?, ?, ?, ?)`,
		workspaceID, text, filter.Key(text), s.now().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert phrase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListPhrases returns the workspace's phrases in insertion order.
func (s *SQLite) ListPhrases(ctx context.Context, workspaceID int64) ([]model.Phrase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, phrase, created_at FROM phrases WHERE workspace_id = ? ORDER BY id`, workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var phrases []model.Phrase
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, *p)
	}
	return phrases, rows.Err()
}

// GetPhrase returns a single phrase by its ID, or ErrNotFound.
func (s *SQLite) GetPhrase(ctx context.Context, id int64) (*model.Phrase, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, phrase, created_at FROM phrases WHERE id = ?`, id,
	)
	p, err := scanPhrase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("phrase %d: %w", id, ErrNotFound)
	}
	return p, err
}

// RemovePhrase deletes the phrase matching text regardless of case and
// spacing. It reports false when nothing was deleted.
func (s *SQLite) RemovePhrase(ctx context.Context, workspaceID int64, text string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM phrases WHERE workspace_id = ? AND phrase_key = ?`, workspaceID, filter.Key(text),
	)
	if err != nil {
		return false, fmt.Errorf("delete phrase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearPhrases deletes every phrase of the workspace and returns how many were removed.
func (s *SQLite) ClearPhrases(ctx context.Context, workspaceID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM phrases WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("clear phrases: %w", err)
	}
	return res.RowsAffected()
}

// IsNotified checks whether a post was already delivered to the workspace.
func (s *SQLite) IsNotified(ctx context.Context, workspaceID int64, postID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notified_posts WHERE workspace_id = ? AND post_id = ?`,
		workspaceID, postID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notified: %w", err)
	}
	return count > 0, nil
}

// RecordNotified stores a delivered post. A second record for the same
// (workspace, post) fails with ErrConflict.
func (s *SQLite) RecordNotified(ctx context.Context, p *model.NotifiedPost) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notified_posts (workspace_id, post_id, phrase, title, url, subreddit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.WorkspaceID, p.PostID, p.Phrase, p.Title, p.URL, p.Subreddit, p.CreatedAt.UTC().Format(timeLayout),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("record notified %s: %w", p.PostID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("record notified: %w", err)
	}
	return nil
}

// ForgetNotified removes a record so the post can be delivered again.
func (s *SQLite) ForgetNotified(ctx context.Context, workspaceID int64, postID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notified_posts WHERE workspace_id = ? AND post_id = ?`, workspaceID, postID,
	)
	if err != nil {
		return fmt.Errorf("forget notified: %w", err)
	}
	return nil
}

// CountNotified returns how many posts the workspace has been sent.
func (s *SQLite) CountNotified(ctx context.Context, workspaceID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notified_posts WHERE workspace_id = ?`, workspaceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notified: %w", err)
	}
	return count, nil
}

// PruneNotified deletes records created before the given instant.
func (s *SQLite) PruneNotified(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notified_posts WHERE created_at < ?`, before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune notified: %w", err)
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

type scannable interface {
	Scan(dest ...any) error
}

func scanWorkspace(row scannable) (*model.Workspace, error) {
	var ws model.Workspace
	var window, created, updated string
	if err := row.Scan(&ws.ID, &ws.ChannelID, &window, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	ws.Window = model.Window(window)
	ws.CreatedAt, _ = time.Parse(timeLayout, created)
	ws.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &ws, nil
}

func scanPhrase(row scannable) (*model.Phrase, error) {
	var p model.Phrase
	var created string
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Text, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan phrase: %w", err)
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	return &p, nil
}
