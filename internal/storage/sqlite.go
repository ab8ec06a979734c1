package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kanbot/internal/event"
	"kanbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (and migrates) the SQLite store at cfg.Path.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Setting(ctx context.Context, key string) (string, error) {
	return s.scanValue(ctx, "SELECT value FROM settings WHERE key = ?", key)
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func (s *sqliteStore) UserMetadata(ctx context.Context, userID int64, key string) (string, error) {
	return s.scanValue(ctx, "SELECT value FROM user_metadata WHERE user_id = ? AND key = ?", userID, key)
}

func (s *sqliteStore) SetUserMetadata(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_metadata (user_id, key, value) VALUES (?, ?, ?) ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value",
		userID, key, value)
	return err
}

func (s *sqliteStore) ProjectMetadata(ctx context.Context, projectID int64, key string) (string, error) {
	return s.scanValue(ctx, "SELECT value FROM project_metadata WHERE project_id = ? AND key = ?", projectID, key)
}

func (s *sqliteStore) SetProjectMetadata(ctx context.Context, projectID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO project_metadata (project_id, key, value) VALUES (?, ?, ?) ON CONFLICT(project_id, key) DO UPDATE SET value = excluded.value",
		projectID, key, value)
	return err
}

func (s *sqliteStore) ProjectByID(ctx context.Context, id int64) (event.Project, error) {
	var p event.Project
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM projects WHERE id = ?", id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return event.Project{}, err
	}
	return p, nil
}

func (s *sqliteStore) UserByID(ctx context.Context, id int64) (event.User, error) {
	var u event.User
	err := s.db.QueryRowContext(ctx, "SELECT id, name, username FROM users WHERE id = ?", id).Scan(&u.ID, &u.Name, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return event.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return event.User{}, err
	}
	return u, nil
}

func (s *sqliteStore) FindOverdueTasks(ctx context.Context, now time.Time) ([]event.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.project_id, COALESCE(p.name, ''), t.owner_id
		FROM tasks t
		LEFT JOIN projects p ON p.id = t.project_id
		WHERE t.is_active = 1 AND t.date_due > 0 AND t.date_due < ?
		ORDER BY t.date_due, t.id`,
		now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []event.Task
	for rows.Next() {
		var t event.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.ProjectID, &t.ProjectName, &t.OwnerID); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// scanValue fetches a single TEXT column; a missing row is ("", nil).
func (s *sqliteStore) scanValue(ctx context.Context, query string, args ...any) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
