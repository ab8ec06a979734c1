// Package storage is the host-owned persistence surface the dispatch core
// reads: global settings, per-entity metadata, and the project/user/task
// records events refer to.
package storage

import (
	"context"
	"errors"
	"time"

	"kanbot/internal/event"
)

var ErrNotFound = errors.New("storage: not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store is the read/write surface over the host schema.
//
// Lookup conventions:
//   - settings/metadata: a missing key is ("", nil), not an error
//   - record lookups: a missing row is ErrNotFound
type Store interface {
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	UserMetadata(ctx context.Context, userID int64, key string) (string, error)
	SetUserMetadata(ctx context.Context, userID int64, key, value string) error

	ProjectMetadata(ctx context.Context, projectID int64, key string) (string, error)
	SetProjectMetadata(ctx context.Context, projectID int64, key, value string) error

	ProjectByID(ctx context.Context, id int64) (event.Project, error)
	UserByID(ctx context.Context, id int64) (event.User, error)

	// FindOverdueTasks returns open tasks whose due date has passed,
	// ordered by due date then id.
	FindOverdueTasks(ctx context.Context, now time.Time) ([]event.Task, error)

	Close() error
}
