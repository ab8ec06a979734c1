// Package routing resolves the delivery credentials for a notification
// target: bot API key, bot username, and destination chat id.
//
// API key and bot username use two-tier resolution: the per-entity metadata
// value wins, the global setting is the fallback. The chat id is per-entity
// only. A destination is inherently per-recipient, so a global fallback for
// it would misroute messages; the asymmetry is deliberate and covered by
// tests.
package routing

import (
	"context"

	"kanbot/pkg/logx"
)

// Setting keys, shared with the host's persisted configuration surface.
const (
	KeyAPIKey      = "telegram_apikey"
	KeyBotUsername = "telegram_username"
	KeyUserChatID  = "telegram_user_cid"
	KeyGroupChatID = "telegram_group_cid"
)

// MetadataStore reads a per-entity setting. A missing key yields ("", nil).
type MetadataStore interface {
	Get(ctx context.Context, entityID int64, key string) (string, error)
}

// MetadataFunc adapts a function to MetadataStore.
type MetadataFunc func(ctx context.Context, entityID int64, key string) (string, error)

func (f MetadataFunc) Get(ctx context.Context, entityID int64, key string) (string, error) {
	return f(ctx, entityID, key)
}

// SettingsStore reads a global setting. A missing key yields ("", nil).
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// SettingsFunc adapts a function to SettingsStore.
type SettingsFunc func(ctx context.Context, key string) (string, error)

func (f SettingsFunc) Get(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// Config is the resolved credential triple for one delivery attempt.
// Empty fields mean "not configured"; resolution itself never fails.
type Config struct {
	APIKey      string
	BotUsername string
	ChatID      string
}

// Sendable reports whether a delivery attempt is permitted. Only the API key
// gates sending; an empty ChatID is passed through and left to the messaging
// client to reject.
func (c Config) Sendable() bool { return c.APIKey != "" }

// Resolver reads routing configuration for users and projects.
// It holds no state across calls; every resolution re-reads the stores.
type Resolver struct {
	users    MetadataStore
	projects MetadataStore
	settings SettingsStore
	log      logx.Logger
}

func NewResolver(users, projects MetadataStore, settings SettingsStore, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{users: users, projects: projects, settings: settings, log: log}
}

// ForUser resolves the credential triple for a user target.
func (r *Resolver) ForUser(ctx context.Context, userID int64) Config {
	return Config{
		APIKey:      r.entityOrGlobal(ctx, r.users, userID, KeyAPIKey),
		BotUsername: r.entityOrGlobal(ctx, r.users, userID, KeyBotUsername),
		ChatID:      r.entityOnly(ctx, r.users, userID, KeyUserChatID),
	}
}

// ForProject resolves the credential triple for a project target.
func (r *Resolver) ForProject(ctx context.Context, projectID int64) Config {
	return Config{
		APIKey:      r.entityOrGlobal(ctx, r.projects, projectID, KeyAPIKey),
		BotUsername: r.entityOrGlobal(ctx, r.projects, projectID, KeyBotUsername),
		ChatID:      r.entityOnly(ctx, r.projects, projectID, KeyGroupChatID),
	}
}

// entityOrGlobal is the two-tier lookup: per-entity value, then global.
func (r *Resolver) entityOrGlobal(ctx context.Context, store MetadataStore, id int64, key string) string {
	if v := r.entityOnly(ctx, store, id, key); v != "" {
		return v
	}
	if r.settings == nil {
		return ""
	}
	v, err := r.settings.Get(ctx, key)
	if err != nil {
		r.log.Debug("global setting lookup failed", logx.String("key", key), logx.Err(err))
		return ""
	}
	return v
}

func (r *Resolver) entityOnly(ctx context.Context, store MetadataStore, id int64, key string) string {
	if store == nil {
		return ""
	}
	v, err := store.Get(ctx, id, key)
	if err != nil {
		r.log.Debug("metadata lookup failed", logx.Int64("entity_id", id), logx.String("key", key), logx.Err(err))
		return ""
	}
	return v
}
