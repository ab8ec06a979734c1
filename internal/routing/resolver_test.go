package routing

import (
	"context"
	"errors"
	"testing"

	"kanbot/pkg/logx"
)

type fakeMeta map[int64]map[string]string

func (f fakeMeta) Get(_ context.Context, id int64, key string) (string, error) {
	return f[id][key], nil
}

type fakeSettings map[string]string

func (f fakeSettings) Get(_ context.Context, key string) (string, error) {
	return f[key], nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, int64, string) (string, error) {
	return "", errors.New("store down")
}

func TestForUserFallbackPrecedence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		userMeta fakeMeta
		settings fakeSettings
		want     Config
	}{
		{
			name:     "per-user override wins",
			userMeta: fakeMeta{7: {KeyAPIKey: "user-key", KeyBotUsername: "user_bot", KeyUserChatID: "100"}},
			settings: fakeSettings{KeyAPIKey: "global-key", KeyBotUsername: "global_bot"},
			want:     Config{APIKey: "user-key", BotUsername: "user_bot", ChatID: "100"},
		},
		{
			name:     "global fallback when per-user empty",
			userMeta: fakeMeta{7: {KeyUserChatID: "100"}},
			settings: fakeSettings{KeyAPIKey: "global-key", KeyBotUsername: "global_bot"},
			want:     Config{APIKey: "global-key", BotUsername: "global_bot", ChatID: "100"},
		},
		{
			name:     "chat id never falls back to a global value",
			userMeta: fakeMeta{7: {KeyAPIKey: "user-key"}},
			settings: fakeSettings{KeyAPIKey: "global-key", KeyUserChatID: "999"},
			want:     Config{APIKey: "user-key", ChatID: ""},
		},
		{
			name:     "everything absent resolves to empty strings",
			userMeta: fakeMeta{},
			settings: fakeSettings{},
			want:     Config{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.userMeta, nil, tt.settings, logx.Nop())
			got := r.ForUser(context.Background(), 7)
			if got != tt.want {
				t.Fatalf("ForUser = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestForProjectUsesGroupChatKey(t *testing.T) {
	t.Parallel()
	projects := fakeMeta{9: {
		KeyAPIKey:      "proj-key",
		KeyGroupChatID: "-200",
		// a stray per-project user chat id must be ignored
		KeyUserChatID: "111",
	}}
	r := NewResolver(nil, projects, fakeSettings{}, logx.Nop())

	got := r.ForProject(context.Background(), 9)
	want := Config{APIKey: "proj-key", ChatID: "-200"}
	if got != want {
		t.Fatalf("ForProject = %+v, want %+v", got, want)
	}
}

func TestLookupErrorsResolveToEmpty(t *testing.T) {
	t.Parallel()
	r := NewResolver(failingStore{}, failingStore{}, fakeSettings{KeyAPIKey: "global-key"}, logx.Nop())

	got := r.ForUser(context.Background(), 1)
	// per-user lookup failed; the global tier still applies for the api key
	if got.APIKey != "global-key" {
		t.Fatalf("APIKey = %q, want global fallback", got.APIKey)
	}
	if got.ChatID != "" {
		t.Fatalf("ChatID = %q, want empty on lookup failure", got.ChatID)
	}
}

func TestSendableGatesOnAPIKeyOnly(t *testing.T) {
	t.Parallel()
	if (Config{APIKey: "k"}).Sendable() != true {
		t.Fatal("config with api key must be sendable even without chat id")
	}
	if (Config{ChatID: "100", BotUsername: "bot"}).Sendable() {
		t.Fatal("config without api key must not be sendable")
	}
}
