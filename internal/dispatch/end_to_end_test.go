package dispatch

import (
	"context"
	"strings"
	"testing"

	"kanbot/internal/event"
	"kanbot/internal/message"
	"kanbot/internal/routing"
	"kanbot/pkg/logx"
)

// These tests run the real resolver and composer against fake stores with
// only the gateway stubbed, exercising the whole decision path end to end.

type metaTable map[int64]map[string]string

func (m metaTable) Get(_ context.Context, id int64, key string) (string, error) {
	return m[id][key], nil
}

type settingsTable map[string]string

func (s settingsTable) Get(_ context.Context, key string) (string, error) {
	return s[key], nil
}

func realPipeline(users, projects metaTable, settings settingsTable, lookup mapProjects) (*Router, *spyGateway) {
	resolver := routing.NewResolver(users, projects, settings, logx.Nop())
	composer := message.NewComposer(message.Anonymous{}, message.EventTitles{}, message.NewAppLinks(settings))
	gw := &spyGateway{}
	return NewRouter(resolver, lookup, composer, gw, logx.Nop(), nil), gw
}

func TestConfiguredUserReceivesAssignedTask(t *testing.T) {
	t.Parallel()
	users := metaTable{7: {
		routing.KeyAPIKey:     "K1",
		routing.KeyUserChatID: "C1",
	}}
	lookup := mapProjects{9: {ID: 9, Name: "Ops"}}
	r, gw := realPipeline(users, metaTable{}, settingsTable{}, lookup)

	data := event.Data{Task: &event.Task{ID: 5, Title: "Fix bug", ProjectID: 9, ProjectName: "Ops"}}
	r.NotifyUser(context.Background(), event.User{ID: 7}, event.TaskAssigneeChange, data)

	if len(gw.sent) != 1 {
		t.Fatalf("delivery attempts = %d, want 1", len(gw.sent))
	}
	got := gw.sent[0]
	if got.msg.ChatID != "C1" {
		t.Fatalf("ChatID = %q, want C1", got.msg.ChatID)
	}
	if !strings.Contains(got.msg.Text, "Ops") || !strings.Contains(got.msg.Text, "Fix bug") {
		t.Fatalf("text = %q, want project and task title", got.msg.Text)
	}
}

func TestUnconfiguredUserGetsNothing(t *testing.T) {
	t.Parallel()
	// no per-user key, no global default
	r, gw := realPipeline(metaTable{}, metaTable{}, settingsTable{}, mapProjects{})

	data := event.Data{Task: &event.Task{ID: 5, Title: "Fix bug", ProjectID: 9}}
	r.NotifyUser(context.Background(), event.User{ID: 7}, event.TaskAssigneeChange, data)

	if len(gw.sent) != 0 {
		t.Fatalf("delivery attempts = %d, want 0", len(gw.sent))
	}
}

func TestOverdueBatchResolvesEachProject(t *testing.T) {
	t.Parallel()
	users := metaTable{7: {routing.KeyAPIKey: "K1", routing.KeyUserChatID: "C1"}}
	lookup := mapProjects{9: {ID: 9, Name: "Ops"}, 10: {ID: 10, Name: "Web"}}
	r, gw := realPipeline(users, metaTable{}, settingsTable{}, lookup)

	data := event.Data{Tasks: []event.Task{
		{ID: 1, Title: "first", ProjectID: 9, ProjectName: "Ops"},
		{ID: 2, Title: "second", ProjectID: 10, ProjectName: "Web"},
	}}
	r.NotifyUser(context.Background(), event.User{ID: 7}, event.TaskOverdue, data)

	if len(gw.sent) != 2 {
		t.Fatalf("delivery attempts = %d, want 2", len(gw.sent))
	}
	if !strings.Contains(gw.sent[0].msg.Text, "Ops") || !strings.Contains(gw.sent[0].msg.Text, "first") {
		t.Fatalf("first message = %q", gw.sent[0].msg.Text)
	}
	if !strings.Contains(gw.sent[1].msg.Text, "Web") || !strings.Contains(gw.sent[1].msg.Text, "second") {
		t.Fatalf("second message = %q", gw.sent[1].msg.Text)
	}
}

func TestGlobalAPIKeyEnablesUserWithoutOverride(t *testing.T) {
	t.Parallel()
	users := metaTable{7: {routing.KeyUserChatID: "C1"}}
	settings := settingsTable{routing.KeyAPIKey: "GLOBAL"}
	lookup := mapProjects{9: {ID: 9, Name: "Ops"}}
	r, gw := realPipeline(users, metaTable{}, settings, lookup)

	data := event.Data{Task: &event.Task{ID: 5, Title: "Fix bug", ProjectID: 9, ProjectName: "Ops"}}
	r.NotifyUser(context.Background(), event.User{ID: 7}, event.TaskUpdate, data)

	if len(gw.sent) != 1 || gw.sent[0].apiKey != "GLOBAL" {
		t.Fatalf("sends = %+v, want one with the global key", gw.sent)
	}
}
