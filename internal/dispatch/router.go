// Package dispatch holds the entry points the host calls when a subscribed
// event fires. Both return normally no matter what happens downstream;
// notification delivery is strictly best-effort.
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"kanbot/internal/event"
	"kanbot/internal/eventbus"
	"kanbot/internal/message"
	"kanbot/internal/routing"
	"kanbot/pkg/logx"
)

// EventSkipped is published when the credential gate stops a dispatch before
// any delivery attempt.
const EventSkipped = "delivery.skipped"

// Skip is the bus payload for a gated dispatch.
type Skip struct {
	DispatchID string `json:"dispatch_id"`
	Target     string `json:"target"`
	TargetID   int64  `json:"target_id"`
	Reason     string `json:"reason"`
}

// CredentialResolver resolves routing configuration per target.
type CredentialResolver interface {
	ForUser(ctx context.Context, userID int64) routing.Config
	ForProject(ctx context.Context, projectID int64) routing.Config
}

// ProjectFinder resolves the project a task belongs to.
type ProjectFinder interface {
	ProjectByID(ctx context.Context, id int64) (event.Project, error)
}

// Composer builds the outbound message for one event view.
type Composer interface {
	Compose(ctx context.Context, chatID string, project event.Project, name event.Name, data event.Data) message.Message
}

// Gateway performs one best-effort delivery attempt.
type Gateway interface {
	Send(ctx context.Context, apiKey, botUsername, dispatchID string, msg message.Message) error
}

// Router decides whether to send, to whom, and fans batched events out into
// per-task deliveries. It holds no state across calls.
type Router struct {
	creds    CredentialResolver
	projects ProjectFinder
	composer Composer
	gateway  Gateway
	log      logx.Logger
	bus      eventbus.Bus
}

func NewRouter(creds CredentialResolver, projects ProjectFinder, composer Composer, gw Gateway, log logx.Logger, bus eventbus.Bus) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{creds: creds, projects: projects, composer: composer, gateway: gw, log: log, bus: bus}
}

// NotifyUser dispatches an event to a user's personal feed.
//
// The credential gate runs before any project lookup or composition so
// unconfigured users cost nothing. The overdue kind fans out into one
// delivery per task, each resolved against the task's own project and sent
// in batch order; a failed send never aborts the remaining tasks.
func (r *Router) NotifyUser(ctx context.Context, user event.User, name event.Name, data event.Data) {
	cfg := r.creds.ForUser(ctx, user.ID)
	if !cfg.Sendable() {
		r.skip(ctx, "user", user.ID)
		return
	}

	if name.Batched() {
		for _, task := range data.Tasks {
			r.deliver(ctx, cfg, task.ProjectID, name, data.WithTask(task))
		}
		return
	}
	if data.Task == nil {
		r.log.Warn("event payload has no task record", logx.String("event", string(name)), logx.Int64("user_id", user.ID))
		return
	}
	r.deliver(ctx, cfg, data.Task.ProjectID, name, data)
}

// NotifyProject dispatches an event to a project's group chat.
// Project-targeted events are never batched.
func (r *Router) NotifyProject(ctx context.Context, project event.Project, name event.Name, data event.Data) {
	cfg := r.creds.ForProject(ctx, project.ID)
	if !cfg.Sendable() {
		r.skip(ctx, "project", project.ID)
		return
	}
	if data.Task == nil {
		r.log.Warn("event payload has no task record", logx.String("event", string(name)), logx.Int64("project_id", project.ID))
		return
	}
	msg := r.composer.Compose(ctx, cfg.ChatID, project, name, data)
	// Outcome is routed to the log and the event bus by the gateway; the
	// best-effort contract is to discard it here.
	_ = r.gateway.Send(ctx, cfg.APIKey, cfg.BotUsername, uuid.NewString(), msg)
}

func (r *Router) deliver(ctx context.Context, cfg routing.Config, projectID int64, name event.Name, data event.Data) {
	project, err := r.projects.ProjectByID(ctx, projectID)
	if err != nil {
		r.log.Warn("project lookup failed", logx.Int64("project_id", projectID), logx.String("event", string(name)), logx.Err(err))
		return
	}
	msg := r.composer.Compose(ctx, cfg.ChatID, project, name, data)
	_ = r.gateway.Send(ctx, cfg.APIKey, cfg.BotUsername, uuid.NewString(), msg)
}

func (r *Router) skip(ctx context.Context, target string, id int64) {
	r.log.Debug("dispatch skipped: no api key", logx.String("target", target), logx.Int64("target_id", id))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: EventSkipped, Data: Skip{
			DispatchID: uuid.NewString(),
			Target:     target,
			TargetID:   id,
			Reason:     "api key not configured",
		}})
	}
}
