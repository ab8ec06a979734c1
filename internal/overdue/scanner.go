// Package overdue reproduces the host's daily overdue-task job: find open
// tasks past their due date, group them per assignee, and hand each group to
// the dispatcher as one batched task.overdue event.
package overdue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kanbot/internal/event"
	"kanbot/pkg/logx"
)

// Config controls the scan schedule.
type Config struct {
	Enabled  bool
	Schedule string // cron spec, e.g. "0 8 * * *"
	Timezone string
}

// TaskSource lists open tasks past their due date.
type TaskSource interface {
	FindOverdueTasks(ctx context.Context, now time.Time) ([]event.Task, error)
}

// UserSource resolves the assignee a task group is addressed to.
type UserSource interface {
	UserByID(ctx context.Context, id int64) (event.User, error)
}

// Notifier is the dispatch entry point the scanner feeds.
type Notifier interface {
	NotifyUser(ctx context.Context, user event.User, name event.Name, data event.Data)
}

// Scanner runs the overdue scan on a cron schedule.
type Scanner struct {
	tasks    TaskSource
	users    UserSource
	notifier Notifier
	log      logx.Logger

	mu   sync.Mutex
	cfg  Config
	cron *cron.Cron
	ctx  context.Context
}

func New(cfg Config, tasks TaskSource, users UserSource, notifier Notifier, log logx.Logger) *Scanner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{cfg: cfg, tasks: tasks, users: users, notifier: notifier, log: log}
}

// Start registers the cron entry. It is a no-op when disabled.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.startLocked()
}

func (s *Scanner) startLocked() error {
	if !s.cfg.Enabled || s.cron != nil {
		return nil
	}

	loc := time.Local
	if tz := s.cfg.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("overdue timezone %q: %w", tz, err)
		}
		loc = l
	}

	spec := s.cfg.Schedule
	if spec == "" {
		spec = "0 8 * * *"
	}

	c := cron.New(cron.WithLocation(loc))
	ctx := s.ctx
	if _, err := c.AddFunc(spec, func() {
		if err := s.Run(ctx); err != nil {
			s.log.Warn("overdue scan failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("overdue schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("overdue scanner started", logx.String("schedule", spec), logx.String("tz", loc.String()))
	return nil
}

// Apply reconfigures the scanner, restarting the cron entry when needed.
func (s *Scanner) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := s.cron != nil
	if cfg == s.cfg && running == cfg.Enabled {
		return nil
	}
	s.stopLocked(context.Background())
	s.cfg = cfg
	if s.ctx == nil {
		// not started yet; Start will pick the new config up
		return nil
	}
	return s.startLocked()
}

// Stop halts the schedule, waiting for an in-flight scan up to ctx's deadline.
func (s *Scanner) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Scanner) stopLocked(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	s.cron = nil
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("overdue scanner stop timed out with a scan in flight")
	}
}

// Run performs one scan synchronously. It is the cron entry body and is
// exported so operators and tests can trigger a scan directly.
func (s *Scanner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tasks, err := s.tasks.FindOverdueTasks(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("find overdue tasks: %w", err)
	}
	if len(tasks) == 0 {
		s.log.Debug("overdue scan: nothing due")
		return nil
	}

	// Group per assignee, preserving scan order inside each group.
	order := make([]int64, 0, 4)
	groups := map[int64][]event.Task{}
	for _, t := range tasks {
		if t.OwnerID == 0 {
			continue
		}
		if _, ok := groups[t.OwnerID]; !ok {
			order = append(order, t.OwnerID)
		}
		groups[t.OwnerID] = append(groups[t.OwnerID], t)
	}

	for _, ownerID := range order {
		user, err := s.users.UserByID(ctx, ownerID)
		if err != nil {
			s.log.Warn("overdue scan: assignee lookup failed", logx.Int64("user_id", ownerID), logx.Err(err))
			continue
		}
		s.notifier.NotifyUser(ctx, user, event.TaskOverdue, event.Data{Tasks: groups[ownerID]})
	}
	s.log.Info("overdue scan done", logx.Int("tasks", len(tasks)), logx.Int("recipients", len(order)))
	return nil
}
