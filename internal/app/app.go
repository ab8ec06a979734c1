// Package app wires the dispatch core to its runtime: config manager,
// SQLite store, Telegram transport, logging service, and overdue scanner.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kanbot/internal/config"
	"kanbot/internal/dispatch"
	"kanbot/internal/eventbus"
	"kanbot/internal/gateway"
	"kanbot/internal/message"
	"kanbot/internal/overdue"
	"kanbot/internal/routing"
	"kanbot/internal/storage"
	"kanbot/internal/transport/telegram"
	"kanbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	store   storage.Store
	bus     eventbus.Bus
	router  *dispatch.Router
	scanner *overdue.Scanner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	boot := logx.NewConsole(cfg.Logging.Level)

	busyTimeout, err := parseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, boot.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sendTimeout, err := parseDuration("telegram.send_timeout", cfg.Telegram.SendTimeout, 10*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	factory := telegram.NewFactory(sendTimeout)

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Ops: logx.OpsConfig{
			Enabled:    cfg.Logging.Ops.Enabled,
			ChatID:     cfg.Logging.Ops.ChatID,
			MinLevel:   cfg.Logging.Ops.MinLevel,
			RatePerSec: cfg.Logging.Ops.RatePerSec,
		},
	}, &opsSender{factory: factory, settings: routing.SettingsFunc(store.Setting)})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	resolver := routing.NewResolver(
		routing.MetadataFunc(store.UserMetadata),
		routing.MetadataFunc(store.ProjectMetadata),
		routing.SettingsFunc(store.Setting),
		logSvc.Logger().With(logx.String("comp", "routing")),
	)
	composer := message.NewComposer(
		message.Anonymous{},
		message.EventTitles{},
		message.NewAppLinks(routing.SettingsFunc(store.Setting)),
	)
	gw := gateway.New(factory, logSvc.Logger().With(logx.String("comp", "gateway")), bus)
	router := dispatch.NewRouter(resolver, store, composer, gw,
		logSvc.Logger().With(logx.String("comp", "dispatch")), bus)

	scanner := overdue.New(overdue.Config{
		Enabled:  cfg.Overdue.Enabled,
		Schedule: cfg.Overdue.Schedule,
		Timezone: cfg.Overdue.Timezone,
	}, store, store, router, logSvc.Logger().With(logx.String("comp", "overdue")))

	return &App{
		cfgm:    cfgm,
		logSvc:  logSvc,
		log:     log,
		store:   store,
		bus:     bus,
		router:  router,
		scanner: scanner,
	}, nil
}

// Router exposes the dispatch entry points for in-process hosts.
func (a *App) Router() *dispatch.Router { return a.router }

// Scanner exposes the overdue scanner, mainly for one-shot runs.
func (a *App) Scanner() *overdue.Scanner { return a.scanner }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.logSvc.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := parseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
			return err
		}
		if _, err := parseDuration("telegram.send_timeout", cfg.Telegram.SendTimeout, 0); err != nil {
			return err
		}
		if tz := cfg.Overdue.Timezone; tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("overdue.timezone: invalid %q: %w", tz, err)
			}
		}
		return nil
	})

	if err := a.scanner.Start(runCtx); err != nil {
		cancel()
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	busCh, unsub := a.bus.Subscribe(64)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		a.outcomeLoop(runCtx, busCh)
	}()

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	a.scanner.Stop(stopCtx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop timed out waiting for background loops")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logSvc.Close()
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Ops: logx.OpsConfig{
			Enabled:    cfg.Logging.Ops.Enabled,
			ChatID:     cfg.Logging.Ops.ChatID,
			MinLevel:   cfg.Logging.Ops.MinLevel,
			RatePerSec: cfg.Logging.Ops.RatePerSec,
		},
	})

	if err := a.scanner.Apply(overdue.Config{
		Enabled:  cfg.Overdue.Enabled,
		Schedule: cfg.Overdue.Schedule,
		Timezone: cfg.Overdue.Timezone,
	}); err != nil {
		a.log.Warn("overdue config not applied", logx.Err(err))
	}

	// Storage path and telegram.send_timeout need a restart to change.
	a.log.Info("config applied")
}

// outcomeLoop drains delivery outcomes from the bus. The gateway already
// logs per-attempt results; this keeps running totals for the shutdown line.
func (a *App) outcomeLoop(ctx context.Context, ch <-chan eventbus.Event) {
	var sent, failed, skipped int
	defer func() {
		a.log.Info("delivery totals",
			logx.Int("sent", sent), logx.Int("failed", failed), logx.Int("skipped", skipped))
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch e.Type {
			case gateway.EventSent:
				sent++
			case gateway.EventFailed:
				failed++
			case dispatch.EventSkipped:
				skipped++
			}
		}
	}
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", name)
	}
	return d, nil
}
