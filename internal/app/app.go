// Package app wires configuration, logging, storage and the alert pipeline
// into a long-running process or a single run.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"backlogalert/internal/alert"
	"backlogalert/internal/config"
	"backlogalert/internal/scheduler"
	"backlogalert/internal/server"
	"backlogalert/internal/storage"
	logx "backlogalert/pkg/logx"
)

const (
	scheduleName    = "alert"
	shutdownTimeout = 15 * time.Second
)

// ErrNoTrigger is returned by Run when neither the HTTP server nor the
// scheduler is enabled.
var ErrNoTrigger = errors.New("no trigger enabled: enable server or scheduler, or run with -once")

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	runner *alert.Runner
	sched  *scheduler.Service
	srv    *server.Server
}

type Option func(*options)

type options struct {
	lookup func(string) (string, bool)
}

// WithLookup replaces os.LookupEnv for config overrides.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(o *options) { o.lookup = fn }
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Run or RunOnce.
func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	if o.lookup != nil {
		cfgm.SetLookup(o.lookup)
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLoggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	appLog := log.With(logx.String("comp", "app"))

	var (
		store storage.Store
		rec   alert.Recorder
	)
	if sc, ok := mapStorageConfig(cfg); ok {
		store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		rec = storeRecorder{store: store}
		appLog.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	runner, err := buildRunner(cfg, rec, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logs.Close()
		return nil, err
	}

	a := &App{
		cfgm:   cfgm,
		cfg:    cfg,
		log:    appLog,
		logs:   logs,
		store:  store,
		runner: runner,
		sched: scheduler.New(scheduler.Config{
			Enabled:  cfg.Scheduler.Enabled,
			Timezone: cfg.Scheduler.Timezone,
		}, log.With(logx.String("comp", "scheduler"))),
	}
	if cfg.Scheduler.Enabled {
		if err := a.registerSchedule(cfg); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if cfg.Server.Enabled {
		var lister server.DeliveryLister
		if store != nil {
			lister = store
		}
		a.srv = server.New(server.Config{
			Addr:  cfg.Server.Addr,
			Mode:  cfg.Server.Mode,
			Pprof: server.PprofConfig{Enabled: cfg.Server.Pprof.Enabled, Token: cfg.Server.Pprof.Token},
		}, runner, lister, log.With(logx.String("comp", "server")))
	}
	return a, nil
}

func (a *App) registerSchedule(cfg *config.Config) error {
	return a.sched.AddSchedule(scheduleName, cfg.Scheduler.Spec, cfg.RunTimeout(), func(ctx context.Context) error {
		_, err := a.runner.Run(ctx, "cron")
		return err
	})
}

// RunOnce executes a single alert pass.
func (a *App) RunOnce(ctx context.Context) error {
	_, err := a.runner.Run(ctx, "once")
	return err
}

// Run serves the enabled triggers until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.srv == nil && !a.sched.Enabled() {
		return ErrNoTrigger
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.srv != nil {
		g.Go(func() error { return a.srv.Run(gctx) })
	}
	a.sched.Start(gctx)

	sub := a.cfgm.Subscribe(8)
	g.Go(func() error { return a.cfgm.Watch(gctx) })
	g.Go(func() error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(gctx, sub)
		return nil
	})
	g.Go(func() error { return watchdog(gctx, a.log) })

	a.log.Info("started",
		logx.Bool("server", a.srv != nil),
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.Bool("storage", a.store != nil),
	)
	sdNotify(a.log, sdReady)

	g.Go(func() error {
		<-gctx.Done()
		sdNotify(a.log, sdStopping)
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		a.sched.Stop(sctx)
		return nil
	})

	err := g.Wait()
	a.log.Info("stopped")
	return err
}

// reloadLoop applies hot-reloadable sections and flags the rest.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	ch := config.SummarizeConfigChange(prev, next)
	if ch.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)...)

	if ch.Has("logging") {
		a.logs.Apply(mapLoggingConfig(next))
	}
	if ch.Has("scheduler") {
		a.applySchedule(ctx, prev, next)
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("restart required for config changes", logx.String("sections", strings.Join(ch.Restart, ",")))
	}
}

func (a *App) applySchedule(ctx context.Context, prev, next *config.Config) {
	switch {
	case !next.Scheduler.Enabled:
		a.sched.Remove(scheduleName)
	case !prev.Scheduler.Enabled || prev.Scheduler.Spec != next.Scheduler.Spec:
		if err := a.registerSchedule(next); err != nil {
			a.log.Warn("schedule update failed", logx.Err(err))
		}
	}
	a.sched.Apply(ctx, scheduler.Config{Enabled: next.Scheduler.Enabled, Timezone: next.Scheduler.Timezone})
}

// Close releases storage and log files.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}
