// Package app wires the bot together: config, logging, stores, the Bizneo
// client, the Telegram adapter, the command router and the sweep runner.
package app

import (
	"context"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"clockbot/internal/bizneo"
	"clockbot/internal/config"
	"clockbot/internal/notify"
	"clockbot/internal/runner"
	"clockbot/internal/storage"
	"clockbot/internal/store"
	kit "clockbot/internal/transport"
	telegram "clockbot/internal/transport/telegram/adapter"
	"clockbot/internal/transport/telegram/router"
	logx "clockbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	adapter  kit.Adapter
	notify   *notify.Service
	sessions *store.SessionStore
	tasks    *store.TaskStore
	store    storage.Store
	client   *bizneo.Client
	runner   *runner.Runner
	router   *router.Router

	updates chan kit.Update

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogxConfig())
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logSvc.Close()
		return nil, err
	}

	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	sessions, err := store.NewSessionStore(cfg.UsersPath(), log.With(logx.String("comp", "sessions")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	tasks, err := store.NewTaskStore(cfg.TasksPath(), log.With(logx.String("comp", "tasks")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	// Audit storage (optional)
	var st storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		st, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		if st != nil {
			log.Info("audit storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	reqTimeout, err := cfg.RequestTimeout()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	client := bizneo.NewClient(reqTimeout, log.With(logx.String("comp", "bizneo")))

	notifyRate := 0
	if cfg.Notifier != nil {
		notifyRate = cfg.Notifier.RatePerSec
	}
	notifySvc := notify.New(notify.Config{RatePerSec: notifyRate}, ad, log.With(logx.String("comp", "notify")))

	sweepInterval, err := cfg.SweepInterval()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	actionTimeout, err := cfg.ActionTimeout()
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	run := runner.New(runner.Config{
		SweepInterval: sweepInterval,
		ActionTimeout: actionTimeout,
	}, tasks, sessions, client, notifySvc, st, log.With(logx.String("comp", "runner")))

	rt := router.New(router.Config{
		DefaultTimeZone: cfg.DefaultTimeZone,
		ActionTimeout:   actionTimeout,
	}, ad, notifySvc, sessions, tasks, client, st, log.With(logx.String("comp", "router")))

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		adapter:  ad,
		notify:   notifySvc,
		sessions: sessions,
		tasks:    tasks,
		store:    st,
		client:   client,
		runner:   run,
		router:   rt,
		updates:  make(chan kit.Update, 256),
		done:     make(chan struct{}),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.router.RegisterMenus(runCtx)
	go a.router.Run(runCtx, a.updates)

	a.runner.Start()

	go func() { _ = a.cfgm.Watch(runCtx) }()
	go a.followConfig(runCtx)

	// systemd Type=notify readiness; harmless outside systemd
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("bot started")
	return nil
}

// followConfig applies runtime-safe settings from config reloads. Only
// logging changes take effect live; the rest logs what needs a restart.
func (a *App) followConfig(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeConfigChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config changed", append(attrs, logx.Any("sections", changed))...)

			a.logs.Apply(cfg.LogxConfig())
			for _, section := range changed {
				if section != "logging" {
					a.log.Warn("config section needs a restart to apply", logx.String("section", section))
				}
			}
			prev = cfg
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		if a.cancel != nil {
			a.cancel()
		}
		a.runner.Stop(ctx)
		if stopErr := a.adapter.Stop(ctx); stopErr != nil {
			err = stopErr
		}
		if a.store != nil {
			if closeErr := a.store.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		a.log.Info("bot stopped")
		a.logs.Close()
		close(a.done)
	})
	return err
}

// Done is closed once Stop has finished.
func (a *App) Done() <-chan struct{} { return a.done }
