// Package app wires the components together: settings store, Instagram
// fetcher, formatter, Telegram adapter, and the polling watcher.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"instanotify/internal/config"
	"instanotify/internal/instagram"
	"instanotify/internal/notify"
	"instanotify/internal/storage"
	"instanotify/internal/telegram"
	"instanotify/internal/translate"
	"instanotify/internal/watcher"
	logx "instanotify/pkg/logx"
	"instanotify/pkg/sdnotify"
)

type App struct {
	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	ig      *instagram.Client
	adapter *telegram.Adapter
	watch   *watcher.Service

	// ready gates the watcher's first cycle on the connection being up.
	ready     chan struct{}
	readyOnce sync.Once

	sessCancel context.CancelFunc
	sessDone   chan struct{}
}

func New(cfg *config.Config) (*App, error) {
	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath = "./data/instanotify.db"
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        storePath,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	ig, err := instagram.New(instagram.Config{
		Username:   cfg.Instagram.Username,
		Password:   cfg.Instagram.Password,
		SessionDir: cfg.Instagram.SessionDir,
	}, logs.Logger().With(logx.String("comp", "instagram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	pollTimeout, _ := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	adapter, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  pollTimeout,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	}, logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logs.SetSender(adapter)

	translator := translate.New(cfg.TranslateTarget(), logs.Logger().With(logx.String("comp", "translate")))
	formatter := notify.NewFormatter(translator, logs.Logger().With(logx.String("comp", "notify")))
	fetcher := instagram.NewFetcher(ig, logs.Logger().With(logx.String("comp", "fetcher")))

	interval, _ := config.ParseDurationOrDefault("watcher.interval", cfg.Watcher.Interval, config.DefaultInterval)
	maxAge, _ := config.ParseDurationOrDefault("watcher.max_post_age", cfg.Watcher.MaxPostAge, config.DefaultMaxPostAge)
	delayMin, _ := config.ParseDurationOrDefault("watcher.post_delay_min", cfg.Watcher.PostDelayMin, config.DefaultPostDelayMin)
	delayMax, _ := config.ParseDurationOrDefault("watcher.post_delay_max", cfg.Watcher.PostDelayMax, config.DefaultPostDelayMax)
	fetchLimit := cfg.Watcher.FetchLimit
	if fetchLimit == 0 {
		fetchLimit = config.DefaultFetchLimit
	}

	watch := watcher.New(watcher.Config{
		Interval:   interval,
		FetchLimit: fetchLimit,
		MaxPostAge: maxAge,
		DelayMin:   delayMin,
		DelayMax:   delayMax,
	}, store, fetcher, formatter, adapter, logs.Logger().With(logx.String("comp", "watcher")))

	telegram.RegisterCommands(adapter, store, watch, logs.Logger().With(logx.String("comp", "commands")))

	return &App{
		log:     log,
		logs:    logs,
		store:   store,
		ig:      ig,
		adapter: adapter,
		watch:   watch,
		ready:   make(chan struct{}),
	}, nil
}

// Start brings the process up. Instagram authentication failures are fatal:
// the bot refuses to serve without a working session.
func (a *App) Start(ctx context.Context) error {
	if err := a.ig.Login(ctx); err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	a.sessCancel = cancel
	a.sessDone = make(chan struct{})
	go func() {
		defer close(a.sessDone)
		if err := a.ig.WatchSession(sessCtx); err != nil {
			a.log.Warn("session watcher exited", logx.Err(err))
		}
	}()

	a.adapter.Start(ctx)
	if err := a.watch.Start(ctx, a.ready); err != nil {
		return err
	}

	// Connection is up: open the watcher's gate and tell systemd.
	a.readyOnce.Do(func() { close(a.ready) })
	sdnotify.Ready()
	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	sdnotify.Stopping()
	a.log.Info("stopping")

	// Bounded stop steps so one component can't stall the whole shutdown.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(stepCtx)
		}()
		select {
		case <-done:
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("watcher", 3*time.Second, func(c context.Context) { a.watch.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) { _ = a.adapter.Stop(c) })
	if a.sessCancel != nil {
		a.sessCancel()
		step("session-watch", time.Second, func(c context.Context) {
			select {
			case <-a.sessDone:
			case <-c.Done():
			}
		})
	}
	step("storage", 2*time.Second, func(context.Context) { _ = a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
