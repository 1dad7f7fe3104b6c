// Package app wires the relay together: config, state stores, the Reddit
// client, the decision engine, the composer, the job queue and the watcher.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"modrelay/internal/compose"
	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/reddit"
	"modrelay/internal/relay"
	"modrelay/internal/schedule"
	"modrelay/internal/storage"
	"modrelay/internal/storage/sqlite"
	"modrelay/internal/store"
)

const staleJobAge = 14 * 24 * time.Hour

type App struct {
	cfg         *config.Config
	states      store.Store
	storage     storage.StorageInterface
	coordinator *schedule.Coordinator
	watcher     *reddit.Watcher
	cron        *cron.Cron
}

// New builds the full relay from config. Redis backs the relay state when an
// address is configured; the in-memory store otherwise, losing dedupe state
// across restarts.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	states, err := buildStateStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jobStorage, err := sqlite.New(cfg.Store.SQLitePath)
	if err != nil {
		states.Close()
		return nil, err
	}

	client, err := reddit.NewClient(cfg.Reddit.UserAgent, reddit.CredentialsFromEnv())
	if err != nil {
		states.Close()
		jobStorage.Close(ctx)
		return nil, err
	}

	engine := relay.NewEngine(cfg, client)
	composer := compose.New(cfg, client)
	webhook := discord.NewWebhook()
	coordinator := schedule.NewCoordinator(cfg, states, jobStorage.Jobs(), webhook, client)
	watcher := reddit.NewWatcher(cfg, client, engine, composer, coordinator, states)

	return &App{
		cfg:         cfg,
		states:      states,
		storage:     jobStorage,
		coordinator: coordinator,
		watcher:     watcher,
		cron:        cron.New(),
	}, nil
}

func buildStateStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.RedisAddr == "" {
		log.Printf("App: no redis_addr configured, relay state is in-memory only")
		return store.NewMemory(), nil
	}
	return store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB)
}

// Start runs the watcher and the scheduled jobs until the context is
// cancelled.
func (a *App) Start(ctx context.Context) error {
	dispatchEvery := a.cfg.Store.DispatchEveryDuration()
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", dispatchEvery), func() {
		a.coordinator.DispatchDue(ctx, time.Now())
	}); err != nil {
		return fmt.Errorf("failed to register dispatch job: %w", err)
	}

	if _, err := a.cron.AddFunc("@daily", func() {
		if err := a.storage.Jobs().DeleteOlderThan(ctx, staleJobAge); err != nil {
			log.Printf("App: error pruning stale jobs: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	if a.cfg.Behavior.RelayMode == config.RelayModeFrontPage {
		sweepEvery := config.MinimumDelayMinutes * time.Minute
		if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", sweepEvery), func() {
			a.watcher.SweepFrontPage(ctx)
		}); err != nil {
			return fmt.Errorf("failed to register front-page sweep: %w", err)
		}
	}

	a.cron.Start()

	return a.watcher.Run(ctx)
}

// Stop halts the cron jobs and closes the stores. The watcher stops on its
// own when the run context is cancelled.
func (a *App) Stop(ctx context.Context) error {
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		log.Printf("App: timed out waiting for scheduled jobs to finish")
	}

	var firstErr error
	if err := a.storage.Close(ctx); err != nil {
		firstErr = fmt.Errorf("failed to close job storage: %w", err)
	}
	if err := a.states.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close state store: %w", err)
	}
	return firstErr
}
