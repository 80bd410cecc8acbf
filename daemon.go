package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerbot/backupd/config"
	"github.com/ledgerbot/backupd/engine"
	"github.com/ledgerbot/backupd/fileutils"
	"github.com/ledgerbot/backupd/scheduler"
	"github.com/rs/zerolog"
)

func daemonCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	eng, cfg, err := buildEngine(ctx, args.Daemon.Config, logger)
	if err != nil {
		return err
	}
	if cfg.Schedule == "" {
		return fmt.Errorf("daemon requires a schedule in the config")
	}
	logger.Info().Object("config", *cfg).Msg("loaded config")

	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})
	if err := sched.AddBackupJob(ctx, cfg.Schedule, &backupJob{engine: eng}); err != nil {
		return err
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, args.Daemon.Config, logger, ticker, func(next *config.Config) {
		// Only the schedule is reloadable; storage and database changes
		// need a restart to rebuild the stack safely.
		if next.Schedule == cfg.Schedule {
			return
		}
		sched.RemoveJobs()
		if err := sched.AddBackupJob(ctx, next.Schedule, &backupJob{engine: eng}); err != nil {
			logger.Error().Err(err).Msg("could not apply new schedule, daemon has no active job")
			return
		}
		cfg.Schedule = next.Schedule
		logger.Info().Str("schedule", next.Schedule).Msg("applied new schedule")
	})

	sched.Start()
	defer sched.Stop()

	logger.Info().Str("schedule", cfg.Schedule).Msg("daemon started")
	<-ctx.Done()

	return nil
}

type backupJob struct {
	engine *engine.Engine
}

func (b *backupJob) Run(ctx context.Context) error {
	_, err := b.engine.RequestBackup(ctx)
	return err
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, when(ticker.C), func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

func when[T any](ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for range ch {
			out <- struct{}{}
		}
	}()
	return out
}
