package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerbot/backupd/engine"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// BackupJob is a single scheduled backup attempt. A run already in progress
// is reported through engine.ErrLockHeld.
type BackupJob interface {
	Run(ctx context.Context) error
}

type SchedulerParams struct {
	Logger zerolog.Logger
}

func NewScheduler(params SchedulerParams) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: params.Logger,
		jobs:   make(map[cron.EntryID]BackupJob),
	}
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   map[cron.EntryID]BackupJob
	logger zerolog.Logger
}

// Start the scheduler in its own routine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs. A run already started keeps going.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) AddBackupJob(ctx context.Context, schedule string, job BackupJob) error {
	entry, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(ctx); err != nil {
			if errors.Is(err, engine.ErrLockHeld) {
				s.logger.Warn().Str("schedule", schedule).Msg("scheduled backup skipped: run already in progress")
				return
			}
			s.logger.Error().Err(err).Str("schedule", schedule).Msg("scheduled backup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add backup job: %w", err)
	}

	s.jobs[entry] = job

	return nil
}

func (s *Scheduler) RemoveJobs() {
	for entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, entry)
	}
}
