package cron

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"shiftflow/internal/engine"
)

// Runner drives the scheduler and weekly archive jobs from in-process cron
// timers, using the schedules and timezone from the business config.
type Runner struct {
	Engine engine.Engine
	Logger *log.Logger

	scheduler *cron.Cron
}

func New(e engine.Engine, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Engine: e,
		Logger: logger,
	}
}

// Start registers both jobs and starts the timer. Job panics are recovered by
// the cron library and logged rather than taking the process down.
func (r *Runner) Start() error {
	cfg := r.Engine.Config
	r.scheduler = cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cron.PrintfLogger(r.Logger))),
	)
	if _, err := r.scheduler.AddFunc(cfg.Jobs.SchedulerCron, func() {
		sum, err := r.Engine.RunScheduler(context.Background())
		if err != nil {
			r.Logger.Printf("scheduler job: %v", err)
			return
		}
		if sum.Due > 0 {
			r.Logger.Printf("scheduler job: %d due, %d created", sum.Due, sum.Created)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Jobs.SchedulerCron, err)
	}
	if _, err := r.scheduler.AddFunc(cfg.Jobs.ArchiveCron, func() {
		res, err := r.Engine.RunWeeklyArchive(context.Background())
		if err != nil {
			r.Logger.Printf("archive job: %v", err)
			return
		}
		if !res.AlreadyDone {
			r.Logger.Printf("archive job: week %s closed, %d archived", res.WeekEnding, res.Archived)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Jobs.ArchiveCron, err)
	}
	r.scheduler.Start()
	return nil
}

// Stop halts the timer and waits for any running job to finish.
func (r *Runner) Stop() {
	if r.scheduler != nil {
		<-r.scheduler.Stop().Done()
	}
}
