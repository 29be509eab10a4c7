// Package scheduler periodically runs current-mode collections.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/agroclima/weather-collector/internal/weather"
	"github.com/agroclima/weather-collector/pkg/logger"
)

// Scheduler drives rolling current-window collections for the configured
// region set.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	engine     *weather.Engine
	regions    []weather.Region
	interval   time.Duration
	windowDays int
	log        logger.Logger
}

// New creates a Scheduler running every interval over a rolling window of
// windowDays days.
func New(engine *weather.Engine, regions []weather.Region, interval time.Duration, windowDays int) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		engine:     engine,
		regions:    regions,
		interval:   interval,
		windowDays: windowDays,
		log:        logger.Named("scheduler"),
	}
}

// Start schedules the periodic collection job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	if len(s.regions) == 0 {
		s.log.Warn(context.Background(), "no regions configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		window := weather.CurrentWindow(time.Now().UTC(), s.windowDays)
		outcomes, err := s.engine.Run(ctx, s.regions, window)
		if err != nil {
			s.log.Error(ctx, "scheduled collection aborted", logger.Error(err))
		}
		for regionID, out := range outcomes {
			if out.Status == weather.StatusFailed {
				s.log.Error(ctx, "region collection failed",
					logger.String("region", regionID),
					logger.String("detail", out.Error))
			}
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
