// Package scheduler drives the unattended gains sweeps. Cron cadences
// fire in UTC, matching the period boundary math; a failed sweep is
// logged and dropped, never retried.
package scheduler

import (
	"context"
	"time"

	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/metrics"
	"osrs-tracker/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Scheduler struct {
	cron     *cron.Cron
	groupSvc *service.GroupService
	logger   zerolog.Logger
	enabled  bool
}

func New(cfg *config.Config, groupSvc *service.GroupService, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		groupSvc: groupSvc,
		logger:   logger,
		enabled:  cfg.SchedulerEnabled,
	}

	jobs := []struct {
		spec   string
		period domain.Period
	}{
		{constants.DailyGainsCron, domain.PeriodDaily},
		{constants.WeeklyGainsCron, domain.PeriodWeekly},
		{constants.MonthlyGainsCron, domain.PeriodMonthly},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, func() { s.runSweep(job.period) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	if !s.enabled {
		s.logger.Info().Msg("scheduler disabled by configuration")
		return
	}
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// runSweep computes gains for every registered group. Per-group
// failures are logged and do not block the remaining groups or the
// next cadence.
func (s *Scheduler) runSweep(p domain.Period) {
	s.logger.Info().Str("period", p.String()).Msg("starting scheduled gains sweep")

	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	names, err := s.groupSvc.ListGroupNames(ctx)
	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues(p.String(), "error").Inc()
		s.logger.Error().Err(err).Str("period", p.String()).Msg("failed to list groups for sweep")
		return
	}

	now := time.Now().UTC()
	failed := 0
	for _, name := range names {
		result := s.groupSvc.GetGainsForGroup(ctx, p, name, now)
		if !result.Success {
			failed++
			s.logger.Warn().
				Str("period", p.String()).
				Str("group", name).
				Str("message", result.Message).
				Msg("scheduled gains sweep failed for group")
		}
	}

	status := "ok"
	if failed > 0 {
		status = "partial"
	}
	metrics.SchedulerRunsTotal.WithLabelValues(p.String(), status).Inc()
	s.logger.Info().
		Str("period", p.String()).
		Int("groups", len(names)).
		Int("failed", failed).
		Msg("completed scheduled gains sweep")
}
