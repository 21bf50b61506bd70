package service

import (
	"context"
	"time"

	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/metrics"
	"osrs-tracker/internal/period"
	"osrs-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// GainsEngine derives gain records from a player's snapshot log. Both
// the single-player and the group paths funnel through ComputeForWindow
// so the selection and delta rules cannot drift apart.
type GainsEngine struct {
	players *repository.PlayerRepository
	gains   *repository.GainsRepository
	logger  zerolog.Logger
}

func NewGainsEngine(players *repository.PlayerRepository, gains *repository.GainsRepository, logger zerolog.Logger) *GainsEngine {
	return &GainsEngine{players: players, gains: gains, logger: logger}
}

// ComputeForWindow selects the bounding snapshots of [start, end] for
// one player, computes deltas, and upserts the gain record keyed by
// (username, dateKey, period). Returns domain.ErrInsufficientData when
// fewer than two snapshots fall inside the window.
func (e *GainsEngine) ComputeForWindow(ctx context.Context, p domain.Period, username string, start, end time.Time, dateKey string) (*domain.GainRecord, error) {
	snapshots, err := e.players.SnapshotsInRange(ctx, username, start, end)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 2 {
		e.logger.Debug().
			Str("username", username).
			Str("period", p.String()).
			Int("snapshots", len(snapshots)).
			Msg("not enough snapshots in window")
		return nil, domain.ErrInsufficientData
	}

	// The range query returns rows ordered ascending, so the bounding
	// pair is simply the first and last elements.
	first := &snapshots[0]
	last := &snapshots[len(snapshots)-1]

	record := diffSnapshots(username, p, dateKey, first, last)
	if err := e.gains.Upsert(ctx, record); err != nil {
		return nil, err
	}

	metrics.GainsComputedTotal.WithLabelValues(p.String()).Inc()
	e.logger.Info().
		Str("username", username).
		Str("period", p.String()).
		Str("date", dateKey).
		Int64("overall_xp_gained", record.OverallXPGained).
		Msg("gain record upserted")
	return record, nil
}

// ComputeGains resolves the period window around ref and runs
// ComputeForWindow for one player.
func (e *GainsEngine) ComputeGains(ctx context.Context, p domain.Period, username string, ref time.Time) (*domain.GainRecord, error) {
	if _, err := e.players.GetByName(ctx, username); err != nil {
		return nil, err
	}
	start, end := period.Bounds(p, ref)
	return e.ComputeForWindow(ctx, p, username, start, end, period.DateKey(start))
}

// diffSnapshots computes the delta between the earliest and latest
// snapshot of a window. The last snapshot's skill and activity lists
// are canonical; an entry absent from first is measured against a zero
// baseline rather than skipped. Negative deltas (upstream resets) are
// stored as-is.
func diffSnapshots(username string, p domain.Period, dateKey string, first, last *domain.Snapshot) *domain.GainRecord {
	firstSkills := make(map[string]domain.SkillStat, len(first.Skills))
	for _, s := range first.Skills {
		firstSkills[s.Name] = s
	}
	firstActivities := make(map[string]domain.ActivityStat, len(first.Activities))
	for _, a := range first.Activities {
		firstActivities[a.Name] = a
	}

	skillsGained := make([]domain.SkillGain, 0, len(last.Skills))
	for _, s := range last.Skills {
		base := firstSkills[s.Name]
		skillsGained = append(skillsGained, domain.SkillGain{
			Name:        s.Name,
			XPGained:    s.XP - base.XP,
			LevelGained: s.Level - base.Level,
		})
	}

	activitiesGained := make([]domain.ActivityGain, 0, len(last.Activities))
	for _, a := range last.Activities {
		base := firstActivities[a.Name]
		activitiesGained = append(activitiesGained, domain.ActivityGain{
			Name:   a.Name,
			Gained: a.Score - base.Score,
		})
	}

	return &domain.GainRecord{
		Username:         repository.Normalize(username),
		DateKey:          dateKey,
		Period:           p,
		OverallXPGained:  last.OverallXP - first.OverallXP,
		SkillsGained:     skillsGained,
		ActivitiesGained: activitiesGained,
	}
}
