package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"osrs-tracker/internal/api"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/hiscores"
	"osrs-tracker/internal/metrics"
	"osrs-tracker/internal/repository"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	provider api.StatsProvider
	players  *repository.PlayerRepository
	engine   *GainsEngine
	logger   zerolog.Logger
}

func NewPlayerService(provider api.StatsProvider, players *repository.PlayerRepository, engine *GainsEngine, logger zerolog.Logger) *PlayerService {
	return &PlayerService{provider: provider, players: players, engine: engine, logger: logger}
}

// FetchAndUpsertPlayer runs the ingestion pipeline: fetch raw stats
// from the hiscores, label the positional arrays with catalog names,
// overwrite the player's current stats and append a snapshot.
func (s *PlayerService) FetchAndUpsertPlayer(ctx context.Context, username string) PlayerResult {
	if repository.Normalize(username) == "" {
		return PlayerResult{Result: fail(http.StatusBadRequest, "Username is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	apiCtx, apiCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer apiCancel()

	stats, err := s.provider.GetPlayerStats(apiCtx, username)
	if err != nil {
		metrics.UpstreamErrorsTotal.Inc()
		s.logger.Error().Err(err).Str("username", username).Msg("failed to fetch hiscores")
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return PlayerResult{Result: failErr(http.StatusNotFound, "Player not found on hiscores", err)}
		}
		return PlayerResult{Result: failErr(http.StatusBadGateway, "Failed to fetch hiscores", err)}
	}

	now := time.Now().UTC()
	player := &domain.Player{
		Username:     repository.Normalize(username),
		OverallLevel: stats.Level,
		OverallXP:    stats.XP,
		Skills:       mapSkills(stats.Skills),
		Activities:   mapActivities(stats.Activities),
	}
	snapshot := &domain.Snapshot{
		Username:     player.Username,
		TakenAt:      now,
		OverallLevel: player.OverallLevel,
		OverallXP:    player.OverallXP,
		Skills:       player.Skills,
		Activities:   player.Activities,
	}

	if err := s.players.UpsertWithSnapshot(ctx, player, snapshot); err != nil {
		s.logger.Error().Err(err).Str("username", player.Username).Msg("failed to upsert player")
		return PlayerResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	stored, err := s.players.GetByName(ctx, player.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", player.Username).Msg("failed to reload player")
		return PlayerResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	metrics.IngestionsTotal.Inc()
	s.logger.Info().
		Str("username", player.Username).
		Int("overall_level", player.OverallLevel).
		Int64("overall_xp", player.OverallXP).
		Msg("player ingested")

	return PlayerResult{
		Result: ok("Player and snapshot updated successfully"),
		Player: stored,
	}
}

// GetGains computes and stores a player's gains for one period window.
func (s *PlayerService) GetGains(ctx context.Context, p domain.Period, username string, ref time.Time) Result {
	if repository.Normalize(username) == "" {
		return fail(http.StatusBadRequest, "Username is required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	record, err := s.engine.ComputeGains(ctx, p, username, ref)
	switch {
	case err == nil:
		return ok(fmt.Sprintf("%s gains calculated for %s (%s)", p, repository.Normalize(username), record.DateKey))
	case errors.Is(err, domain.ErrPlayerNotFound):
		return fail(http.StatusNotFound, "Player not found")
	case errors.Is(err, domain.ErrInsufficientData):
		return fail(http.StatusUnprocessableEntity,
			fmt.Sprintf("Not enough snapshots for %s gains. Need at least 2 in the window.", p))
	default:
		s.logger.Error().Err(err).Str("username", username).Str("period", p.String()).Msg("gains computation failed")
		return failErr(http.StatusInternalServerError, "Database error", err)
	}
}

func mapSkills(raw []api.RawSkill) []domain.SkillStat {
	mapped := make([]domain.SkillStat, len(raw))
	for i, s := range raw {
		mapped[i] = domain.SkillStat{
			Name:  hiscores.SkillName(i),
			Rank:  s.Rank,
			Level: s.Level,
			XP:    s.XP,
		}
	}
	return mapped
}

func mapActivities(raw []api.RawActivity) []domain.ActivityStat {
	mapped := make([]domain.ActivityStat, len(raw))
	for i, a := range raw {
		mapped[i] = domain.ActivityStat{
			Name:  hiscores.ActivityName(i),
			Rank:  a.Rank,
			Score: a.Score,
		}
	}
	return mapped
}
