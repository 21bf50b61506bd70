package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/metrics"
	"osrs-tracker/internal/period"
	"osrs-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type GroupService struct {
	groups  *repository.GroupRepository
	players *repository.PlayerRepository
	gains   *repository.GainsRepository
	engine  *GainsEngine
	logger  zerolog.Logger
}

func NewGroupService(
	groups *repository.GroupRepository,
	players *repository.PlayerRepository,
	gains *repository.GainsRepository,
	engine *GainsEngine,
	logger zerolog.Logger,
) *GroupService {
	return &GroupService{
		groups:  groups,
		players: players,
		gains:   gains,
		engine:  engine,
		logger:  logger,
	}
}

func (s *GroupService) CreateGroup(ctx context.Context, name string) Result {
	if name == "" {
		return fail(http.StatusBadRequest, "Group name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	_, err := s.groups.Create(ctx, name)
	switch {
	case err == nil:
		s.logger.Info().Str("group", name).Msg("group created")
		return ok("Group created successfully")
	case errors.Is(err, domain.ErrGroupExists):
		return failErr(http.StatusConflict, "Database error", err)
	default:
		s.logger.Error().Err(err).Str("group", name).Msg("failed to create group")
		return failErr(http.StatusInternalServerError, "Database error", err)
	}
}

func (s *GroupService) GetGroupID(ctx context.Context, name string) GroupIDResult {
	if name == "" {
		return GroupIDResult{Result: fail(http.StatusBadRequest, "Group name is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	group, err := s.groups.GetByName(ctx, name)
	switch {
	case err == nil:
		return GroupIDResult{Result: ok("Group found"), GroupID: group.ID}
	case errors.Is(err, domain.ErrGroupNotFound):
		return GroupIDResult{Result: fail(http.StatusNotFound, "Group not found")}
	default:
		s.logger.Error().Err(err).Str("group", name).Msg("failed to get group")
		return GroupIDResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}
}

// AddMembers appends players to a group. Usernames that do not resolve
// to an ingested player are silently dropped; already-present members
// are deduplicated. Reports how many net-new members were added.
func (s *GroupService) AddMembers(ctx context.Context, name string, usernames []string) Result {
	if name == "" {
		return fail(http.StatusBadRequest, "Group name is required")
	}
	if len(usernames) == 0 {
		return fail(http.StatusBadRequest, "No usernames provided")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	group, err := s.groups.GetByName(ctx, name)
	if errors.Is(err, domain.ErrGroupNotFound) {
		return fail(http.StatusNotFound, "Group not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to get group")
		return failErr(http.StatusInternalServerError, "Database error", err)
	}

	players, err := s.players.FindManyByNames(ctx, usernames)
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to resolve members")
		return failErr(http.StatusInternalServerError, "Database error", err)
	}
	if len(players) == 0 {
		return fail(http.StatusNotFound, "No matching players found")
	}

	resolved := make([]string, len(players))
	for i, p := range players {
		resolved[i] = p.Username
	}

	added, err := s.groups.AddMembers(ctx, group.ID, resolved)
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to add members")
		return failErr(http.StatusInternalServerError, "Database error", err)
	}

	s.logger.Info().Str("group", name).Int("added", added).Msg("members added")
	return ok(fmt.Sprintf("%d members added successfully", added))
}

// GetGainsForGroup fans the gains computation out over every member of
// a group. Members without two snapshots in the window are skipped; the
// call only fails when no member at all is computable, so partial
// ingestion coverage never alarms the scheduler.
func (s *GroupService) GetGainsForGroup(ctx context.Context, p domain.Period, name string, ref time.Time) GroupGainsResult {
	if name == "" {
		return GroupGainsResult{Result: fail(http.StatusBadRequest, "Group name is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	group, err := s.groups.GetByName(ctx, name)
	if errors.Is(err, domain.ErrGroupNotFound) {
		return GroupGainsResult{Result: fail(http.StatusNotFound, "Group not found")}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to get group")
		return GroupGainsResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	start, end := period.Bounds(p, ref)
	dateKey := period.DateKey(start)

	timer := time.Now()
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.GroupFanoutLimit)
	for _, username := range group.Members {
		g.Go(func() error {
			_, err := s.engine.ComputeForWindow(gctx, p, username, start, end, dateKey)
			if errors.Is(err, domain.ErrInsufficientData) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("member %s: %w", username, err)
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("group", name).Str("period", p.String()).Msg("group gains failed")
		return GroupGainsResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	metrics.GroupGainsDuration.WithLabelValues(p.String()).Observe(time.Since(timer).Seconds())

	count := int(processed.Load())
	if count == 0 {
		return GroupGainsResult{Result: fail(http.StatusUnprocessableEntity,
			fmt.Sprintf("No players had enough snapshots between %s and %s.",
				start.Format("2006-01-02"), end.Format("2006-01-02")))}
	}

	s.logger.Info().
		Str("group", name).
		Str("period", p.String()).
		Int("members_processed", count).
		Int("members_total", len(group.Members)).
		Msg("group gains processed")

	return GroupGainsResult{
		Result:           ok(fmt.Sprintf("Processed gains for %d members in %s (%s)", count, name, p)),
		MembersProcessed: count,
	}
}

// GetGroupRankings orders a group's members by stored overall XP gained
// for the period containing ref. Members without a computed record for
// that window are omitted.
func (s *GroupService) GetGroupRankings(ctx context.Context, p domain.Period, name string, ref time.Time) RankingsResult {
	if name == "" {
		return RankingsResult{Result: fail(http.StatusBadRequest, "Group name is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	group, err := s.groups.GetByName(ctx, name)
	if errors.Is(err, domain.ErrGroupNotFound) {
		return RankingsResult{Result: fail(http.StatusNotFound, "Group not found")}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to get group")
		return RankingsResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	start, _ := period.Bounds(p, ref)
	records, err := s.gains.ListForDate(ctx, group.Members, period.DateKey(start), p)
	if err != nil {
		s.logger.Error().Err(err).Str("group", name).Msg("failed to list gain records")
		return RankingsResult{Result: failErr(http.StatusInternalServerError, "Database error", err)}
	}

	rankings := make([]Ranking, len(records))
	for i, rec := range records {
		rankings[i] = Ranking{
			Rank:            i + 1,
			Username:        rec.Username,
			OverallXPGained: rec.OverallXPGained,
		}
	}

	return RankingsResult{
		Result:   ok(fmt.Sprintf("%s rankings for %s (%d members ranked)", p, name, len(rankings))),
		Rankings: rankings,
	}
}

// ListGroupNames exposes all registered groups for scheduler sweeps.
func (s *GroupService) ListGroupNames(ctx context.Context) ([]string, error) {
	return s.groups.ListNames(ctx)
}
