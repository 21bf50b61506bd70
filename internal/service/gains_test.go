package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/testutil"

	"github.com/rs/zerolog"
)

func newEngine(t *testing.T) (*GainsEngine, *repository.PlayerRepository, *repository.GainsRepository) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	players := repository.NewPlayerRepository(db, zerolog.Nop())
	gains := repository.NewGainsRepository(db, zerolog.Nop())
	return NewGainsEngine(players, gains, zerolog.Nop()), players, gains
}

func snapshotAt(username string, at time.Time, xp int64, skills []domain.SkillStat, activities []domain.ActivityStat) (*domain.Player, *domain.Snapshot) {
	player := &domain.Player{
		Username:     username,
		OverallLevel: 100,
		OverallXP:    xp,
		Skills:       skills,
		Activities:   activities,
	}
	snapshot := &domain.Snapshot{
		Username:     username,
		TakenAt:      at,
		OverallLevel: 100,
		OverallXP:    xp,
		Skills:       skills,
		Activities:   activities,
	}
	return player, snapshot
}

func mustIngest(t *testing.T, players *repository.PlayerRepository, username string, at time.Time, xp int64, skills []domain.SkillStat, activities []domain.ActivityStat) {
	t.Helper()
	player, snap := snapshotAt(username, at, xp, skills, activities)
	if err := players.UpsertWithSnapshot(context.Background(), player, snap); err != nil {
		t.Fatalf("failed to store snapshot: %v", err)
	}
}

func TestDiffSnapshotsBasic(t *testing.T) {
	first := &domain.Snapshot{
		OverallXP: 100,
		Skills: []domain.SkillStat{
			{Name: "Attack", Level: 60, XP: 273742},
		},
		Activities: []domain.ActivityStat{
			{Name: "Zulrah", Score: 100},
		},
	}
	last := &domain.Snapshot{
		OverallXP: 150,
		Skills: []domain.SkillStat{
			{Name: "Attack", Level: 61, XP: 302288},
		},
		Activities: []domain.ActivityStat{
			{Name: "Zulrah", Score: 110},
		},
	}

	rec := diffSnapshots("Zezima", domain.PeriodDaily, "2024-03-15", first, last)

	if rec.Username != "zezima" {
		t.Errorf("username = %q, want normalized zezima", rec.Username)
	}
	if rec.OverallXPGained != 50 {
		t.Errorf("overall xp gained = %d, want 50", rec.OverallXPGained)
	}
	if rec.SkillsGained[0].XPGained != 28546 || rec.SkillsGained[0].LevelGained != 1 {
		t.Errorf("attack gain = %+v", rec.SkillsGained[0])
	}
	if rec.ActivitiesGained[0].Gained != 10 {
		t.Errorf("zulrah gain = %d, want 10", rec.ActivitiesGained[0].Gained)
	}
}

func TestDiffSnapshotsMissingInFirstIsZeroBaseline(t *testing.T) {
	first := &domain.Snapshot{
		OverallXP:  100,
		Skills:     []domain.SkillStat{{Name: "Attack", Level: 60, XP: 273742}},
		Activities: nil,
	}
	last := &domain.Snapshot{
		OverallXP: 150,
		Skills: []domain.SkillStat{
			{Name: "Attack", Level: 60, XP: 273742},
			{Name: "Sailing", Level: 10, XP: 1200},
		},
		Activities: []domain.ActivityStat{
			{Name: "Zulrah", Score: 42},
		},
	}

	rec := diffSnapshots("zezima", domain.PeriodDaily, "2024-03-15", first, last)

	if len(rec.SkillsGained) != 2 {
		t.Fatalf("skills gained = %d entries, want 2 (last is canonical)", len(rec.SkillsGained))
	}
	sailing := rec.SkillsGained[1]
	if sailing.XPGained != 1200 || sailing.LevelGained != 10 {
		t.Errorf("new skill gained = %+v, want full last value from zero baseline", sailing)
	}
	if rec.ActivitiesGained[0].Gained != 42 {
		t.Errorf("new activity gained = %d, want full last value 42", rec.ActivitiesGained[0].Gained)
	}
}

func TestDiffSnapshotsNegativeDeltaKept(t *testing.T) {
	first := &domain.Snapshot{
		OverallXP: 150,
		Skills:    []domain.SkillStat{{Name: "Attack", Level: 61, XP: 302288}},
	}
	last := &domain.Snapshot{
		OverallXP: 100,
		Skills:    []domain.SkillStat{{Name: "Attack", Level: 60, XP: 273742}},
	}

	rec := diffSnapshots("zezima", domain.PeriodDaily, "2024-03-15", first, last)
	if rec.OverallXPGained != -50 {
		t.Errorf("overall xp gained = %d, want -50 (resets kept as-is)", rec.OverallXPGained)
	}
	if rec.SkillsGained[0].XPGained != -28546 {
		t.Errorf("skill gained = %d, want negative delta preserved", rec.SkillsGained[0].XPGained)
	}
}

func TestDiffSnapshotsSkillDroppedFromLastIsOmitted(t *testing.T) {
	first := &domain.Snapshot{
		Skills: []domain.SkillStat{
			{Name: "Attack", XP: 100},
			{Name: "Unknown_Skill_24", XP: 5},
		},
	}
	last := &domain.Snapshot{
		Skills: []domain.SkillStat{{Name: "Attack", XP: 150}},
	}

	rec := diffSnapshots("zezima", domain.PeriodDaily, "2024-03-15", first, last)
	if len(rec.SkillsGained) != 1 {
		t.Errorf("skills gained = %d entries, want 1: only last's list is reported", len(rec.SkillsGained))
	}
}

func TestComputeGainsInsufficientData(t *testing.T) {
	engine, players, _ := newEngine(t)
	ctx := context.Background()
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	skills := []domain.SkillStat{{Name: "Attack", Level: 60, XP: 1000}}
	mustIngest(t, players, "zezima", ref.Add(-1*time.Hour), 100, skills, nil)

	_, err := engine.ComputeGains(ctx, domain.PeriodDaily, "zezima", ref)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("one snapshot: got %v, want ErrInsufficientData", err)
	}

	mustIngest(t, players, "zezima", ref.Add(-30*time.Minute), 150, skills, nil)

	rec, err := engine.ComputeGains(ctx, domain.PeriodDaily, "zezima", ref)
	if err != nil {
		t.Fatalf("two snapshots: unexpected error %v", err)
	}
	if rec.OverallXPGained != 50 {
		t.Errorf("overall xp gained = %d, want 50", rec.OverallXPGained)
	}
}

func TestComputeGainsPlayerNotFound(t *testing.T) {
	engine, _, _ := newEngine(t)

	_, err := engine.ComputeGains(context.Background(), domain.PeriodDaily, "nobody", time.Now().UTC())
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("got %v, want ErrPlayerNotFound", err)
	}
}

func TestComputeGainsIgnoresSnapshotsOutsideWindow(t *testing.T) {
	engine, players, _ := newEngine(t)
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	skills := []domain.SkillStat{{Name: "Attack", XP: 1000}}

	// Yesterday's pair must not satisfy today's window.
	mustIngest(t, players, "zezima", ref.Add(-36*time.Hour), 10, skills, nil)
	mustIngest(t, players, "zezima", ref.Add(-30*time.Hour), 90, skills, nil)

	_, err := engine.ComputeGains(context.Background(), domain.PeriodDaily, "zezima", ref)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData for out-of-window snapshots", err)
	}
}

func TestComputeGainsFirstAndLastOfMany(t *testing.T) {
	engine, players, _ := newEngine(t)
	ref := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
	skills := []domain.SkillStat{{Name: "Attack", XP: 0}}

	// Five snapshots in the window; only the earliest and latest matter.
	for i, xp := range []int64{100, 120, 115, 180, 250} {
		mustIngest(t, players, "zezima", ref.Add(time.Duration(-10+i)*time.Hour), xp, skills, nil)
	}

	rec, err := engine.ComputeGains(context.Background(), domain.PeriodDaily, "zezima", ref)
	if err != nil {
		t.Fatalf("ComputeGains error: %v", err)
	}
	if rec.OverallXPGained != 150 {
		t.Errorf("overall xp gained = %d, want last-first = 150", rec.OverallXPGained)
	}
}

func TestComputeGainsIdempotent(t *testing.T) {
	engine, players, gains := newEngine(t)
	ctx := context.Background()
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	skills := []domain.SkillStat{{Name: "Attack", Level: 60, XP: 1000}}

	mustIngest(t, players, "zezima", ref.Add(-2*time.Hour), 100, skills, nil)
	mustIngest(t, players, "zezima", ref.Add(-1*time.Hour), 150, skills, nil)

	firstRun, err := engine.ComputeGains(ctx, domain.PeriodDaily, "zezima", ref)
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	secondRun, err := engine.ComputeGains(ctx, domain.PeriodDaily, "zezima", ref)
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}

	if firstRun.OverallXPGained != secondRun.OverallXPGained {
		t.Errorf("runs disagree: %d vs %d", firstRun.OverallXPGained, secondRun.OverallXPGained)
	}

	count, err := gains.Count(ctx, "zezima", "2024-03-15", domain.PeriodDaily)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Errorf("record count after recompute = %d, want 1", count)
	}
}

func TestComputeGainsWeeklyDateKey(t *testing.T) {
	engine, players, gains := newEngine(t)
	ctx := context.Background()
	// Thursday; the weekly key must be the Monday of that week.
	ref := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	skills := []domain.SkillStat{{Name: "Attack", XP: 0}}

	mustIngest(t, players, "zezima", ref.Add(-48*time.Hour), 100, skills, nil)
	mustIngest(t, players, "zezima", ref.Add(-1*time.Hour), 160, skills, nil)

	rec, err := engine.ComputeGains(ctx, domain.PeriodWeekly, "zezima", ref)
	if err != nil {
		t.Fatalf("ComputeGains error: %v", err)
	}
	if rec.DateKey != "2024-03-11" {
		t.Errorf("weekly date key = %q, want 2024-03-11", rec.DateKey)
	}

	if _, err := gains.Get(ctx, "zezima", "2024-03-11", domain.PeriodWeekly); err != nil {
		t.Errorf("stored weekly record not found: %v", err)
	}
}
