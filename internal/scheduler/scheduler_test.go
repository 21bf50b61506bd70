package scheduler

import (
	"context"
	"testing"
	"time"

	"osrs-tracker/internal/config"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/service"
	"osrs-tracker/internal/testutil"

	"github.com/rs/zerolog"
)

func newSweepFixture(t *testing.T) (*Scheduler, *repository.PlayerRepository, *service.GroupService, *repository.GainsRepository) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	logger := zerolog.Nop()

	players := repository.NewPlayerRepository(db, logger)
	groups := repository.NewGroupRepository(db, logger)
	gains := repository.NewGainsRepository(db, logger)
	engine := service.NewGainsEngine(players, gains, logger)
	groupSvc := service.NewGroupService(groups, players, gains, engine, logger)

	sched, err := New(&config.Config{SchedulerEnabled: true}, groupSvc, logger)
	if err != nil {
		t.Fatalf("scheduler New error: %v", err)
	}
	return sched, players, groupSvc, gains
}

func storeSnapshot(t *testing.T, players *repository.PlayerRepository, username string, at time.Time, xp int64) {
	t.Helper()
	skills := []domain.SkillStat{{Name: "Attack", Level: 60, XP: xp}}
	player := &domain.Player{Username: username, OverallLevel: 100, OverallXP: xp, Skills: skills}
	snap := &domain.Snapshot{Username: username, TakenAt: at, OverallLevel: 100, OverallXP: xp, Skills: skills}
	if err := players.UpsertWithSnapshot(context.Background(), player, snap); err != nil {
		t.Fatalf("failed to store snapshot: %v", err)
	}
}

func TestRunSweepProcessesAllGroups(t *testing.T) {
	sched, players, groupSvc, gains := newSweepFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	storeSnapshot(t, players, "alice", now.Add(-2*time.Minute), 100)
	storeSnapshot(t, players, "alice", now.Add(-1*time.Minute), 150)
	storeSnapshot(t, players, "bob", now.Add(-2*time.Minute), 10)
	storeSnapshot(t, players, "bob", now.Add(-1*time.Minute), 30)

	for groupName, member := range map[string]string{"G1": "alice", "G2": "bob"} {
		if result := groupSvc.CreateGroup(ctx, groupName); !result.Success {
			t.Fatalf("CreateGroup %s failed: %s", groupName, result.Message)
		}
		if result := groupSvc.AddMembers(ctx, groupName, []string{member}); !result.Success {
			t.Fatalf("AddMembers %s failed: %s", groupName, result.Message)
		}
	}

	sched.runSweep(domain.PeriodDaily)

	dateKey := now.Format("2006-01-02")
	for _, username := range []string{"alice", "bob"} {
		if _, err := gains.Get(ctx, username, dateKey, domain.PeriodDaily); err != nil {
			t.Errorf("sweep left no record for %s: %v", username, err)
		}
	}
}

func TestRunSweepToleratesEmptyGroups(t *testing.T) {
	sched, _, groupSvc, _ := newSweepFixture(t)

	if result := groupSvc.CreateGroup(context.Background(), "empty"); !result.Success {
		t.Fatalf("CreateGroup failed: %s", result.Message)
	}

	// Must not panic or error the process; the failure is logged and dropped.
	sched.runSweep(domain.PeriodWeekly)
}
