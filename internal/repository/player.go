package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"osrs-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Normalize lowercases a player handle so "Zezima" and "zezima" hit the
// same row.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// GetByName looks up a player case-insensitively.
func (r *PlayerRepository) GetByName(ctx context.Context, username string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, overall_level, overall_xp, skills, activities, created_at, updated_at
		FROM players
		WHERE username = ?`,
		Normalize(username))

	var p domain.Player
	var skillsJSON, activitiesJSON string
	err := row.Scan(&p.Username, &p.OverallLevel, &p.OverallXP, &skillsJSON, &activitiesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	if err := json.Unmarshal([]byte(skillsJSON), &p.Skills); err != nil {
		return nil, fmt.Errorf("failed to decode skills for %s: %w", p.Username, err)
	}
	if err := json.Unmarshal([]byte(activitiesJSON), &p.Activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities for %s: %w", p.Username, err)
	}
	return &p, nil
}

// FindManyByNames resolves usernames to existing players. Unknown names
// are simply absent from the result, never an error.
func (r *PlayerRepository) FindManyByNames(ctx context.Context, usernames []string) ([]domain.Player, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(usernames))
	args := make([]any, len(usernames))
	for i, u := range usernames {
		placeholders[i] = "?"
		args[i] = Normalize(u)
	}

	query := fmt.Sprintf(`
		SELECT username, overall_level, overall_xp, skills, activities, created_at, updated_at
		FROM players
		WHERE username IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		var skillsJSON, activitiesJSON string
		if err := rows.Scan(&p.Username, &p.OverallLevel, &p.OverallXP, &skillsJSON, &activitiesJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		if err := json.Unmarshal([]byte(skillsJSON), &p.Skills); err != nil {
			return nil, fmt.Errorf("failed to decode skills for %s: %w", p.Username, err)
		}
		if err := json.Unmarshal([]byte(activitiesJSON), &p.Activities); err != nil {
			return nil, fmt.Errorf("failed to decode activities for %s: %w", p.Username, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// UpsertWithSnapshot overwrites the player's current stats and appends
// an immutable snapshot in a single transaction, inserting the player
// row if the identity is new.
func (r *PlayerRepository) UpsertWithSnapshot(ctx context.Context, player *domain.Player, snapshot *domain.Snapshot) error {
	skillsJSON, err := json.Marshal(player.Skills)
	if err != nil {
		return fmt.Errorf("failed to encode skills: %w", err)
	}
	activitiesJSON, err := json.Marshal(player.Activities)
	if err != nil {
		return fmt.Errorf("failed to encode activities: %w", err)
	}
	snapSkillsJSON, err := json.Marshal(snapshot.Skills)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot skills: %w", err)
	}
	snapActivitiesJSON, err := json.Marshal(snapshot.Activities)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot activities: %w", err)
	}

	snapshotID := snapshot.ID
	if snapshotID == "" {
		snapshotID, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	username := Normalize(player.Username)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (username, overall_level, overall_xp, skills, activities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			overall_level = excluded.overall_level,
			overall_xp = excluded.overall_xp,
			skills = excluded.skills,
			activities = excluded.activities,
			updated_at = excluded.updated_at`,
		username, player.OverallLevel, player.OverallXP, string(skillsJSON), string(activitiesJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", username, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, username, taken_at, overall_level, overall_xp, skills, activities)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, username, snapshot.TakenAt.UTC(), snapshot.OverallLevel, snapshot.OverallXP,
		string(snapSkillsJSON), string(snapActivitiesJSON))
	if err != nil {
		return fmt.Errorf("failed to append snapshot for %s: %w", username, err)
	}

	return tx.Commit()
}

// SnapshotsInRange returns a player's snapshots with taken_at inside
// [start, end] inclusive, oldest first. Equal timestamps keep insertion
// order via the id tiebreaker, so selection is deterministic.
func (r *PlayerRepository) SnapshotsInRange(ctx context.Context, username string, start, end time.Time) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, taken_at, overall_level, overall_xp, skills, activities
		FROM snapshots
		WHERE username = ? AND taken_at >= ? AND taken_at <= ?
		ORDER BY taken_at ASC, id ASC`,
		Normalize(username), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		var skillsJSON, activitiesJSON string
		if err := rows.Scan(&s.ID, &s.Username, &s.TakenAt, &s.OverallLevel, &s.OverallXP, &skillsJSON, &activitiesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(skillsJSON), &s.Skills); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot skills: %w", err)
		}
		if err := json.Unmarshal([]byte(activitiesJSON), &s.Activities); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot activities: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// SnapshotCount reports how many snapshots exist for a player.
func (r *PlayerRepository) SnapshotCount(ctx context.Context, username string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE username = ?`,
		Normalize(username)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}
