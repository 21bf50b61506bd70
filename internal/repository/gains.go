package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"osrs-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type GainsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGainsRepository(sqlDB *sql.DB, logger zerolog.Logger) *GainsRepository {
	return &GainsRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert stores a gain record keyed by (username, date, period). A
// recomputation for the same window fully replaces the prior values;
// the unique index guarantees a single row per key.
func (r *GainsRepository) Upsert(ctx context.Context, record *domain.GainRecord) error {
	skillsJSON, err := json.Marshal(record.SkillsGained)
	if err != nil {
		return fmt.Errorf("failed to encode skills gained: %w", err)
	}
	activitiesJSON, err := json.Marshal(record.ActivitiesGained)
	if err != nil {
		return fmt.Errorf("failed to encode activities gained: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO gains (username, date, period, overall_xp_gained, skills_gained, activities_gained, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, date, period) DO UPDATE SET
			overall_xp_gained = excluded.overall_xp_gained,
			skills_gained = excluded.skills_gained,
			activities_gained = excluded.activities_gained,
			updated_at = excluded.updated_at`,
		Normalize(record.Username), record.DateKey, record.Period.String(),
		record.OverallXPGained, string(skillsJSON), string(activitiesJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert gain record for %s: %w", record.Username, err)
	}
	return nil
}

// Get fetches the stored gain record for one (username, date, period)
// key, or domain.ErrGainsNotFound when no computation has run.
func (r *GainsRepository) Get(ctx context.Context, username, dateKey string, period domain.Period) (*domain.GainRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, date, period, overall_xp_gained, skills_gained, activities_gained, created_at, updated_at
		FROM gains
		WHERE username = ? AND date = ? AND period = ?`,
		Normalize(username), dateKey, period.String())

	return scanGainRecord(row)
}

// ListForDate returns all records for a (date, period) pair restricted
// to the given usernames, ordered by overall XP gained descending.
// Used for group rankings.
func (r *GainsRepository) ListForDate(ctx context.Context, usernames []string, dateKey string, period domain.Period) ([]domain.GainRecord, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	query := `
		SELECT username, date, period, overall_xp_gained, skills_gained, activities_gained, created_at, updated_at
		FROM gains
		WHERE date = ? AND period = ? AND username IN (`
	args := []any{dateKey, period.String()}
	for i, u := range usernames {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, Normalize(u))
	}
	query += `) ORDER BY overall_xp_gained DESC, username ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gain records: %w", err)
	}
	defer rows.Close()

	var records []domain.GainRecord
	for rows.Next() {
		var rec domain.GainRecord
		var periodStr, skillsJSON, activitiesJSON string
		if err := rows.Scan(&rec.Username, &rec.DateKey, &periodStr, &rec.OverallXPGained,
			&skillsJSON, &activitiesJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gain record: %w", err)
		}
		rec.Period = domain.Period(periodStr)
		if err := json.Unmarshal([]byte(skillsJSON), &rec.SkillsGained); err != nil {
			return nil, fmt.Errorf("failed to decode skills gained: %w", err)
		}
		if err := json.Unmarshal([]byte(activitiesJSON), &rec.ActivitiesGained); err != nil {
			return nil, fmt.Errorf("failed to decode activities gained: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count reports how many rows exist for a (username, date, period)
// key. Exists for idempotency checks in tests.
func (r *GainsRepository) Count(ctx context.Context, username, dateKey string, period domain.Period) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gains WHERE username = ? AND date = ? AND period = ?`,
		Normalize(username), dateKey, period.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count gain records: %w", err)
	}
	return count, nil
}

func scanGainRecord(row *sql.Row) (*domain.GainRecord, error) {
	var rec domain.GainRecord
	var periodStr, skillsJSON, activitiesJSON string
	err := row.Scan(&rec.Username, &rec.DateKey, &periodStr, &rec.OverallXPGained,
		&skillsJSON, &activitiesJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrGainsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gain record: %w", err)
	}

	rec.Period = domain.Period(periodStr)
	if err := json.Unmarshal([]byte(skillsJSON), &rec.SkillsGained); err != nil {
		return nil, fmt.Errorf("failed to decode skills gained: %w", err)
	}
	if err := json.Unmarshal([]byte(activitiesJSON), &rec.ActivitiesGained); err != nil {
		return nil, fmt.Errorf("failed to decode activities gained: %w", err)
	}
	return &rec, nil
}
