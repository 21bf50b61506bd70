package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"osrs-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type GroupRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGroupRepository(sqlDB *sql.DB, logger zerolog.Logger) *GroupRepository {
	return &GroupRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Create inserts a new empty group. Name uniqueness is enforced by the
// store; a duplicate name surfaces as domain.ErrGroupExists.
func (r *GroupRepository) Create(ctx context.Context, name string) (*domain.Group, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrGroupExists
		}
		return nil, fmt.Errorf("failed to create group %s: %w", name, err)
	}

	return &domain.Group{ID: id, Name: name, CreatedAt: now}, nil
}

// GetByName fetches a group and its member usernames.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*domain.Group, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM groups WHERE name = ?`, name)

	var g domain.Group
	err := row.Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT username FROM group_members WHERE group_id = ? ORDER BY added_at ASC, username ASC`, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		g.Members = append(g.Members, username)
	}
	return &g, rows.Err()
}

// ListNames returns every group name, for scheduler sweeps.
func (r *GroupRepository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM groups ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan group name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddMembers appends usernames to a group, skipping any already
// present. The composite primary key makes the add idempotent even
// under concurrent calls. Returns the number of net-new members.
func (r *GroupRepository) AddMembers(ctx context.Context, groupID string, usernames []string) (int, error) {
	if len(usernames) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	added := 0
	for _, username := range usernames {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, username, added_at)
			VALUES (?, ?, ?)
			ON CONFLICT (group_id, username) DO NOTHING`,
			groupID, Normalize(username), now)
		if err != nil {
			return 0, fmt.Errorf("failed to add member %s: %w", username, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
