package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldbooking/internal/config"
	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"
)

// GetUserRole returns the stored role name of a user.
func (db *DB) GetUserRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return role, err
}

// SetUserRole creates the user if needed and stores the role.
func (db *DB) SetUserRole(ctx context.Context, userID int64, role string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, role, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		userID, role, now, now,
	)
	return err
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, `SELECT id, name, role, created_at, updated_at FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SyncUsersFromConfig seeds the configured users. Existing users keep their
// stored role so assignments made at runtime survive a restart; only the name is refreshed.
func (db *DB) SyncUsersFromConfig(ctx context.Context, users []config.UserConfig) error {
	now := time.Now().UTC()
	for _, u := range users {
		if u.ID <= 0 {
			return fmt.Errorf("user %q: id must be positive", u.Name)
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, name, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				updated_at = excluded.updated_at`,
			u.ID, u.Name, u.Role, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync user %d: %w", u.ID, err)
		}
	}
	return nil
}
