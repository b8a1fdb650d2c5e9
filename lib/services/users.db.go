package services

import (
	"backend/lib/battles"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UserDirectory resolves usernames to mini profiles and tracks presence in the
// users table.
type UserDirectory struct {
	db *Database
}

func NewUserDirectory(db *Database) *UserDirectory {
	return &UserDirectory{db: db}
}

func (dir *UserDirectory) MiniProfile(ctx context.Context, username string) (*battles.MiniProfile, error) {
	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var profile battles.MiniProfile
	err := dir.db.Pool.QueryRow(query_ctx,
		`SELECT username, display_name, rating FROM users WHERE username = $1`,
		username,
	).Scan(&profile.Username, &profile.DisplayName, &profile.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battles.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %q: %w", username, err)
	}
	return &profile, nil
}

func (dir *UserDirectory) SetStatus(ctx context.Context, username string, status battles.UserStatus) error {
	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := dir.db.Pool.Exec(query_ctx,
		`UPDATE users SET status = $2 WHERE username = $1`,
		username, string(status))
	if err != nil {
		return fmt.Errorf("failed to update status for %q: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return battles.ErrUserNotFound
	}
	return nil
}
