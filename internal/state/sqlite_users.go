package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// GetOrCreateUser returns the user for email, creating it with DefaultRole on first login.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, email string) (*User, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, role, created_at) VALUES (?, ?, ?) ON CONFLICT(email) DO NOTHING`,
		email, DefaultRole, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("user created", slog.String("email", email), slog.String("role", DefaultRole))
	}
	return s.GetUser(ctx, email)
}

// GetUser looks up a user by email.
func (s *SQLiteStore) GetUser(ctx context.Context, email string) (*User, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		u         User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, role, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}
