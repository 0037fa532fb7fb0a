package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, trading_id, balance, is_admin,
	avatar_url, payout_account, dark_mode, notifications_enabled, joined_at, updated_at`

// CreateUser inserts a new user row
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, trading_id, balance, is_admin,
			avatar_url, payout_account, dark_mode, notifications_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING joined_at, updated_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.TradingID,
		user.Balance, user.IsAdmin, user.AvatarURL, user.PayoutAccount,
		user.DarkMode, user.NotificationsEnabled,
	).Scan(&user.JoinedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

// GetUserByLogin retrieves a user by email or trading ID.
// Returns (nil, nil) when not found.
func (r *Repository) GetUserByLogin(ctx context.Context, identifier string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE LOWER(email) = LOWER($1) OR trading_id = $1`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query, identifier))
}

// GetAdminUser retrieves the support identity row.
// Returns (nil, nil) when no admin has been seeded yet.
func (r *Repository) GetAdminUser(ctx context.Context) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_admin = TRUE LIMIT 1`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query))
}

// ListUsers retrieves all users, newest first
func (r *Repository) ListUsers(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY joined_at DESC`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates the editable profile fields
func (r *Repository) UpdateUserProfile(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, avatar_url = $3, payout_account = $4, dark_mode = $5,
			notifications_enabled = $6
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		user.ID, user.Name, user.AvatarURL, user.PayoutAccount,
		user.DarkMode, user.NotificationsEnabled,
	).Scan(&user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user row. Messages, transactions, notifications,
// and refresh tokens cascade with it.
func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, pgx.ErrNoRows)
	}
	return nil
}

// UpdateUserPassword replaces the stored password hash
func (r *Repository) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateUserBalanceTx sets a user's balance inside an open transaction
// and returns the updated row.
func (r *Repository) UpdateUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string, balance float64) (*User, error) {
	query := `UPDATE users SET balance = $2 WHERE id = $1 RETURNING ` + userColumns
	user, err := r.scanUserRow(tx.QueryRow(ctx, query, userID, balance))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return user, nil
}

// GetUserBalanceTx reads a user's balance with a row lock so concurrent
// wallet operations serialize on the row.
func (r *Repository) GetUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string) (float64, error) {
	var balance float64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user %s: %w", userID, pgx.ErrNoRows)
		}
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanUser(row rowScanner) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.TradingID,
		&user.Balance, &user.IsAdmin, &user.AvatarURL, &user.PayoutAccount,
		&user.DarkMode, &user.NotificationsEnabled, &user.JoinedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func (r *Repository) scanUserRow(row pgx.Row) (*User, error) {
	user, err := r.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
