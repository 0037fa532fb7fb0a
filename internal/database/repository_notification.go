package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, user_id, type, title, message, read, created_at`

// CreateNotification inserts a notification row
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateNotificationTx inserts a notification inside an open transaction
func (r *Repository) CreateNotificationTx(ctx context.Context, tx pgx.Tx, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.QueryRow(
		ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications retrieves every notification, newest first
func (r *Repository) ListNotifications(ctx context.Context) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query)
}

// ListUserNotifications retrieves a user's notifications, newest first
func (r *Repository) ListUserNotifications(ctx context.Context, userID string) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query, userID)
}

// MarkNotificationRead flips a notification to read. Re-marking an
// already-read notification matches no row and reports changed=false,
// so the call stays a write-free no-op.
func (r *Repository) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND read = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllNotificationsRead flips every unread notification of a user
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *Repository) queryNotifications(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
