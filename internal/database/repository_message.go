package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, sender_id, receiver_id, text, read, created_at`

// CreateMessage inserts a new chat message
func (r *Repository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Read,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// CreateMessageTx inserts a chat message inside an open transaction
func (r *Repository) CreateMessageTx(ctx context.Context, tx pgx.Tx, msg *Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := tx.QueryRow(
		ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Read,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListMessages retrieves every message, oldest first
func (r *Repository) ListMessages(ctx context.Context) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY created_at ASC`
	return r.queryMessages(ctx, query)
}

// GetConversation retrieves the messages exchanged between two users,
// oldest first.
func (r *Repository) GetConversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`
	return r.queryMessages(ctx, query, userA, userB)
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.Read, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
