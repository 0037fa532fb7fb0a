package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, type, amount, status, company_message, created_at, updated_at`

// CreateTransactionTx inserts a wallet movement inside an open transaction
func (r *Repository) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, status, company_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(
		ctx, query,
		t.ID, t.UserID, t.Type, t.Amount, t.Status, t.CompanyMessage,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByID retrieves a transaction. Returns (nil, nil) when not found.
func (r *Repository) GetTransactionByID(ctx context.Context, id string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t := &Transaction{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.CompanyMessage,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// GetTransactionForUpdateTx locks and retrieves a transaction row inside
// an open database transaction. Returns (nil, nil) when not found.
func (r *Repository) GetTransactionForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	t := &Transaction{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.CompanyMessage,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransactionStatusTx advances a transaction's lifecycle state and
// attaches the company note inside an open transaction.
func (r *Repository) UpdateTransactionStatusTx(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, company_message = $3
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query, t.ID, t.Status, t.CompanyMessage).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// ListTransactions retrieves every transaction, newest first
func (r *Repository) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC`
	return r.queryTransactions(ctx, query)
}

// ListUserTransactions retrieves a user's transactions, newest first
func (r *Repository) ListUserTransactions(ctx context.Context, userID string) ([]*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryTransactions(ctx, query, userID)
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		t := &Transaction{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.CompanyMessage,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
