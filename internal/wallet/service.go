// Package wallet implements balance movements: user withdrawal requests,
// admin balance adjustments, withdrawal resolution, and deposits. Every
// operation that touches more than one row runs inside a single database
// transaction.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
	"trading-support-app/internal/state"
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("amount exceeds available balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotWithdrawal       = errors.New("transaction is not a withdrawal")
	ErrInvalidStatus       = errors.New("unknown transaction status")
)

// Repo is the slice of the repository the wallet needs: the transaction
// runner and the row operations executed inside it.
type Repo interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string) (float64, error)
	UpdateUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string, balance float64) (*database.User, error)
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *database.Transaction) error
	CreateNotificationTx(ctx context.Context, tx pgx.Tx, n *database.Notification) error
	GetTransactionForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*database.Transaction, error)
	UpdateTransactionStatusTx(ctx context.Context, tx pgx.Tx, t *database.Transaction) error
}

// Service executes wallet operations against the repository and mirrors
// committed rows into the state store.
type Service struct {
	repo   Repo
	store  *state.Store
	bus    *events.EventBus
	logger zerolog.Logger
}

// NewService creates a wallet service
func NewService(repo Repo, store *state.Store, bus *events.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "WalletService").Logger(),
	}
}

// RequestWithdrawal debits the user's balance and opens a pending
// withdrawal in one transaction. The debit happens at creation time, not
// at approval.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount float64) (*database.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var (
		withdrawal *database.Transaction
		updated    *database.User
		notice     *database.Notification
	)
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		balance, err := s.lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if amount > balance {
			return ErrInsufficientBalance
		}

		updated, err = s.repo.UpdateUserBalanceTx(ctx, tx, userID, balance-amount)
		if err != nil {
			return err
		}

		withdrawal = &database.Transaction{
			ID:     uuid.New().String(),
			UserID: userID,
			Type:   database.TransactionWithdrawal,
			Amount: amount,
			Status: database.StatusPending,
		}
		if err := s.repo.CreateTransactionTx(ctx, tx, withdrawal); err != nil {
			return err
		}

		notice = &database.Notification{
			ID:      uuid.New().String(),
			UserID:  userID,
			Type:    database.NotifyWithdrawal,
			Title:   "Withdrawal Requested",
			Message: fmt.Sprintf("Your withdrawal request of $%.2f has been submitted and is pending review.", amount),
		}
		return s.repo.CreateNotificationTx(ctx, tx, notice)
	})
	if err != nil {
		return nil, err
	}

	s.store.ApplyUser(updated)
	s.store.ApplyTransaction(withdrawal)
	s.store.ApplyNotification(notice)
	s.bus.PublishCollectionChanged("users", userID)
	s.bus.PublishCollectionChanged("transactions", userID)
	s.bus.PublishCollectionChanged("notifications", userID)

	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", withdrawal.ID).
		Float64("amount", amount).
		Msg("withdrawal requested")
	return withdrawal, nil
}

// AdjustBalance applies an admin credit or debit. Credits add the full
// amount; debits floor at zero, and the recorded transaction amount is
// what was actually debited. A debit against an empty balance records no
// transaction but still notifies the user.
func (s *Service) AdjustBalance(ctx context.Context, userID string, kind database.TransactionType, amount float64) (*database.User, *database.Transaction, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if kind != database.TransactionCredit && kind != database.TransactionDebit {
		return nil, nil, fmt.Errorf("unsupported adjustment type %q", kind)
	}

	var (
		updated *database.User
		record  *database.Transaction
		notice  *database.Notification
	)
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		balance, err := s.lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}

		newBalance, applied := applyAdjustment(balance, kind, amount)

		updated, err = s.repo.UpdateUserBalanceTx(ctx, tx, userID, newBalance)
		if err != nil {
			return err
		}

		if applied > 0 {
			record = &database.Transaction{
				ID:     uuid.New().String(),
				UserID: userID,
				Type:   kind,
				Amount: applied,
				Status: database.StatusCompleted,
			}
			if err := s.repo.CreateTransactionTx(ctx, tx, record); err != nil {
				return err
			}
		}

		notice = &database.Notification{
			ID:      uuid.New().String(),
			UserID:  userID,
			Type:    database.NotifyBalance,
			Title:   "Balance Updated",
			Message: adjustmentMessage(kind, applied, newBalance),
		}
		return s.repo.CreateNotificationTx(ctx, tx, notice)
	})
	if err != nil {
		return nil, nil, err
	}

	s.store.ApplyUser(updated)
	if record != nil {
		s.store.ApplyTransaction(record)
		s.bus.PublishCollectionChanged("transactions", userID)
	}
	s.store.ApplyNotification(notice)
	s.bus.PublishCollectionChanged("users", userID)
	s.bus.PublishCollectionChanged("notifications", userID)

	s.logger.Info().
		Str("user_id", userID).
		Str("kind", string(kind)).
		Float64("requested", amount).
		Float64("balance", updated.Balance).
		Msg("balance adjusted")
	return updated, record, nil
}

// lockBalance reads the user's balance under a row lock, translating a
// missing row into ErrUserNotFound.
func (s *Service) lockBalance(ctx context.Context, tx pgx.Tx, userID string) (float64, error) {
	balance, err := s.repo.GetUserBalanceTx(ctx, tx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

// applyAdjustment computes the new balance and the amount actually moved
func applyAdjustment(balance float64, kind database.TransactionType, amount float64) (newBalance, applied float64) {
	if kind == database.TransactionCredit {
		return balance + amount, amount
	}
	if amount >= balance {
		return 0, balance
	}
	return balance - amount, amount
}

func adjustmentMessage(kind database.TransactionType, applied, newBalance float64) string {
	if kind == database.TransactionCredit {
		return fmt.Sprintf("Your account has been credited with $%.2f. New balance: $%.2f.", applied, newBalance)
	}
	return fmt.Sprintf("Your account has been debited $%.2f. New balance: $%.2f.", applied, newBalance)
}

// ResolveWithdrawal moves a withdrawal to a new status, attaches the
// company message, and notifies the user. The balance was debited when
// the request was created; no status transition touches it again.
func (s *Service) ResolveWithdrawal(ctx context.Context, transactionID string, status database.TransactionStatus, companyMessage string) (*database.Transaction, error) {
	if !database.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	var (
		resolved *database.Transaction
		notice   *database.Notification
	)
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		t, err := s.repo.GetTransactionForUpdateTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}
		if t.Type != database.TransactionWithdrawal {
			return ErrNotWithdrawal
		}

		t.Status = status
		t.CompanyMessage = companyMessage
		if err := s.repo.UpdateTransactionStatusTx(ctx, tx, t); err != nil {
			return err
		}

		notice = &database.Notification{
			ID:      uuid.New().String(),
			UserID:  t.UserID,
			Type:    database.NotifyWithdrawal,
			Title:   "Withdrawal Update",
			Message: resolutionMessage(t.Amount, status, companyMessage),
		}
		if err := s.repo.CreateNotificationTx(ctx, tx, notice); err != nil {
			return err
		}

		resolved = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.ApplyTransaction(resolved)
	s.store.ApplyNotification(notice)
	s.bus.PublishCollectionChanged("transactions", resolved.UserID)
	s.bus.PublishCollectionChanged("notifications", resolved.UserID)

	s.logger.Info().
		Str("transaction_id", resolved.ID).
		Str("user_id", resolved.UserID).
		Str("status", string(status)).
		Msg("withdrawal resolved")
	return resolved, nil
}

func resolutionMessage(amount float64, status database.TransactionStatus, companyMessage string) string {
	msg := fmt.Sprintf("Your withdrawal of $%.2f is now %s.", amount, status)
	if companyMessage != "" {
		msg += " " + companyMessage
	}
	return msg
}

// RecordDeposit credits a confirmed deposit to the user's balance
func (s *Service) RecordDeposit(ctx context.Context, userID string, amount float64) (*database.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var (
		deposit *database.Transaction
		updated *database.User
		notice  *database.Notification
	)
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		balance, err := s.lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}

		updated, err = s.repo.UpdateUserBalanceTx(ctx, tx, userID, balance+amount)
		if err != nil {
			return err
		}

		deposit = &database.Transaction{
			ID:     uuid.New().String(),
			UserID: userID,
			Type:   database.TransactionDeposit,
			Amount: amount,
			Status: database.StatusCompleted,
		}
		if err := s.repo.CreateTransactionTx(ctx, tx, deposit); err != nil {
			return err
		}

		notice = &database.Notification{
			ID:      uuid.New().String(),
			UserID:  userID,
			Type:    database.NotifyBalance,
			Title:   "Deposit Received",
			Message: fmt.Sprintf("A deposit of $%.2f has been credited to your account at %s.", amount, time.Now().Format("Jan 2, 2006 3:04 PM")),
		}
		return s.repo.CreateNotificationTx(ctx, tx, notice)
	})
	if err != nil {
		return nil, err
	}

	s.store.ApplyUser(updated)
	s.store.ApplyTransaction(deposit)
	s.store.ApplyNotification(notice)
	s.bus.PublishCollectionChanged("users", userID)
	s.bus.PublishCollectionChanged("transactions", userID)
	s.bus.PublishCollectionChanged("notifications", userID)

	return deposit, nil
}
