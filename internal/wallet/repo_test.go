package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
	"trading-support-app/internal/state"
)

// fakeRepo keeps rows in memory so wallet operations can be exercised
// without postgres. WithTx runs the callback directly; every operation
// writes before anything can fail, or fails before anything writes, so
// no rollback is simulated.
type fakeRepo struct {
	balances      map[string]float64
	transactions  map[string]*database.Transaction
	notifications []*database.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		balances:     make(map[string]float64),
		transactions: make(map[string]*database.Transaction),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (f *fakeRepo) GetUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string) (float64, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", userID, pgx.ErrNoRows)
	}
	return balance, nil
}

func (f *fakeRepo) UpdateUserBalanceTx(ctx context.Context, tx pgx.Tx, userID string, balance float64) (*database.User, error) {
	f.balances[userID] = balance
	return &database.User{ID: userID, Balance: balance}, nil
}

func (f *fakeRepo) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *database.Transaction) error {
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeRepo) CreateNotificationTx(ctx context.Context, tx pgx.Tx, n *database.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeRepo) GetTransactionForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*database.Transaction, error) {
	return f.transactions[id], nil
}

func (f *fakeRepo) UpdateTransactionStatusTx(ctx context.Context, tx pgx.Tx, t *database.Transaction) error {
	f.transactions[t.ID] = t
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	store := state.NewStore(nil, events.NewEventBus(), zerolog.Nop())
	return NewService(repo, store, events.NewEventBus(), zerolog.Nop())
}

func TestRequestWithdrawalDebitsAtCreation(t *testing.T) {
	repo := newFakeRepo()
	repo.balances["u1"] = 1000
	svc := newTestService(repo)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), "u1", 400)
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if repo.balances["u1"] != 600 {
		t.Errorf("balance should be debited to 600, got %.2f", repo.balances["u1"])
	}
	if withdrawal.Status != database.StatusPending {
		t.Errorf("expected pending status, got %s", withdrawal.Status)
	}
	if withdrawal.Amount != 400 {
		t.Errorf("expected amount 400, got %.2f", withdrawal.Amount)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.notifications))
	}
}

func TestRequestWithdrawalOverBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.balances["u1"] = 100
	svc := newTestService(repo)

	if _, err := svc.RequestWithdrawal(context.Background(), "u1", 100.01); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if repo.balances["u1"] != 100 {
		t.Errorf("balance should be untouched, got %.2f", repo.balances["u1"])
	}
	if len(repo.transactions) != 0 || len(repo.notifications) != 0 {
		t.Error("a failed request should write nothing")
	}
}

func TestRequestWithdrawalUnknownUser(t *testing.T) {
	svc := newTestService(newFakeRepo())
	if _, err := svc.RequestWithdrawal(context.Background(), "ghost", 10); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResolveWithdrawalLeavesBalanceUnchanged(t *testing.T) {
	repo := newFakeRepo()
	repo.balances["u1"] = 100 // already debited at request time
	repo.transactions["w1"] = &database.Transaction{
		ID:     "w1",
		UserID: "u1",
		Type:   database.TransactionWithdrawal,
		Amount: 500,
		Status: database.StatusPending,
	}
	svc := newTestService(repo)

	for _, status := range []database.TransactionStatus{
		database.StatusProcessing,
		database.StatusRejected,
		database.StatusCompleted,
	} {
		resolved, err := svc.ResolveWithdrawal(context.Background(), "w1", status, "reviewed")
		if err != nil {
			t.Fatalf("ResolveWithdrawal(%s): %v", status, err)
		}
		if resolved.Status != status {
			t.Errorf("expected status %s, got %s", status, resolved.Status)
		}
		if repo.balances["u1"] != 100 {
			t.Errorf("resolving to %s must not touch the balance, got %.2f", status, repo.balances["u1"])
		}
	}
	if repo.transactions["w1"].CompanyMessage != "reviewed" {
		t.Errorf("company message not attached: %q", repo.transactions["w1"].CompanyMessage)
	}
}

func TestResolveWithdrawalUnknownTransaction(t *testing.T) {
	svc := newTestService(newFakeRepo())
	if _, err := svc.ResolveWithdrawal(context.Background(), "missing", database.StatusApproved, ""); err != ErrTransactionNotFound {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestResolveWithdrawalRejectsNonWithdrawal(t *testing.T) {
	repo := newFakeRepo()
	repo.transactions["d1"] = &database.Transaction{
		ID:     "d1",
		UserID: "u1",
		Type:   database.TransactionDeposit,
		Amount: 50,
		Status: database.StatusCompleted,
	}
	svc := newTestService(repo)
	if _, err := svc.ResolveWithdrawal(context.Background(), "d1", database.StatusApproved, ""); err != ErrNotWithdrawal {
		t.Fatalf("expected ErrNotWithdrawal, got %v", err)
	}
}

func TestAdjustBalanceDebitFloor(t *testing.T) {
	repo := newFakeRepo()
	repo.balances["u1"] = 30
	svc := newTestService(repo)

	user, record, err := svc.AdjustBalance(context.Background(), "u1", database.TransactionDebit, 100)
	if err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	if user.Balance != 0 {
		t.Errorf("debit past zero should floor, got %.2f", user.Balance)
	}
	if record == nil || record.Amount != 30 {
		t.Fatalf("recorded amount should be the 30 actually debited, got %+v", record)
	}
}

func TestAdjustBalanceDebitEmptyBalanceRecordsNoTransaction(t *testing.T) {
	repo := newFakeRepo()
	repo.balances["u1"] = 0
	svc := newTestService(repo)

	_, record, err := svc.AdjustBalance(context.Background(), "u1", database.TransactionDebit, 50)
	if err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	if record != nil {
		t.Errorf("a debit that moves nothing should record no transaction, got %+v", record)
	}
	if len(repo.notifications) != 1 {
		t.Errorf("the user should still be notified, got %d notifications", len(repo.notifications))
	}
}
