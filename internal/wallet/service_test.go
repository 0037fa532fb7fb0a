package wallet

import (
	"testing"

	"trading-support-app/internal/database"
)

func TestApplyAdjustmentCredit(t *testing.T) {
	newBalance, applied := applyAdjustment(100, database.TransactionCredit, 25.50)
	if newBalance != 125.50 {
		t.Errorf("expected balance 125.50, got %.2f", newBalance)
	}
	if applied != 25.50 {
		t.Errorf("expected applied 25.50, got %.2f", applied)
	}
}

func TestApplyAdjustmentDebit(t *testing.T) {
	newBalance, applied := applyAdjustment(100, database.TransactionDebit, 40)
	if newBalance != 60 {
		t.Errorf("expected balance 60, got %.2f", newBalance)
	}
	if applied != 40 {
		t.Errorf("expected applied 40, got %.2f", applied)
	}
}

func TestApplyAdjustmentDebitFloorsAtZero(t *testing.T) {
	newBalance, applied := applyAdjustment(30, database.TransactionDebit, 100)
	if newBalance != 0 {
		t.Errorf("debit past zero should floor, got %.2f", newBalance)
	}
	if applied != 30 {
		t.Errorf("applied amount should be the balance actually debited, got %.2f", applied)
	}
}

func TestApplyAdjustmentDebitEmptyBalance(t *testing.T) {
	newBalance, applied := applyAdjustment(0, database.TransactionDebit, 50)
	if newBalance != 0 || applied != 0 {
		t.Errorf("debit on empty balance should move nothing, got balance %.2f applied %.2f", newBalance, applied)
	}
}

func TestResolutionMessage(t *testing.T) {
	msg := resolutionMessage(150, database.StatusRejected, "Incomplete verification.")
	want := "Your withdrawal of $150.00 is now rejected. Incomplete verification."
	if msg != want {
		t.Errorf("got %q, want %q", msg, want)
	}

	msg = resolutionMessage(75.25, database.StatusApproved, "")
	want = "Your withdrawal of $75.25 is now approved."
	if msg != want {
		t.Errorf("got %q, want %q", msg, want)
	}
}
