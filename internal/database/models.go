package database

import (
	"time"
)

// TransactionType represents the kind of wallet movement
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionCredit     TransactionType = "credit"
	TransactionDebit      TransactionType = "debit"
)

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusApproved   TransactionStatus = "approved"
	StatusRejected   TransactionStatus = "rejected"
	StatusCompleted  TransactionStatus = "completed"
)

// ValidStatus reports whether s is a known lifecycle state
func ValidStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// NotificationType categorizes notifications for client rendering
type NotificationType string

const (
	NotifyBalance    NotificationType = "balance"
	NotifyProfit     NotificationType = "profit"
	NotifyWithdrawal NotificationType = "withdrawal"
	NotifyMessage    NotificationType = "message"
	NotifyLogin      NotificationType = "login"
)

// User represents a platform account. The admin support identity is a
// regular row with IsAdmin set.
type User struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	PasswordHash         string    `json:"-"`
	TradingID            string    `json:"trading_id"`
	Balance              float64   `json:"balance"`
	IsAdmin              bool      `json:"is_admin"`
	AvatarURL            string    `json:"avatar_url,omitempty"`
	PayoutAccount        string    `json:"payout_account,omitempty"`
	DarkMode             bool      `json:"dark_mode"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	JoinedAt             time.Time `json:"joined_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Message is a single chat message between a user and the support identity
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is a wallet movement record
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Type           TransactionType   `json:"type"`
	Amount         float64           `json:"amount"`
	Status         TransactionStatus `json:"status"`
	CompanyMessage string            `json:"company_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Notification is a per-user inbox entry
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
