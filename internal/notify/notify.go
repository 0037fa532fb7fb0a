// Package notify delivers operational alerts to external channels. The
// support team gets pinged when users register, request withdrawals, or
// when the backend reports an error.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AlertType represents the type of operational alert
type AlertType string

const (
	AlertSignup     AlertType = "signup"
	AlertWithdrawal AlertType = "withdrawal"
	AlertResolution AlertType = "resolution"
	AlertError      AlertType = "error"
	AlertInfo       AlertType = "info"
)

// Alert represents an outbound operational alert
type Alert struct {
	Type      AlertType
	Title     string
	Message   string
	UserID    string
	TradingID string
	Amount    float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different alert providers
type Notifier interface {
	Send(alert *Alert) error
	Name() string
	IsEnabled() bool
}

// Manager fans alerts out to all registered providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new alert manager
func NewManager(enabled bool) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
	}
}

// AddNotifier adds an alert provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers an alert to all enabled providers
func (m *Manager) Send(alert *Alert) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(alert); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignup alerts the team that a new account was created
func (m *Manager) SendSignup(userID, name, tradingID string) error {
	return m.Send(&Alert{
		Type:      AlertSignup,
		Title:     "New Registration",
		Message:   fmt.Sprintf("%s registered with trading ID %s", name, tradingID),
		UserID:    userID,
		TradingID: tradingID,
		Timestamp: time.Now(),
	})
}

// SendWithdrawalRequest alerts the team that a withdrawal needs review
func (m *Manager) SendWithdrawalRequest(userID, tradingID string, amount float64) error {
	return m.Send(&Alert{
		Type:      AlertWithdrawal,
		Title:     "Withdrawal Requested",
		Message:   fmt.Sprintf("%s requested a withdrawal of $%.2f", tradingID, amount),
		UserID:    userID,
		TradingID: tradingID,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}

// SendResolution alerts the team that a withdrawal was resolved
func (m *Manager) SendResolution(userID, tradingID, status string, amount float64) error {
	return m.Send(&Alert{
		Type:      AlertResolution,
		Title:     "Withdrawal Resolved",
		Message:   fmt.Sprintf("Withdrawal of $%.2f for %s marked %s", amount, tradingID, status),
		UserID:    userID,
		TradingID: tradingID,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}

// SendError sends an error alert
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Alert{
		Type:      AlertError,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends alerts via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(alert *Alert) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	if alert.Type == AlertError {
		color = 0xFF0000 // Red
	} else if alert.Type == AlertWithdrawal {
		color = 0xFFA500 // Orange, needs review
	}

	embed := map[string]interface{}{
		"title":       alert.Title,
		"description": alert.Message,
		"color":       color,
		"timestamp":   alert.Timestamp.Format(time.RFC3339),
	}

	if alert.TradingID != "" {
		fields := []map[string]interface{}{
			{"name": "Trading ID", "value": alert.TradingID, "inline": true},
		}
		if alert.Amount > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Amount", "value": fmt.Sprintf("$%.2f", alert.Amount), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
