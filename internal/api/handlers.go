package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-support-app/internal/chat"
	"trading-support-app/internal/wallet"
)

// ============================================================================
// CHAT HANDLERS
// ============================================================================

// handleGetConversation returns the caller's thread with support,
// seeding the welcome message on first open.
func (s *Server) handleGetConversation(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	msgs, err := s.chatService.Conversation(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	successResponse(c, msgs)
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleSendMessage delivers a message from the caller to support
func (s *Server) handleSendMessage(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Message text is required")
		return
	}

	adminID, err := s.chatService.AdminID(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, "Support is not available")
		return
	}

	msg, err := s.chatService.Send(c.Request.Context(), userID, adminID, req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	successResponse(c, msg)
}

// handleSetTyping marks the caller as typing to support
func (s *Server) handleSetTyping(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	adminID, err := s.chatService.AdminID(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, "Support is not available")
		return
	}

	s.chatService.SetTyping(userID, adminID)
	successResponse(c, gin.H{"typing": true})
}

// handleGetTyping reports whether support is typing to the caller
func (s *Server) handleGetTyping(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	adminID, err := s.chatService.AdminID(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, "Support is not available")
		return
	}

	successResponse(c, gin.H{"typing": s.chatService.IsTyping(adminID, userID)})
}

// ============================================================================
// WALLET HANDLERS
// ============================================================================

// handleGetTransactions returns the caller's transactions, newest first
func (s *Server) handleGetTransactions(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	successResponse(c, s.store.UserTransactions(userID))
}

type withdrawalRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// handleRequestWithdrawal opens a pending withdrawal and debits the
// caller's balance.
func (s *Server) handleRequestWithdrawal(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Amount is required")
		return
	}

	withdrawal, err := s.walletService.RequestWithdrawal(c.Request.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, wallet.ErrInsufficientBalance):
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		default:
			errorResponse(c, http.StatusInternalServerError, "Failed to request withdrawal")
		}
		return
	}

	if user := s.store.UserByID(userID); user != nil {
		go s.alerts.SendWithdrawalRequest(userID, user.TradingID, req.Amount)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    withdrawal,
	})
}

// ============================================================================
// NOTIFICATION HANDLERS
// ============================================================================

// handleGetNotifications returns the caller's notifications, newest first
func (s *Server) handleGetNotifications(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	successResponse(c, gin.H{
		"notifications": s.store.UserNotifications(userID),
		"unread":        s.store.UnreadCount(userID),
	})
}

// handleMarkNotificationRead marks one notification as read
func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	id := c.Param("id")
	owned := false
	for _, n := range s.store.UserNotifications(userID) {
		if n.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		errorResponse(c, http.StatusNotFound, "Notification not found")
		return
	}

	if err := s.store.MarkNotificationRead(c.Request.Context(), id); err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to mark notification read")
		return
	}

	successResponse(c, gin.H{"id": id, "read": true})
}

// handleMarkAllNotificationsRead marks every notification of the caller
// as read.
func (s *Server) handleMarkAllNotificationsRead(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	if err := s.store.MarkAllNotificationsRead(c.Request.Context(), userID); err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	successResponse(c, gin.H{"read": true})
}

// ============================================================================
// PROFILE & SESSION HANDLERS
// ============================================================================

type updateProfileRequest struct {
	Name                 *string `json:"name"`
	AvatarURL            *string `json:"avatar_url"`
	PayoutAccount        *string `json:"payout_account"`
	DarkMode             *bool   `json:"dark_mode"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

// handleUpdateProfile updates the caller's editable profile fields
func (s *Server) handleUpdateProfile(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid profile payload")
		return
	}

	user := s.store.UserByID(userID)
	if user == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	updated := *user
	if req.Name != nil && *req.Name != "" {
		updated.Name = *req.Name
	}
	if req.AvatarURL != nil {
		updated.AvatarURL = *req.AvatarURL
	}
	if req.PayoutAccount != nil {
		updated.PayoutAccount = *req.PayoutAccount
	}
	if req.DarkMode != nil {
		updated.DarkMode = *req.DarkMode
	}
	if req.NotificationsEnabled != nil {
		updated.NotificationsEnabled = *req.NotificationsEnabled
	}

	if err := s.store.UpdateUserProfile(c.Request.Context(), &updated); err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	successResponse(c, &updated)
}

// handleGetSnapshot returns the caller's session snapshot for fast
// client rehydration.
func (s *Server) handleGetSnapshot(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	snap, err := s.sessionManager.Load(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	if snap == nil {
		// No cached snapshot yet; build one from the live mirror.
		if user := s.store.UserByID(userID); user != nil {
			snap = s.sessionManager.Build(c.Request.Context(), user)
		}
	}
	if snap == nil {
		errorResponse(c, http.StatusNotFound, "No session snapshot available")
		return
	}

	successResponse(c, snap)
}
