package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trading-support-app/internal/chat"
	"trading-support-app/internal/database"
	"trading-support-app/internal/wallet"
)

// ============================================================================
// ADMIN USER HANDLERS
// ============================================================================

// handleAdminListUsers returns every registered user, newest first
func (s *Server) handleAdminListUsers(c *gin.Context) {
	users := s.store.Users()
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		if u.IsAdmin {
			continue
		}
		out = append(out, gin.H{
			"id":         u.ID,
			"name":       u.Name,
			"email":      u.Email,
			"trading_id": u.TradingID,
			"balance":    u.Balance,
			"joined_at":  u.JoinedAt,
			"unread":     s.store.UnreadCount(u.ID),
		})
	}
	successResponse(c, out)
}

// handleAdminGetUser returns one user with their transactions
func (s *Server) handleAdminGetUser(c *gin.Context) {
	user := s.store.UserByID(c.Param("id"))
	if user == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	successResponse(c, gin.H{
		"user":         user,
		"transactions": s.store.UserTransactions(user.ID),
	})
}

// handleAdminDeleteUser removes a user account and everything it owns.
// The admin identity itself cannot be deleted.
func (s *Server) handleAdminDeleteUser(c *gin.Context) {
	userID := c.Param("id")
	user := s.store.UserByID(userID)
	if user == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}
	if user.IsAdmin {
		errorResponse(c, http.StatusUnprocessableEntity, "Admin accounts cannot be deleted")
		return
	}

	if err := s.store.DeleteUser(c.Request.Context(), userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("user delete failed")
		errorResponse(c, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	s.eventBus.PublishUserLogout(userID)

	successResponse(c, gin.H{"deleted": userID})
}

// handleAdminGetConversation returns the support thread with one user
func (s *Server) handleAdminGetConversation(c *gin.Context) {
	userID := c.Param("id")
	if s.store.UserByID(userID) == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	msgs, err := s.chatService.Conversation(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	successResponse(c, msgs)
}

type adminMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleAdminSendMessage sends a support reply to a user
func (s *Server) handleAdminSendMessage(c *gin.Context) {
	adminID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	userID := c.Param("id")
	if s.store.UserByID(userID) == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	var req adminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Message text is required")
		return
	}

	msg, err := s.chatService.Send(c.Request.Context(), adminID, userID, req.Text)
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

// handleAdminGetTyping reports whether a user is typing to support
func (s *Server) handleAdminGetTyping(c *gin.Context) {
	adminID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	userID := c.Param("id")
	successResponse(c, gin.H{"typing": s.chatService.IsTyping(userID, adminID)})
}

// ============================================================================
// ADMIN WALLET HANDLERS
// ============================================================================

type adjustBalanceRequest struct {
	Kind   string  `json:"kind" binding:"required"` // credit or debit
	Amount float64 `json:"amount" binding:"required"`
}

// handleAdminAdjustBalance credits or debits a user's balance. Debits
// floor at zero.
func (s *Server) handleAdminAdjustBalance(c *gin.Context) {
	userID := c.Param("id")
	if s.store.UserByID(userID) == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Kind and amount are required")
		return
	}

	var kind database.TransactionType
	switch req.Kind {
	case "credit":
		kind = database.TransactionCredit
	case "debit":
		kind = database.TransactionDebit
	default:
		errorResponse(c, http.StatusBadRequest, "Kind must be credit or debit")
		return
	}

	user, record, err := s.walletService.AdjustBalance(c.Request.Context(), userID, kind, req.Amount)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidAmount) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, wallet.ErrUserNotFound) {
			errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to adjust balance")
		return
	}

	successResponse(c, gin.H{
		"user":        user,
		"transaction": record,
	})
}

type depositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// handleAdminRecordDeposit credits a confirmed deposit to a user
func (s *Server) handleAdminRecordDeposit(c *gin.Context) {
	userID := c.Param("id")
	if s.store.UserByID(userID) == nil {
		errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Amount is required")
		return
	}

	deposit, err := s.walletService.RecordDeposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidAmount) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, wallet.ErrUserNotFound) {
			errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to record deposit")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    deposit,
	})
}

// handleAdminListTransactions returns every transaction, newest first.
// An optional status filter narrows the list for the review queue.
func (s *Server) handleAdminListTransactions(c *gin.Context) {
	status := c.Query("status")
	txs := s.store.Transactions()
	if status == "" {
		successResponse(c, txs)
		return
	}

	filtered := make([]*database.Transaction, 0, len(txs))
	for _, t := range txs {
		if string(t.Status) == status {
			filtered = append(filtered, t)
		}
	}
	successResponse(c, filtered)
}

type resolveWithdrawalRequest struct {
	Status         string `json:"status" binding:"required"`
	CompanyMessage string `json:"company_message"`
}

// handleAdminResolveWithdrawal moves a withdrawal to a new status with
// an optional company message.
func (s *Server) handleAdminResolveWithdrawal(c *gin.Context) {
	var req resolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Status is required")
		return
	}

	resolved, err := s.walletService.ResolveWithdrawal(
		c.Request.Context(), c.Param("id"),
		database.TransactionStatus(req.Status), req.CompanyMessage)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidStatus):
			errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, wallet.ErrTransactionNotFound):
			errorResponse(c, http.StatusNotFound, err.Error())
		case errors.Is(err, wallet.ErrNotWithdrawal):
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		default:
			errorResponse(c, http.StatusInternalServerError, "Failed to resolve withdrawal")
		}
		return
	}

	if user := s.store.UserByID(resolved.UserID); user != nil {
		go s.alerts.SendResolution(user.ID, user.TradingID, string(resolved.Status), resolved.Amount)
	}

	successResponse(c, resolved)
}

// ============================================================================
// ADMIN NOTIFICATION HANDLERS
// ============================================================================

type broadcastRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// handleAdminBroadcastNotification delivers a notification to every
// non-admin user.
func (s *Server) handleAdminBroadcastNotification(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Title and message are required")
		return
	}

	sent := 0
	for _, u := range s.store.Users() {
		if u.IsAdmin {
			continue
		}
		n := &database.Notification{
			ID:      uuid.New().String(),
			UserID:  u.ID,
			Type:    database.NotifyMessage,
			Title:   req.Title,
			Message: req.Message,
		}
		if err := s.store.AddNotification(c.Request.Context(), n); err != nil {
			s.logger.Error().Err(err).Str("user_id", u.ID).Msg("broadcast notification failed")
			continue
		}
		sent++
	}

	successResponse(c, gin.H{"sent": sent})
}
