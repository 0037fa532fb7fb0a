package auth

import (
	"time"

	"trading-support-app/internal/database"
)

// UserClaims represents the JWT claims for a user
type UserClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TradingID string `json:"trading_id"`
	IsAdmin   bool   `json:"is_admin"`
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // Access token expiry in seconds
	TokenType    string `json:"token_type"` // Always "Bearer"
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login request. Identifier accepts the
// account email or the trading ID.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// UserResponse represents user data returned to the client
type UserResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	TradingID            string    `json:"trading_id"`
	Balance              float64   `json:"balance"`
	IsAdmin              bool      `json:"is_admin"`
	AvatarURL            string    `json:"avatar_url,omitempty"`
	PayoutAccount        string    `json:"payout_account,omitempty"`
	DarkMode             bool      `json:"dark_mode"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	JoinedAt             time.Time `json:"joined_at"`
}

// NewUserResponse maps a user row to its client representation
func NewUserResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:                   user.ID,
		Name:                 user.Name,
		Email:                user.Email,
		TradingID:            user.TradingID,
		Balance:              user.Balance,
		IsAdmin:              user.IsAdmin,
		AvatarURL:            user.AvatarURL,
		PayoutAccount:        user.PayoutAccount,
		DarkMode:             user.DarkMode,
		NotificationsEnabled: user.NotificationsEnabled,
		JoinedAt:             user.JoinedAt,
	}
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// Config holds authentication configuration
type Config struct {
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	MinPasswordLength    int           `json:"min_password_length"`
	TradingIDPrefix      string        `json:"trading_id_prefix"`
}

// DefaultConfig returns default authentication configuration
func DefaultConfig() Config {
	return Config{
		JWTSecret:            "", // Must be set
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		MinPasswordLength:    8,
		TradingIDPrefix:      "#TRD-",
	}
}

// AuthError is a typed authentication error mapped to HTTP responses
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid credentials"}
	ErrUserNotFound       = AuthError{Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrEmailExists        = AuthError{Code: "EMAIL_EXISTS", Message: "email already registered"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrTokenRevoked       = AuthError{Code: "TOKEN_REVOKED", Message: "token has been revoked"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrWeakPassword       = AuthError{Code: "WEAK_PASSWORD", Message: "password does not meet requirements"}
)
