package auth

import (
	"context"
	"fmt"
	"log"
	mathrand "math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"trading-support-app/internal/cache"
	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
)

// Service handles authentication operations
type Service struct {
	repo            *database.Repository
	bus             *events.EventBus
	cache           *cache.CacheService
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	config          Config
}

// NewService creates a new authentication service. cacheService may be
// nil; revocation then falls back to the database alone.
func NewService(repo *database.Repository, bus *events.EventBus, cacheService *cache.CacheService, config Config) *Service {
	if config.JWTSecret == "" {
		log.Fatal("JWT secret is required")
	}

	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = 15 * time.Minute
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if config.TradingIDPrefix == "" {
		config.TradingIDPrefix = "#TRD-"
	}

	return &Service{
		repo:            repo,
		bus:             bus,
		cache:           cacheService,
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration),
		passwordManager: NewPasswordManager(DefaultBcryptCost, config.MinPasswordLength),
		config:          config,
	}
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// GetPasswordManager returns the password manager
func (s *Service) GetPasswordManager() *PasswordManager {
	return s.passwordManager
}

// GenerateTradingID builds a trading ID from the configured prefix and
// six random digits.
func GenerateTradingID(prefix string) string {
	return fmt.Sprintf("%s%06d", prefix, 100000+mathrand.Intn(900000))
}

// Register creates a new user account with a fresh trading ID and a
// zero starting balance.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	if err := s.passwordManager.ValidatePasswordStrength(req.Password); err != nil {
		return nil, AuthError{Code: ErrWeakPassword.Code, Message: err.Error()}
	}

	passwordHash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Email:                req.Email,
		PasswordHash:         passwordHash,
		TradingID:            GenerateTradingID(s.config.TradingIDPrefix),
		Balance:              0,
		NotificationsEnabled: true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		// The six-digit space can collide; retry once with a fresh ID.
		if strings.Contains(err.Error(), "trading_id") {
			user.TradingID = GenerateTradingID(s.config.TradingIDPrefix)
			err = s.repo.CreateUser(ctx, user)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	welcome := &database.Notification{
		ID:      uuid.New().String(),
		UserID:  user.ID,
		Type:    database.NotifyLogin,
		Title:   "Welcome",
		Message: fmt.Sprintf("Your account has been created. Your trading ID is %s.", user.TradingID),
	}
	if err := s.repo.CreateNotification(ctx, welcome); err != nil {
		log.Printf("Warning: failed to create welcome notification for user %s: %v", user.ID, err)
	}

	s.bus.PublishCollectionChanged("users", "")
	s.bus.PublishCollectionChanged("notifications", user.ID)

	return user, nil
}

// Login authenticates a user by email or trading ID and returns tokens
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetUserByLogin(ctx, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

// AdminLogin authenticates the admin account. The credential check is
// identical to a user login plus the admin flag.
func (s *Service) AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetUserByLogin(ctx, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsAdmin {
		return nil, ErrInvalidCredentials
	}

	if !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user *database.User) (*LoginResponse, error) {
	claims := UserClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TradingID: user.TradingID,
		IsAdmin:   user.IsAdmin,
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	refreshToken := &database.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: HashRefreshToken(tokenPair.RefreshToken),
		ExpiresAt: time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}
	if err := s.repo.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	// Admin sign-ins do not generate inbox noise.
	if !user.IsAdmin {
		alert := &database.Notification{
			ID:     uuid.New().String(),
			UserID: user.ID,
			Type:   database.NotifyLogin,
			Title:  "Login Alert",
			Message: fmt.Sprintf("New login detected at %s",
				time.Now().Format("Jan 2, 2006 3:04 PM")),
		}
		if err := s.repo.CreateNotification(ctx, alert); err != nil {
			log.Printf("Warning: failed to create login notification for user %s: %v", user.ID, err)
		}
		s.bus.PublishCollectionChanged("notifications", user.ID)
	}

	s.bus.PublishUserLogin(user.ID, user.IsAdmin)

	return &LoginResponse{
		User:         NewUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// RefreshTokens rotates the refresh token and issues a new access token
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	tokenHash := HashRefreshToken(refreshToken)

	if s.isTokenRevoked(ctx, tokenHash) {
		return nil, ErrTokenRevoked
	}

	stored, err := s.repo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if stored == nil {
		return nil, ErrInvalidToken
	}
	if stored.Revoked {
		return nil, ErrTokenRevoked
	}
	if stored.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	user, err := s.repo.GetUserByID(ctx, stored.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	claims := UserClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TradingID: user.TradingID,
		IsAdmin:   user.IsAdmin,
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.repo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		log.Printf("Warning: failed to revoke rotated refresh token: %v", err)
	}
	s.markTokenRevoked(ctx, tokenHash)

	newToken := &database.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: HashRefreshToken(tokenPair.RefreshToken),
		ExpiresAt: time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}
	if err := s.repo.CreateRefreshToken(ctx, newToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &RefreshResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// Logout revokes the presented refresh token
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken != "" {
		tokenHash := HashRefreshToken(refreshToken)
		if err := s.repo.RevokeRefreshToken(ctx, tokenHash); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		s.markTokenRevoked(ctx, tokenHash)
	}
	s.bus.PublishUserLogout(userID)
	return nil
}

// markTokenRevoked records a revoked token hash in redis so the next
// refresh attempt is rejected without a database round trip. Redis is a
// fast path over the refresh_tokens table; failures are not fatal.
func (s *Service) markTokenRevoked(ctx context.Context, tokenHash string) {
	if s.cache == nil {
		return
	}
	ttl := s.jwtManager.GetRefreshTokenDuration()
	if err := s.cache.Set(ctx, cache.RevokedTokenKey(tokenHash), "1", ttl); err != nil {
		log.Printf("Warning: failed to cache token revocation: %v", err)
	}
}

// isTokenRevoked checks the redis revocation marker for a token hash
func (s *Service) isTokenRevoked(ctx context.Context, tokenHash string) bool {
	if s.cache == nil {
		return false
	}
	_, err := s.cache.Get(ctx, cache.RevokedTokenKey(tokenHash))
	return err == nil
}

// LogoutAll revokes every live refresh token of a user
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		return err
	}
	s.bus.PublishUserLogout(userID)
	return nil
}

// ChangePassword changes a user's password and revokes their sessions
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if !s.passwordManager.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := s.passwordManager.ValidatePasswordStrength(req.NewPassword); err != nil {
		return AuthError{Code: ErrWeakPassword.Code, Message: err.Error()}
	}

	newHash, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		log.Printf("Warning: failed to revoke sessions after password change: %v", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (s *Service) GetUserByID(ctx context.Context, userID string) (*database.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// CleanupExpiredTokens removes refresh tokens past their expiry
func (s *Service) CleanupExpiredTokens(ctx context.Context) error {
	return s.repo.DeleteExpiredRefreshTokens(ctx)
}
