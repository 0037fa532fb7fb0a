package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trading-support-app/internal/database"
)

// AdminBcryptCost is the bcrypt cost for the admin password
const AdminBcryptCost = 12

// SeedAdminUser ensures the support identity exists with real
// credentials. The email and password come from configuration; there is
// no built-in passphrase. It creates the admin row if missing and
// repairs the password when it no longer verifies.
func SeedAdminUser(ctx context.Context, repo *database.Repository, email, password, tradingIDPrefix string) error {
	admin, err := repo.GetAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	if admin == nil {
		if email == "" || password == "" {
			return fmt.Errorf("no admin user exists and no admin credentials configured")
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), AdminBcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}

		log.Printf("Admin user not found. Creating admin user: %s", email)

		admin = &database.User{
			ID:                   uuid.New().String(),
			Name:                 "Support",
			Email:                email,
			PasswordHash:         string(hashedPassword),
			TradingID:            GenerateTradingID(tradingIDPrefix),
			IsAdmin:              true,
			NotificationsEnabled: true,
		}

		if err := repo.CreateUser(ctx, admin); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Printf("Admin user created successfully with ID: %s", admin.ID)
		return nil
	}

	// Admin exists. Repair the password when configured credentials no
	// longer verify against the stored hash.
	if password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
			log.Printf("Admin user exists but password needs updating: %s", admin.Email)

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), AdminBcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash admin password: %w", err)
			}
			if err := repo.UpdateUserPassword(ctx, admin.ID, string(hashedPassword)); err != nil {
				return fmt.Errorf("failed to update admin password: %w", err)
			}

			log.Printf("Admin password updated successfully")
		}
	}

	return nil
}
