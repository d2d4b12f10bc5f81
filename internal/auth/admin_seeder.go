package auth

import (
	"context"
	"fmt"
	"log"

	"emailbot-backend/internal/database"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdminUser ensures the bootstrap admin exists. Credentials come from
// configuration; an empty password skips seeding so production deployments
// can manage admins themselves.
func SeedAdminUser(ctx context.Context, repo *database.Repository, email, password string) error {
	if email == "" || password == "" {
		log.Printf("Admin seeding skipped: no bootstrap credentials configured")
		return nil
	}

	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if user == nil {
		log.Printf("Admin user not found. Creating admin user: %s", email)

		adminUser := &database.User{
			Email:        email,
			PasswordHash: string(hashedPassword),
			Role:         database.RoleAdmin,
			IsActive:     true,
		}

		if err := repo.CreateUser(ctx, adminUser); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Printf("Admin user created successfully with ID: %s", adminUser.ID)
		return nil
	}

	// User exists. Re-sync the password if the configured one no longer
	// matches, and make sure the account is an active admin.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Printf("Admin password out of sync. Updating password for: %s", email)

		hash := string(hashedPassword)
		if err := repo.UpdateUser(ctx, user.ID, database.UpdateUserInput{PasswordHash: &hash}); err != nil {
			return fmt.Errorf("failed to update admin password: %w", err)
		}
	}

	if user.Role != database.RoleAdmin || !user.IsActive {
		log.Printf("Updating admin user flags for: %s", email)

		role := database.RoleAdmin
		active := true
		if err := repo.UpdateUser(ctx, user.ID, database.UpdateUserInput{Role: &role, IsActive: &active}); err != nil {
			return fmt.Errorf("failed to update admin user flags: %w", err)
		}
	}

	return nil
}
