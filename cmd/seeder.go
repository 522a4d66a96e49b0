package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/user"
)

var (
	clearData    bool
	seedPassword string
)

var seedAccounts = []struct {
	Username string
	Email    string
	FullName string
	Role     rbac.Role
}{
	{"superadmin", "superadmin@example.com", "Super Admin", rbac.RoleSuperAdmin},
	{"admin", "admin@example.com", "Dashboard Admin", rbac.RoleAdmin},
	{"agent", "agent@example.com", "Support Agent", rbac.RoleAgent},
	{"customer", "customer@example.com", "Sample Customer", rbac.RoleCustomer},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample accounts",
	Long:  `Seed one account per role for development and testing. Existing accounts are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		app, err := newApplication(cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer app.Close()

		ctx := context.Background()

		if clearData {
			usernames := make([]string, len(seedAccounts))
			for i, a := range seedAccounts {
				usernames[i] = a.Username
			}
			if err := app.Gorm.WithContext(ctx).
				Exec("DELETE FROM user_sessions WHERE user_id IN (SELECT id FROM users WHERE username IN ?)", usernames).Error; err != nil {
				log.Fatalf("failed to clear sessions: %v", err)
			}
			if err := app.Gorm.WithContext(ctx).
				Exec("DELETE FROM users WHERE username IN ?", usernames).Error; err != nil {
				log.Fatalf("failed to clear users: %v", err)
			}
			fmt.Println("Cleared seeded accounts")
		}

		for _, a := range seedAccounts {
			name := a.FullName
			u, err := app.Accounts.Register(ctx, user.RegisterDTO{
				Username: a.Username,
				Email:    a.Email,
				Password: seedPassword,
				FullName: &name,
				Role:     string(a.Role),
			})
			switch {
			case errors.Is(err, internal.ErrUsernameTaken), errors.Is(err, internal.ErrEmailTaken):
				fmt.Printf("%s already exists; skipping\n", a.Username)
			case err != nil:
				log.Fatalf("failed to seed %s: %v", a.Username, err)
			default:
				fmt.Printf("Seeded %s (%s) as %s\n", u.Username, u.UserID, u.Role)
			}
		}
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Remove the seeded accounts and their sessions before seeding")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "Password for every seeded account")
}
