package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "Apply the users and user_sessions migrations under db/migrations",
	}
	migrateRollback bool
	migrateStatus   bool
	migrateTo       int64
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "roll back the latest applied migration")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print applied and pending migrations")
	migrateCmd.Flags().Int64Var(&migrateTo, "to", 0, "migrate up (or down with --rollback) to this version")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "db/migrations", "sql migrations directory")
}

// migrationCommand maps the flags onto a goose command and its arguments.
func migrationCommand() (string, []string) {
	switch {
	case migrateStatus:
		return "status", nil
	case migrateRollback && migrateTo > 0:
		return "down-to", []string{strconv.FormatInt(migrateTo, 10)}
	case migrateRollback:
		return "down", nil
	case migrateTo > 0:
		return "up-to", []string{strconv.FormatInt(migrateTo, 10)}
	default:
		return "up", nil
	}
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer db.Close()
	goose.SetTableName("schema_migrations")

	command, args := migrationCommand()
	if err := goose.RunContext(ctx, command, db, migrateDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
