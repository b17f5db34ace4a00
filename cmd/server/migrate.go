package main

import (
	"ctchen222/item-registry/internal/config"
	"ctchen222/item-registry/internal/db"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Long:  `Create the users, items and session tables in the SQLite database if they do not exist yet.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	cmd.Printf("Migrating %s...\n", cfg.DatabasePath)
	pool, err := db.OpenAndMigrate(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("database_path", cfg.DatabasePath).Wrap(err)
	}
	defer pool.Close()

	cmd.Println("Migrations completed successfully")
	return nil
}
