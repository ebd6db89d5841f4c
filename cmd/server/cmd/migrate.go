package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runwaylens/runwaylens-backend/internal/adapter/repository/postgres"
	"github.com/runwaylens/runwaylens-backend/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE:  runMigrateStatus,
}

var migrateDownSteps int

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return postgres.RunMigrations(cfg.Database.ConnString())
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return postgres.RollbackMigrations(cfg.Database.ConnString(), migrateDownSteps)
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	version, dirty, applied, err := postgres.MigrationStatus(cfg.Database.ConnString())
	if err != nil {
		return err
	}
	if !applied {
		fmt.Println("No migrations applied yet")
		return nil
	}

	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	return nil
}
