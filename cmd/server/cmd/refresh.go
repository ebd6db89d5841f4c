package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/runwaylens/runwaylens-backend/internal/adapter/repository/postgres"
	"github.com/runwaylens/runwaylens-backend/internal/config"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Consolidate one company month from the configured feeds",
	Long: `Refresh pulls every configured feed for a single company month, merges
the readings under provenance precedence, recomputes the derived metrics
and persists the snapshot. Useful for backfilling months without going
through the API.

Example:
  runwaylens refresh --company 6ba7b810-9dad-11d1-80b4-00c04fd430c8 --period 2026-03`,
	RunE: runRefresh,
}

var (
	refreshCompany string
	refreshPeriod  string
)

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().StringVar(&refreshCompany, "company", "", "company UUID (required)")
	refreshCmd.Flags().StringVar(&refreshPeriod, "period", "", "period in YYYY-MM form (required)")
	refreshCmd.MarkFlagRequired("company")
	refreshCmd.MarkFlagRequired("period")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	companyID, err := uuid.Parse(refreshCompany)
	if err != nil {
		return fmt.Errorf("invalid company id: %w", err)
	}
	period, err := domain.ParseMonth(refreshPeriod)
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(cfg.Database.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	snapshotRepo := postgres.NewSnapshotRepository(db)
	refreshService := refresh.NewRefreshService(snapshotRepo, configuredFeeds(cfg))

	snapshot, err := refreshService.Refresh(context.Background(), companyID, period)
	if err != nil {
		return err
	}

	fmt.Printf("Refreshed %s for company %s\n", snapshot.Period.Key(), snapshot.CompanyID)
	for _, def := range domain.MetricCatalog() {
		metric := snapshot.Metric(def.Key)
		if metric.Value == nil {
			fmt.Printf("  %-20s —\n", def.Key)
			continue
		}
		fmt.Printf("  %-20s %s (%s)\n", def.Key, metric.Value.String(), metric.Source)
	}
	return nil
}
