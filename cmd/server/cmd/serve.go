package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runwaylens/runwaylens-backend/internal/adapter/feeds"
	httpadapter "github.com/runwaylens/runwaylens-backend/internal/adapter/http"
	"github.com/runwaylens/runwaylens-backend/internal/adapter/repository/postgres"
	"github.com/runwaylens/runwaylens-backend/internal/config"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/display"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/refresh"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the RunwayLens API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	// 1. Setup database
	// Short delay so a containerized Postgres has time to come up
	time.Sleep(2 * time.Second)

	connStr := cfg.Database.ConnString()
	if err := postgres.RunMigrations(connStr); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := postgres.NewDB(connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 2. Initialize repository and feed clients
	snapshotRepo := postgres.NewSnapshotRepository(db)
	feedSources := configuredFeeds(cfg)
	log.Infof("Configured %d feed source(s)", len(feedSources))

	// 3. Initialize services
	refreshService := refresh.NewRefreshService(snapshotRepo, feedSources)
	normalizer := display.NewNormalizer(display.NewFormatter())

	// 4. Start HTTP server
	server := httpadapter.NewServer(refreshService, snapshotRepo, normalizer, cfg.Forecast.Options())
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(cfg.APIToken),
	}

	// Start server in a goroutine
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(httpServer)
	return nil
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(httpServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Infof("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("Failed to shut down cleanly: %v", err)
	}
	log.Info("HTTP server stopped")
}

// configuredFeeds builds the enabled feed clients in merge order: payments
// first, spreadsheet second
func configuredFeeds(cfg *config.Config) []domain.FeedSource {
	var sources []domain.FeedSource
	if cfg.Feeds.Payments.Enabled {
		sources = append(sources, feeds.NewPaymentsClient(cfg.Feeds.Payments.BaseURL, cfg.Feeds.Payments.APIKey))
	}
	if cfg.Feeds.Spreadsheet.Enabled {
		sources = append(sources, feeds.NewSpreadsheetClient(cfg.Feeds.Spreadsheet.BaseURL, cfg.Feeds.Spreadsheet.APIKey))
	}
	return sources
}

// applyLogLevel sets the global log level, falling back to info on an
// unrecognized name
func applyLogLevel(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}
