// Package cli implements the docqa command line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/app"
	"github.com/custodia-labs/docqa/internal/config"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// annotationStandalone marks commands that run without configuration or services.
const annotationStandalone = "standalone"

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// Services used by the commands. They are built from configuration before a
// command runs unless already set, which lets tests inject mocks.
var (
	cfg             *config.Config
	documentService driving.DocumentService
	queryService    driving.QueryService
	healthService   driving.HealthService
	orchestrator    driving.IngestOrchestrator

	// application is non-nil only when the services above were built here.
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa indexes PDF, Word and Excel documents and answers questions
about them with a local or hosted language model, citing the pages and
sheets each answer came from.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.docqa/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = teardown(nil, nil)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func standalone(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationStandalone] == "true" {
			return true
		}
	}
	return false
}

// setup loads configuration, configures logging and builds the services.
func setup(cmd *cobra.Command, _ []string) error {
	if standalone(cmd) {
		return nil
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logger.Configure(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return err
	}
	if verbose {
		logger.SetVerbose(true)
	}

	if documentService != nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}

	application = a
	documentService = a.Documents
	queryService = a.Query
	healthService = a.Health
	orchestrator = a.Orchestrator
	return nil
}

// teardown releases services built by setup.
func teardown(_ *cobra.Command, _ []string) error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	documentService = nil
	queryService = nil
	healthService = nil
	orchestrator = nil
	return err
}

// preflight warns when the model services are unreachable. Uploads are still
// accepted and fail at the embedding stage until the services come back.
func preflight(ctx context.Context) {
	if application == nil {
		return
	}
	if err := application.Validate(ctx); err != nil {
		logger.Warn("%v", err)
	}
}

// startWorkers runs the ingest workers and re-queues pending documents.
func startWorkers(ctx context.Context) error {
	if orchestrator == nil {
		return fmt.Errorf("ingest orchestrator not configured")
	}
	orchestrator.Start(ctx)
	queued, err := orchestrator.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resuming pending documents: %w", err)
	}
	if queued > 0 {
		logger.Info("resumed %d pending documents", queued)
	}
	return nil
}
