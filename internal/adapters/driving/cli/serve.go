package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/custodia-labs/docqa/internal/adapters/driving/http"
	"github.com/custodia-labs/docqa/internal/logger"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal.
const shutdownTimeout = 10 * time.Second

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the REST API and the background ingest workers.

Endpoints:
  POST   /api/v1/documents             upload (multipart field "file")
  GET    /api/v1/documents             list
  GET    /api/v1/documents/:id         info
  GET    /api/v1/documents/:id/status  processing status
  DELETE /api/v1/documents/:id         delete
  POST   /api/v1/query                 ask a question
  GET    /health                       dependency health
  GET    /metrics                      Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if documentService == nil || queryService == nil {
		return errors.New("services not configured")
	}

	serverCfg := &httpserver.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		MaxUploadBytes: cfg.Ingest.MaxFileSizeBytes(),
	}
	if serveHost != "" {
		serverCfg.Host = serveHost
	}
	if servePort > 0 {
		serverCfg.Port = servePort
	}

	server, err := httpserver.NewServer(httpserver.Ports{
		Documents: documentService,
		Query:     queryService,
		Health:    healthService,
	}, logger.L(), serverCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	preflight(ctx)
	if err := startWorkers(ctx); err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	cmd.Printf("Listening on http://%s:%d\n", serverCfg.Host, serverCfg.Port)

	for running := true; running; {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-hup:
			if application != nil {
				application.ReloadPrompts()
				logger.Info("prompt templates reloaded")
			}
		case <-ctx.Done():
			running = false
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
