package cli

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/watch"
)

var watchSettle = watch.DefaultSettle

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest documents dropped into a directory",
	Long: `Watches a directory and uploads every PDF, DOCX or XLSX file created or
rewritten in it. Files already present are not uploaded. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a changed file is uploaded")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	w, err := watch.New(dir, domain.Formats, watchSettle)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startWorkers(ctx); err != nil {
		return err
	}

	cmd.Printf("Watching %s\n", dir)
	return w.Run(ctx, func(path string) {
		doc, err := ingestFile(ctx, path, "")
		if err != nil {
			logger.Warn("ingest %s: %v", path, err)
			cmd.Printf("Skipped %s: %v\n", filepath.Base(path), err)
			return
		}
		cmd.Printf("Queued %s as %s\n", doc.Filename, doc.ID)
	})
}
