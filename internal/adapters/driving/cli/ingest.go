package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// pollInterval is how often ingest --wait checks document status.
var pollInterval = 500 * time.Millisecond

var (
	ingestFormat  string
	ingestWait    bool
	ingestTimeout time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]...",
	Short: "Upload documents for indexing",
	Long: `Uploads PDF, DOCX or XLSX files and indexes them in the background.

By default the command waits until every document is ready or failed.
With --wait=false it returns once the files are queued; documents that
have not started yet are picked up by the next 'docqa serve' or ingest run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFormat, "format", "f", "", "format tag (pdf, docx, xlsx); derived from the extension when empty")
	ingestCmd.Flags().BoolVarP(&ingestWait, "wait", "w", true, "wait for processing to finish")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "maximum time to wait for processing")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := startWorkers(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(args))
	for _, path := range args {
		doc, err := ingestFile(ctx, path, domain.Format(ingestFormat))
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		cmd.Printf("Queued %s as %s\n", doc.Filename, doc.ID)
		ids = append(ids, doc.ID)
	}

	if !ingestWait {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()
	failed, err := waitForDocuments(ctx, cmd, ids)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(ids))
	}
	return nil
}

// ingestFile reads path and uploads it.
func ingestFile(ctx context.Context, path string, format domain.Format) (*domain.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return documentService.Ingest(ctx, domain.RawDocument{
		Filename: filepath.Base(path),
		Format:   format,
		Content:  content,
	})
}

// waitForDocuments polls until every document is terminal, printing each
// outcome once. It returns the number of failed documents.
func waitForDocuments(ctx context.Context, cmd *cobra.Command, ids []string) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	remaining := make(map[string]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}

	failed := 0
	for {
		for _, id := range ids {
			if !remaining[id] {
				continue
			}
			report, err := documentService.Status(ctx, id)
			if err != nil {
				return failed, fmt.Errorf("failed to get status of %s: %w", id, err)
			}
			if !report.Status.IsTerminal() {
				continue
			}
			delete(remaining, id)
			if report.Status == domain.StatusFailed {
				failed++
			}
			printReport(cmd, report)
		}

		if len(remaining) == 0 {
			return failed, nil
		}

		select {
		case <-ctx.Done():
			return failed, fmt.Errorf("%d documents still processing: %w", len(remaining), ctx.Err())
		case <-ticker.C:
		}
	}
}
