package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage uploaded documents",
	Long:    `List, inspect, poll, or delete uploaded documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentStatusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show processing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStatus,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.PersistentFlags().BoolVar(&documentJSON, "json", false, "output as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentStatusCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentJSON {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents uploaded.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %-10s  %s\n", docs[i].ID, docs[i].Status, docs[i].Filename)
		if docs[i].Status == domain.StatusFailed && docs[i].Error != "" {
			cmd.Printf("      Error: %s\n", docs[i].Error)
		}
	}

	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentJSON {
		return printJSON(cmd, doc)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Format:   %s\n", doc.Format)
	cmd.Printf("  Size:     %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Status:   %s\n", doc.Status)
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Uploaded: %s\n", doc.UploadedAt.Format("2006-01-02 15:04:05"))
	if doc.ProcessedAt != nil {
		cmd.Printf("  Finished: %s\n", doc.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.Error != "" {
		cmd.Printf("  Error:    %s\n", doc.Error)
	}

	return nil
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	report, err := documentService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if documentJSON {
		return printJSON(cmd, report)
	}

	printReport(cmd, report)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	if err := documentService.Delete(context.Background(), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", docID)
	return nil
}

// printReport prints a one-line status summary.
func printReport(cmd *cobra.Command, report *domain.StatusReport) {
	switch report.Status {
	case domain.StatusReady:
		cmd.Printf("%s: ready (%d chunks)\n", report.ID, report.ChunkCount)
	case domain.StatusFailed:
		cmd.Printf("%s: failed: %s\n", report.ID, report.Error)
	default:
		cmd.Printf("%s: %s\n", report.ID, report.Status)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
