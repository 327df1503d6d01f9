package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	askDocuments []string
	askTopK      int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the uploaded documents",
	Long: `Retrieves the passages closest to the question from ready documents and
asks the language model to answer from them. Sources are listed below the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVarP(&askDocuments, "doc", "d", nil, "restrict to these document IDs")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	answer, err := queryService.Answer(context.Background(), domain.QueryRequest{
		Question:    strings.Join(args, " "),
		DocumentIDs: askDocuments,
		TopK:        askTopK,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askJSON {
		return printJSON(cmd, answer)
	}

	return outputAnswer(cmd, answer)
}

func outputAnswer(cmd *cobra.Command, answer *domain.Answer) error {
	cmd.Println(answer.Text)

	if len(answer.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range answer.Sources {
		// Format: [N] name, Page p (score)
		cmd.Printf("  [%d] %s%s (%.2f)\n", i+1, src.DocumentName, location(src.Position), src.Score)
		cmd.Printf("      %s\n", strings.ReplaceAll(src.Preview(), "\n", " "))
	}
	return nil
}

func location(pos domain.Position) string {
	switch {
	case pos.Page > 0:
		return fmt.Sprintf(", page %d", pos.Page)
	case pos.Sheet != "":
		return ", sheet " + pos.Sheet
	default:
		return ""
	}
}
