package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the embedding, generation and storage backends",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if healthService == nil {
		return errors.New("health service not configured")
	}

	report := healthService.Check(context.Background())

	if healthJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Components {
			mark := "ok"
			if !c.Healthy {
				mark = "FAIL"
			}
			cmd.Printf("  %-16s %s", c.Name, mark)
			if c.Detail != "" {
				cmd.Printf("  (%s)", c.Detail)
			}
			cmd.Println()
		}
	}

	if !report.Healthy() {
		return errors.New("one or more components are unhealthy")
	}
	return nil
}
