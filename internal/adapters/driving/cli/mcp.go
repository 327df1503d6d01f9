package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/mcp"
	"github.com/custodia-labs/docqa/internal/logger"
)

var (
	mcpHost string
	mcpPort int
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose docqa to AI assistants over the Model Context Protocol",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run an MCP server offering the ask, ingest_document, document_status,
list_documents, delete_document and health tools.

Without --port the server speaks JSON-RPC on stdin/stdout, which is what
desktop assistants expect when they launch docqa themselves:

  {"mcpServers": {"docqa": {"command": "docqa", "args": ["mcp", "serve"]}}}

With --port it serves streamable HTTP instead, e.g. for MCP Inspector:

  docqa mcp serve --port 8090`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "127.0.0.1", "HTTP bind address")
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port, 0 for stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Documents: documentService,
		Query:     queryService,
		Health:    healthService,
	})
	if err != nil {
		return err
	}
	server.WithLogger(logger.L())

	ctx := cmd.Context()
	preflight(ctx)
	if err := startWorkers(ctx); err != nil {
		return err
	}

	if mcpPort == 0 {
		// stdout belongs to the JSON-RPC stream from here on.
		return server.Run(ctx)
	}

	addr := net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort))
	fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", addr)
	return server.RunHTTP(ctx, addr)
}
