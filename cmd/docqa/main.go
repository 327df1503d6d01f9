// Docqa indexes PDF, Word and Excel documents and answers questions about them.
//
// Usage:
//
//	# Upload and wait for indexing
//	docqa ingest handbook.pdf budget.xlsx
//
//	# Ask a question
//	docqa ask "What is the refund window?"
//
//	# Run the HTTP API
//	docqa serve
package main

import "github.com/custodia-labs/docqa/internal/adapters/driving/cli"

// version is set via ldflags during build.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
