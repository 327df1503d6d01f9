package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the indexed documents"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these document IDs"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 5, max 50)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Model   string         `json:"model,omitempty"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one citation of an answer.
type SourceOutput struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page,omitempty"`
	Sheet        string  `json:"sheet,omitempty"`
	Score        float64 `json:"score"`
	Text         string  `json:"text"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Path   string `json:"path" jsonschema:"absolute path of a local pdf, docx or xlsx file"`
	Format string `json:"format,omitempty" jsonschema:"format tag, derived from the extension when empty"`
}

// DocumentInput identifies one document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID returned by ingest_document"`
}

// ListInput is the (empty) input schema for the list_documents tool.
type ListInput struct{}

// DocumentOutput describes a document record.
type DocumentOutput struct {
	DocumentID string     `json:"document_id"`
	Filename   string     `json:"filename"`
	Format     string     `json:"format"`
	Status     string     `json:"status"`
	ChunkCount int        `json:"chunk_count"`
	Error      string     `json:"error,omitempty"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Processed  *time.Time `json:"processed_at,omitempty"`
}

// StatusOutput is the polling view of a document.
type StatusOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// HealthOutput is the output schema for the health tool.
type HealthOutput struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentOutput `json:"components"`
}

// ComponentOutput is the probe result of one dependency.
type ComponentOutput struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents, with citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Upload a local pdf, docx or xlsx file for indexing; returns immediately with status pending",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report the processing status of a document (pending, processing, ready or failed)",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all uploaded documents, newest first",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document together with its indexed chunks",
	}, s.handleDelete)

	if s.ports.Health != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "health",
			Description: "Check the embedding service, language model, vector index and metadata store",
		}, s.handleHealth)
	}
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Answer(ctx, domain.QueryRequest{
		Question:    input.Question,
		DocumentIDs: input.DocumentIDs,
		TopK:        input.TopK,
	})
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	output := AskOutput{
		Answer:  answer.Text,
		Model:   answer.Model,
		Sources: make([]SourceOutput, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID:   src.DocumentID,
			DocumentName: src.DocumentName,
			Page:         src.Position.Page,
			Sheet:        src.Position.Sheet,
			Score:        src.Score,
			Text:         src.Preview(),
		}
	}

	return nil, output, nil
}

// handleIngest handles the ingest_document tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	if input.Path == "" {
		return nil, DocumentOutput{}, toolError(domain.NewValidationError("path", "must not be empty"))
	}

	content, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, DocumentOutput{}, fmt.Errorf("reading %s: %w", input.Path, err)
	}

	doc, err := s.ports.Documents.Ingest(ctx, domain.RawDocument{
		Filename: filepath.Base(input.Path),
		Format:   domain.Format(input.Format),
		Content:  content,
	})
	if err != nil {
		return nil, DocumentOutput{}, toolError(err)
	}

	return nil, documentOutput(doc), nil
}

// handleStatus handles the document_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	report, err := s.ports.Documents.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, toolError(err)
	}

	return nil, StatusOutput{
		DocumentID: report.ID,
		Status:     string(report.Status),
		ChunkCount: report.ChunkCount,
		Error:      report.Error,
	}, nil
}

// handleList handles the list_documents tool invocation.
func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.ports.Documents.List(ctx)
	if err != nil {
		return nil, ListOutput{}, toolError(err)
	}

	output := ListOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(&docs[i])
	}

	return nil, output, nil
}

// handleDelete handles the delete_document tool invocation.
func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.ports.Documents.Delete(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}
	return nil, DeleteOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

// handleHealth handles the health tool invocation.
func (s *Server) handleHealth(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, HealthOutput, error) {
	return nil, healthOutput(s.ports.Health.Check(ctx)), nil
}

func healthOutput(report domain.HealthReport) HealthOutput {
	out := HealthOutput{
		Healthy:    report.Healthy(),
		Components: make([]ComponentOutput, len(report.Components)),
	}
	for i, c := range report.Components {
		out.Components[i] = ComponentOutput{Name: c.Name, Healthy: c.Healthy, Detail: c.Detail}
	}
	return out
}

func documentOutput(doc *domain.Document) DocumentOutput {
	return DocumentOutput{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Format:     string(doc.Format),
		Status:     string(doc.Status),
		ChunkCount: doc.ChunkCount,
		Error:      doc.Error,
		UploadedAt: doc.UploadedAt,
		Processed:  doc.ProcessedAt,
	}
}
