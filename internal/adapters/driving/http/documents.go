package http

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentResponse describes a document record.
type DocumentResponse struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	SizeBytes   int64      `json:"size_bytes"`
	ChunkCount  int        `json:"chunk_count"`
	Error       string     `json:"error,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// StatusResponse is the body of GET /api/v1/documents/:id/status.
type StatusResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// ListResponse is the body of GET /api/v1/documents.
type ListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int                `json:"total"`
}

// DeleteResponse is the body of DELETE /api/v1/documents/:id.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// handleUpload accepts a multipart "file" field and an optional "format" field.
// Processing continues in the background; the response reports status pending.
func (s *Server) handleUpload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return s.fail(c, domain.NewValidationError("file", "multipart field is required"))
	}

	f, err := header.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, err)
	}

	doc, err := s.ports.Documents.Ingest(c.Request().Context(), domain.RawDocument{
		Filename: header.Filename,
		Format:   domain.Format(c.FormValue("format")),
		Content:  content,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusAccepted, documentResponse(doc))
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.ports.Documents.List(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	resp := ListResponse{
		Documents: make([]DocumentResponse, len(docs)),
		Total:     len(docs),
	}
	for i := range docs {
		resp.Documents[i] = documentResponse(&docs[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.ports.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, documentResponse(doc))
}

func (s *Server) handleDocumentStatus(c echo.Context) error {
	report, err := s.ports.Documents.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{
		ID:         report.ID,
		Status:     string(report.Status),
		ChunkCount: report.ChunkCount,
		Error:      report.Error,
	})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := s.ports.Documents.Delete(c.Request().Context(), id); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Deleted: true})
}

func documentResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		Format:      string(doc.Format),
		Status:      string(doc.Status),
		SizeBytes:   doc.SizeBytes,
		ChunkCount:  doc.ChunkCount,
		Error:       doc.Error,
		UploadedAt:  doc.UploadedAt,
		ProcessedAt: doc.ProcessedAt,
	}
}
