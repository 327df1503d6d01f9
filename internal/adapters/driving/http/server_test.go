package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "127.0.0.1", Port: 9191}

		server, err := NewServer(Ports{Documents: &mockDocumentService{}, Query: &mockQueryService{}}, zap.NewNop(), cfg)

		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{})

		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(Ports{Documents: &mockDocumentService{}, Query: &mockQueryService{}}, nil, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("requires document and query services", func(t *testing.T) {
		_, err := NewServer(Ports{Query: &mockQueryService{}}, zap.NewNop(), nil)
		assert.ErrorIs(t, err, ErrMissingDocumentService)

		_, err = NewServer(Ports{Documents: &mockDocumentService{}}, zap.NewNop(), nil)
		assert.ErrorIs(t, err, ErrMissingQueryService)
	})
}

func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string, content []byte, format string) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if format != "" {
		require.NoError(t, w.WriteField("format", format))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	t.Run("accepts a document", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{
			ID:        "doc-1",
			Filename:  "report.pdf",
			Format:    domain.FormatPDF,
			Status:    domain.StatusPending,
			SizeBytes: 8,
		}}
		server := setupTestServer(t, docs, &mockQueryService{})

		rec := serve(server, multipartUpload(t, "report.pdf", []byte("%PDF-1.7"), ""))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var resp DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "doc-1", resp.ID)
		assert.Equal(t, "pending", resp.Status)

		require.Len(t, docs.ingested, 1)
		assert.Equal(t, "report.pdf", docs.ingested[0].Filename)
		assert.Equal(t, "%PDF-1.7", string(docs.ingested[0].Content))
	})

	t.Run("passes the declared format", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{ID: "doc-1"}}
		server := setupTestServer(t, docs, &mockQueryService{})

		rec := serve(server, multipartUpload(t, "export", []byte("rows"), "xlsx"))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, domain.Format("xlsx"), docs.ingested[0].Format)
	})

	t.Run("missing file field", func(t *testing.T) {
		server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

		rec := serve(server, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file")
	})

	t.Run("unsupported format", func(t *testing.T) {
		docs := &mockDocumentService{err: &domain.UnsupportedFormatError{Format: ".txt"}}
		server := setupTestServer(t, docs, &mockQueryService{})

		rec := serve(server, multipartUpload(t, "notes.txt", []byte("hello"), ""))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported format")
	})

	t.Run("body above the upload limit", func(t *testing.T) {
		server, err := NewServer(Ports{Documents: &mockDocumentService{}, Query: &mockQueryService{}},
			zap.NewNop(), &Config{Host: "localhost", Port: 8080, MaxUploadBytes: 16})
		require.NoError(t, err)

		rec := serve(server, multipartUpload(t, "big.pdf", bytes.Repeat([]byte("x"), 2<<20), ""))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestHandleListDocuments(t *testing.T) {
	processed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	docs := &mockDocumentService{documents: []domain.Document{
		{ID: "doc-2", Filename: "b.xlsx", Format: domain.FormatXLSX, Status: domain.StatusProcessing},
		{ID: "doc-1", Filename: "a.pdf", Format: domain.FormatPDF, Status: domain.StatusReady, ChunkCount: 4, ProcessedAt: &processed},
	}}
	server := setupTestServer(t, docs, &mockQueryService{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "doc-2", resp.Documents[0].ID)
	assert.Nil(t, resp.Documents[0].ProcessedAt)
	assert.Equal(t, 4, resp.Documents[1].ChunkCount)
}

func TestHandleGetDocument(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{ID: "doc-1", Filename: "a.pdf", Status: domain.StatusFailed, Error: "corrupt"}}
		server := setupTestServer(t, docs, &mockQueryService{})

		rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"corrupt"`)
	})

	t.Run("not found", func(t *testing.T) {
		docs := &mockDocumentService{err: domain.NewDocumentNotFound("doc-9")}
		server := setupTestServer(t, docs, &mockQueryService{})

		rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-9", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "doc-9")
	})
}

func TestHandleDocumentStatus(t *testing.T) {
	docs := &mockDocumentService{report: &domain.StatusReport{ID: "doc-1", Status: domain.StatusReady, ChunkCount: 7}}
	server := setupTestServer(t, docs, &mockQueryService{})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusResponse{ID: "doc-1", Status: "ready", ChunkCount: 7}, resp)
}

func TestHandleDeleteDocument(t *testing.T) {
	docs := &mockDocumentService{}
	server := setupTestServer(t, docs, &mockQueryService{})

	rec := serve(server, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc-1"}, docs.deleted)
}

func postQuery(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandleQuery(t *testing.T) {
	t.Run("answers with truncated citations", func(t *testing.T) {
		query := &mockQueryService{answer: &domain.Answer{
			Text:  "Twelve percent.",
			Model: "llama3.1",
			Sources: []domain.Citation{{
				DocumentID:   "doc-1",
				DocumentName: "finance.pdf",
				Position:     domain.Position{Page: 2},
				Score:        0.8,
				Text:         strings.Repeat("a", 400),
			}},
		}}
		server := setupTestServer(t, &mockDocumentService{}, query)

		rec := serve(server, postQuery(`{"question":"Growth?","document_ids":["doc-1"],"top_k":3}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp QueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Twelve percent.", resp.Answer)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, 2, resp.Sources[0].Page)
		assert.Equal(t, strings.Repeat("a", domain.PreviewLen)+"...", resp.Sources[0].Text)

		assert.Equal(t, domain.QueryRequest{Question: "Growth?", DocumentIDs: []string{"doc-1"}, TopK: 3}, query.last)
	})

	t.Run("empty sources encode as a list", func(t *testing.T) {
		query := &mockQueryService{answer: &domain.Answer{Text: domain.NoRelevantContentAnswer}}
		server := setupTestServer(t, &mockDocumentService{}, query)

		rec := serve(server, postQuery(`{"question":"anything"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"sources":[]`)
	})

	t.Run("maps errors to status codes", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{name: "validation", err: domain.NewValidationError("question", "must not be empty"), status: http.StatusBadRequest},
			{name: "timeout", err: domain.ErrGenerationTimeout, status: http.StatusGatewayTimeout},
			{name: "generation down", err: &domain.GenerationServiceError{Err: assert.AnError}, status: http.StatusServiceUnavailable},
			{name: "index down", err: &domain.IndexServiceError{Op: "search", Err: assert.AnError}, status: http.StatusServiceUnavailable},
			{name: "unexpected", err: assert.AnError, status: http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{err: tt.err})

				rec := serve(server, postQuery(`{"question":"q"}`))

				assert.Equal(t, tt.status, rec.Code)
			})
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{})

		rec := serve(server, postQuery(`{"question":`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("without probes", func(t *testing.T) {
		server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{})

		rec := serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		health := &mockHealthService{report: domain.HealthReport{Components: []domain.ComponentHealth{
			{Name: "embedding", Healthy: true, Detail: "ok"},
			{Name: "generation", Healthy: false, Detail: "connection refused"},
		}}}
		server, err := NewServer(Ports{Documents: &mockDocumentService{}, Query: &mockQueryService{}, Health: health},
			zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		require.Len(t, resp.Components, 2)
		assert.False(t, resp.Components[1].Healthy)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, &mockDocumentService{}, &mockQueryService{})
	serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docqa_http_requests_total")
}
