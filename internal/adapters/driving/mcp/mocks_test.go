package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	report    *domain.StatusReport
	err       error

	ingested []domain.RawDocument
	deleted  []string
}

func (m *mockDocumentService) Ingest(_ context.Context, raw domain.RawDocument) (*domain.Document, error) {
	m.ingested = append(m.ingested, raw)
	return m.document, m.err
}

func (m *mockDocumentService) Status(_ context.Context, _ string) (*domain.StatusReport, error) {
	return m.report, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer *domain.Answer
	err    error
	last   domain.QueryRequest
}

func (m *mockQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.last = req
	return m.answer, m.err
}

// mockHealthService is a mock implementation of driving.HealthService.
type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(_ context.Context) domain.HealthReport {
	return m.report
}

func newTestServer(docs *mockDocumentService, query *mockQueryService) *Server {
	server, err := NewServer(&Ports{Documents: docs, Query: query, Health: &mockHealthService{}})
	if err != nil {
		panic(err)
	}
	return server
}
