package http

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

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

type mockQueryService struct {
	answer *domain.Answer
	err    error
	last   domain.QueryRequest
}

func (m *mockQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.last = req
	return m.answer, m.err
}

type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(_ context.Context) domain.HealthReport {
	return m.report
}

func setupTestServer(t *testing.T, docs *mockDocumentService, query *mockQueryService) *Server {
	t.Helper()
	server, err := NewServer(Ports{Documents: docs, Query: query}, zap.NewNop(), nil)
	require.NoError(t, err)
	return server
}
