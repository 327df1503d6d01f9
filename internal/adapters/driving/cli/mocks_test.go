package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockDocumentService keeps documents in memory.
type mockDocumentService struct {
	mu       sync.Mutex
	docs     []domain.Document
	ingested []domain.RawDocument
	deleted  []string
	// finalStatus is reported by Status for ingested documents.
	finalStatus domain.DocumentStatus
	err         error
}

func newMockDocumentService() *mockDocumentService {
	processed := time.Date(2024, 5, 1, 9, 1, 0, 0, time.UTC)
	return &mockDocumentService{
		finalStatus: domain.StatusReady,
		docs: []domain.Document{
			{
				ID:          "doc-1",
				Filename:    "report.pdf",
				Format:      domain.FormatPDF,
				Status:      domain.StatusReady,
				SizeBytes:   2048,
				ChunkCount:  4,
				UploadedAt:  time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
				ProcessedAt: &processed,
			},
			{
				ID:         "doc-2",
				Filename:   "broken.docx",
				Format:     domain.FormatDOCX,
				Status:     domain.StatusFailed,
				Error:      "extraction failed: corrupt file",
				UploadedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			},
		},
	}
}

func (m *mockDocumentService) Ingest(_ context.Context, raw domain.RawDocument) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested = append(m.ingested, raw)
	doc := domain.Document{
		ID:        fmt.Sprintf("new-%d", len(m.ingested)),
		Filename:  raw.Filename,
		Format:    raw.Format,
		Status:    domain.StatusPending,
		SizeBytes: int64(len(raw.Content)),
	}
	m.docs = append(m.docs, doc)
	return &doc, nil
}

func (m *mockDocumentService) Status(ctx context.Context, id string) (*domain.StatusReport, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report := &domain.StatusReport{ID: doc.ID, Status: doc.Status, ChunkCount: doc.ChunkCount, Error: doc.Error}
	if doc.Status == domain.StatusPending {
		report.Status = m.finalStatus
		if m.finalStatus == domain.StatusFailed {
			report.Error = "embedding service unavailable"
		}
		if m.finalStatus == domain.StatusReady {
			report.ChunkCount = 1
		}
	}
	return report, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID == id {
			doc := m.docs[i]
			return &doc, nil
		}
	}
	return nil, domain.NewDocumentNotFound(id)
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Document(nil), m.docs...), nil
}

func (m *mockDocumentService) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

// mockQueryService records requests and returns a fixed answer.
type mockQueryService struct {
	requests []domain.QueryRequest
	answer   *domain.Answer
	err      error
}

func (m *mockQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

type mockHealthService struct {
	report domain.HealthReport
}

func (m *mockHealthService) Check(context.Context) domain.HealthReport {
	return m.report
}

type mockOrchestrator struct {
	started bool
	resumed int
}

func (m *mockOrchestrator) Start(context.Context) { m.started = true }
func (m *mockOrchestrator) Submit(string) error   { return nil }
func (m *mockOrchestrator) Stop()                 {}
func (m *mockOrchestrator) Resume(context.Context) (int, error) {
	m.resumed++
	return 0, nil
}

type testServices struct {
	docs   *mockDocumentService
	query  *mockQueryService
	health *mockHealthService
	orch   *mockOrchestrator
}

// newTestServices injects mock services and points --config at an empty
// temporary directory. The returned func restores the previous state.
func newTestServices() (*testServices, func()) {
	svc := &testServices{
		docs: newMockDocumentService(),
		query: &mockQueryService{answer: &domain.Answer{
			Text:  "Revenue grew 12 percent.",
			Model: "llama3.1",
			Sources: []domain.Citation{
				{DocumentID: "doc-1", DocumentName: "report.pdf", Position: domain.Position{Page: 2}, Score: 0.91, Text: "Revenue grew 12 percent year on year."},
				{DocumentID: "doc-3", DocumentName: "plan.xlsx", Position: domain.Position{Sheet: "Budget"}, Score: 0.5, Text: "Budget\nQ3"},
			},
		}},
		health: &mockHealthService{report: domain.HealthReport{Components: []domain.ComponentHealth{
			{Name: "embedding", Healthy: true},
			{Name: "vector index", Healthy: true},
		}}},
		orch: &mockOrchestrator{},
	}

	dir, _ := os.MkdirTemp("", "docqa-cli-test")
	prevCfgFile := cfgFile
	prevPoll := pollInterval

	cfgFile = filepath.Join(dir, "config.toml")
	pollInterval = time.Millisecond
	documentService = svc.docs
	queryService = svc.query
	healthService = svc.health
	orchestrator = svc.orch

	return svc, func() {
		documentService = nil
		queryService = nil
		healthService = nil
		orchestrator = nil
		cfgFile = prevCfgFile
		pollInterval = prevPoll
		resetFlags()
		_ = os.RemoveAll(dir)
	}
}

// resetFlags restores flag variables that persist between Execute calls.
func resetFlags() {
	documentJSON = false
	askJSON = false
	askDocuments = nil
	askTopK = 0
	healthJSON = false
	ingestFormat = ""
	ingestWait = true
	ingestTimeout = 30 * time.Minute
	versionShort = false
	mcpHost = "127.0.0.1"
	mcpPort = 0
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
