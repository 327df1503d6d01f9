package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Answer  string           `json:"answer"`
	Model   string           `json:"model,omitempty"`
	Sources []SourceResponse `json:"sources"`
}

// SourceResponse cites one retrieved chunk.
type SourceResponse struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page_number,omitempty"`
	Sheet        string  `json:"sheet_name,omitempty"`
	Score        float64 `json:"score"`
	Text         string  `json:"chunk_text"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// ComponentStatus is the probe result of one dependency.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Sugar().Debugw("invalid query request", "error", err)
		return s.fail(c, domain.NewValidationError("body", "invalid request body"))
	}

	answer, err := s.ports.Query.Answer(c.Request().Context(), domain.QueryRequest{
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
	})
	if err != nil {
		return s.fail(c, err)
	}

	resp := QueryResponse{
		Answer:  answer.Text,
		Model:   answer.Model,
		Sources: make([]SourceResponse, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		resp.Sources[i] = SourceResponse{
			DocumentID:   src.DocumentID,
			DocumentName: src.DocumentName,
			Page:         src.Position.Page,
			Sheet:        src.Position.Sheet,
			Score:        src.Score,
			Text:         src.Preview(),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleHealth reports "ok" or "degraded"; a degraded service answers 503.
func (s *Server) handleHealth(c echo.Context) error {
	if s.ports.Health == nil {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	}

	report := s.ports.Health.Check(c.Request().Context())
	resp := HealthResponse{
		Status:     "ok",
		Components: make([]ComponentStatus, len(report.Components)),
	}
	for i, comp := range report.Components {
		resp.Components[i] = ComponentStatus{Name: comp.Name, Healthy: comp.Healthy, Detail: comp.Detail}
	}

	status := http.StatusOK
	if !report.Healthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
