package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGenerationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrIndexUnavailable),
		errors.Is(err, domain.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error response.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Sugar().Warnw("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
