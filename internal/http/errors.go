package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/embeddings"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// errEmbedderUnavailable is returned when a request needs text embedded but
// the server has no provider.
var errEmbedderUnavailable = errors.New("no embedding provider configured; send vectors instead of text")

// statusFor maps a store or embedding error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vectorstore.ErrCollectionLimitExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, vectorstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vectorstore.ErrDenseRequestRequired),
		errors.Is(err, vectorstore.ErrInvalidDimension),
		errors.Is(err, vectorstore.ErrInvalidCollectionName),
		errors.Is(err, embeddings.ErrEmptyInput),
		errors.Is(err, errEmbedderUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, vectorstore.ErrNotInitialized),
		errors.Is(err, embeddings.ErrEmbeddingFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// apiError converts err into an echo.HTTPError. Server-side failures are
// logged and their detail is not echoed back.
func (s *Server) apiError(c echo.Context, op string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			zap.String("operation", op),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err))
		return echo.NewHTTPError(status, op+" failed")
	}
	return echo.NewHTTPError(status, err.Error())
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
