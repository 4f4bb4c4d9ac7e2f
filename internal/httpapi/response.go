package httpapi

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/event-aggregator/pkg/aggregator"
	"github.com/Sternrassler/event-aggregator/pkg/logging"
	"github.com/Sternrassler/event-aggregator/pkg/pagination"
	"github.com/Sternrassler/event-aggregator/pkg/upstream"
	"github.com/gin-gonic/gin"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeUnknownSource       = "UNKNOWN_SOURCE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIError is the body of an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// statusFor maps service errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pagination.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, aggregator.ErrUnknownSource):
		return http.StatusNotFound, CodeUnknownSource
	case errors.Is(err, aggregator.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, aggregator.ErrUpstreamUnavailable), errors.Is(err, upstream.ErrNoItemEndpoint):
		return http.StatusBadGateway, CodeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError renders err in the error envelope. Internal errors are logged
// and their details withheld from the client.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error().Err(err).Msg("Unhandled request error")
		message = "internal server error"
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, errorEnvelope{Error: APIError{Code: code, Message: message}})
}

// badRequest renders a 400 with message.
func badRequest(c *gin.Context, message string) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(http.StatusBadRequest, errorEnvelope{
		Error: APIError{Code: CodeInvalidRequest, Message: message},
	})
}
