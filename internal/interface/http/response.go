package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard API response envelope.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the error part of the envelope. Code is the stable error kind.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func meta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"}
}

// writeJSON writes a successful envelope.
func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{
		Success:   true,
		Data:      data,
		Meta:      meta(),
		RequestID: requestIDFrom(c),
	})
}

// writeJSONError writes an error envelope and aborts the chain.
func writeJSONError(c *gin.Context, status int, code shared.Kind, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: string(code), Message: message},
		Meta:      meta(),
		RequestID: requestIDFrom(c),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error kind to an HTTP status.
func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err and writes it. Internal details never leave the
// process; they are logged instead.
func writeError(c *gin.Context, err error) {
	kind := shared.KindOf(err)
	if kind == shared.KindInternal {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
		writeJSONError(c, http.StatusInternalServerError, kind, "internal server error")
		return
	}
	writeJSONError(c, statusFor(kind), kind, publicMessage(err))
}

// publicMessage prefers the domain message over the wrapped chain.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// badRequest reports a malformed request body or parameter.
func badRequest(c *gin.Context, message string) {
	writeJSONError(c, http.StatusBadRequest, shared.KindValidation, message)
}
