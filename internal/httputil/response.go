// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/cripta/envelopesvc/internal/errors"
)

// MakeJSONResponse writes a JSON response with the given status code and data
func MakeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// ErrorResponse is the stable error envelope {"error_code","error_message"}.
// error_code is one of the stable codes below; error_message never leaks
// backend-specific detail for internal errors.
type ErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Stable error codes surfaced to API clients.
const (
	CodeBadRequest    = "BR_00"
	CodeUnauthorized  = "UN_00"
	CodeNotFound      = "NF_00"
	CodeInternalError = "IE_00"
)

// classify maps a domain error to its HTTP status, stable error code and
// client-facing message. Internal errors never expose their wrapped detail.
func classify(err error) (status int, resp ErrorResponse) {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{ErrorCode: CodeNotFound, ErrorMessage: "the requested key or version was not found"}
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{ErrorCode: CodeUnauthorized, ErrorMessage: "custodian credentials did not authorize this operation"}
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{ErrorCode: CodeBadRequest, ErrorMessage: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{ErrorCode: CodeInternalError, ErrorMessage: "an internal error occurred"}
	}
}

// HandleError maps a domain error to the response envelope and writes it to
// w, logging the full (unredacted) error server-side.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if err == nil {
		return
	}
	status, resp := classify(err)
	if logger != nil {
		logger.Error("request failed", slog.Int("status", status), slog.String("error_code", resp.ErrorCode), slog.Any("error", err))
	}
	MakeJSONResponse(w, status, resp)
}

// HandleValidationError writes a 400 Bad Request response for validation errors.
func HandleValidationError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}
	MakeJSONResponse(w, http.StatusBadRequest, ErrorResponse{ErrorCode: CodeBadRequest, ErrorMessage: err.Error()})
}

// HandleErrorGin is the Gin-context counterpart of HandleError, used by
// every handler in this repository's control surface.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}
	status, resp := classify(err)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status", status),
			slog.String("error_code", resp.ErrorCode),
			slog.String("request_id", c.Writer.Header().Get("X-Request-Id")),
			slog.Any("error", err),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

// HandleValidationErrorGin is the Gin-context counterpart of HandleValidationError.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{ErrorCode: CodeBadRequest, ErrorMessage: err.Error()})
}

// HandleBadRequestGin writes a 400 Bad Request for malformed requests that
// never reached struct validation: bad JSON or a malformed Authorization
// header. Distinct from HandleValidationErrorGin only in
// intent; both produce the same BR_00 envelope.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{ErrorCode: CodeBadRequest, ErrorMessage: err.Error()})
}
