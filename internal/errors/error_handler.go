package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeUnknown        ErrorCode = "UNKNOWN"
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceDown    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout        ErrorCode = "TIMEOUT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodePeerError      ErrorCode = "PEER_ERROR"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler writes error responses for the HTTP API.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError maps err onto a status code and writes the error response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")
	h.WriteErrorResponse(w, HTTPStatus(err), Code(err), err.Error(), requestID)
}

// HTTPStatus converts an error to the HTTP status returned to API callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsSignalTimeout(err), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case IsUnavailable(err), stderrors.Is(err, ErrNoEndpoint):
		return http.StatusServiceUnavailable
	}
	if _, ok := IsHTTPError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Code converts an error to an application error code.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrorCodeUnknown
	case IsNotFound(err):
		return ErrorCodeNotFound
	case IsConflict(err):
		return ErrorCodeConflict
	case IsSignalTimeout(err), stderrors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case IsUnavailable(err), stderrors.Is(err, ErrNoEndpoint):
		return ErrorCodeServiceDown
	}
	if _, ok := IsHTTPError(err); ok {
		return ErrorCodePeerError
	}
	return ErrorCodeInternalError
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}
