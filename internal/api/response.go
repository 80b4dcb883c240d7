// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/validation"
)

// maxBodyBytes bounds request bodies decoded by decodeJSON.
const maxBodyBytes = 1 << 20

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	// Code is a machine-readable error code
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details carries field errors for validation failures
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Count      *int      `json:"count,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeStoreError         = "STORE_ERROR"
)

// ResponseWriter writes APIResponse envelopes.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data any) {
	rw.write(http.StatusOK, data, nil)
}

// List writes a 200 response with a slice and its length in meta.count.
func (rw *ResponseWriter) List(data any, count int) {
	rw.write(http.StatusOK, data, &count)
}

// Created writes a 201 Created response.
func (rw *ResponseWriter) Created(data any) {
	rw.write(http.StatusCreated, data, nil)
}

// Accepted writes a 202 Accepted response.
func (rw *ResponseWriter) Accepted(data any) {
	rw.write(http.StatusAccepted, data, nil)
}

func (rw *ResponseWriter) write(status int, data any, count *int) {
	rw.writeJSON(status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    rw.meta(count),
	})
}

func (rw *ResponseWriter) meta(count *int) *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
		Count:      count,
	}
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error response with additional details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details any) {
	meta := rw.meta(nil)
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// BadRequest writes a 400 Bad Request error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden writes a 403 Forbidden error.
func (rw *ResponseWriter) Forbidden(message string) {
	rw.Error(http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound writes a 404 Not Found error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict writes a 409 Conflict error.
func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, ErrCodeConflict, message)
}

// InternalError writes a 500 Internal Server Error.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable writes a 503 Service Unavailable error.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// ValidationError writes a 400 error listing the failed fields.
func (rw *ResponseWriter) ValidationError(verr *validation.RequestValidationError) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Errors())
}

// FromError maps a classified error onto its HTTP status. Unclassified
// errors are logged and reported as 500 without their text.
func (rw *ResponseWriter) FromError(err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, apperrors.PublicMessage(err))
	case apperrors.KindAuthentication:
		rw.Unauthorized(apperrors.PublicMessage(err))
	case apperrors.KindPermission:
		rw.Forbidden(apperrors.PublicMessage(err))
	case apperrors.KindNotFound:
		rw.NotFound(apperrors.PublicMessage(err))
	case apperrors.KindConflict:
		rw.Conflict(apperrors.PublicMessage(err))
	case apperrors.KindPersistence:
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Store error")
		rw.Error(http.StatusInternalServerError, ErrCodeStoreError, apperrors.PublicMessage(err))
	default:
		logging.Ctx(rw.r.Context()).Error().Err(err).Str("path", rw.r.URL.Path).Msg("Unhandled error")
		rw.InternalError("internal error")
	}
}

func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// errEmptyBody is returned by decodeJSON for a request without a body.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	return json.Unmarshal(body, dst)
}
