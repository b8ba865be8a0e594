package handler

// RESPONSE HELPERS:
// Every JSON body goes through writeJSON and every domain error through
// writeError, so status codes and error shapes stay consistent:
//
//	{"error": "validation_error", "message": "slug must not contain ':'"}
//	{"error": "Unauthorized", "login": "/api/auth/login"}
//
// Store and upstream failures never echo their cause; it is logged instead.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/blog-edge/internal/apperror"
	"github.com/sakif/blog-edge/internal/auth"
)

// ErrorResponse is the error body returned by the JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // machine-readable error type
	Message string `json:"message,omitempty"` // human-readable description
	Login   string `json:"login,omitempty"`   // where to start a session, on 401
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; nothing set afterwards is sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and body.
//
//	ErrValidation       → 400
//	ErrNotFound         → 404
//	ErrCSRF             → 400
//	ErrUnauthorized     → 401 with the login URL
//	ErrUpstream         → 500, generic message
//	ErrStoreUnavailable → 500, generic message
//	anything else       → 500, generic message
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: appErr.Message,
		})
	case errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: appErr.Message,
		})
	case errors.Is(err, apperror.ErrCSRF):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "csrf_mismatch",
			Message: appErr.Message,
		})
	case errors.Is(err, apperror.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Unauthorized",
			Login: auth.LoginPath,
		})
	case errors.Is(err, apperror.ErrUpstream):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Authentication failed",
		})
	case errors.Is(err, apperror.ErrStoreUnavailable):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "store_unavailable",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperror.NotFound("route", r.URL.Path))
}
