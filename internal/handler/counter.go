package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/blog-edge/internal/apperror"
	"github.com/sakif/blog-edge/internal/auth"
	"github.com/sakif/blog-edge/internal/model"
	"github.com/sakif/blog-edge/internal/service"
)

// CounterHandler serves the per-post view and like counters.
//
//	GET     /api/visits/{slug}  → {"views": n}
//	POST    /api/visits/{slug}  → {"views": n+1}
//	OPTIONS /api/visits/{slug}  → 204 preflight
//	GET     /api/likes/{slug}   → {"likes": n, "hasLiked": bool}
//	POST    /api/likes/{slug}   → toggle, same body
//
// Store failures answer 500 with a zeroed body next to the error, so a
// client can render "0" without special-casing the failure.
type CounterHandler struct {
	counters *service.CounterService
	logger   *slog.Logger
}

// NewCounterHandler creates a CounterHandler.
func NewCounterHandler(counters *service.CounterService, logger *slog.Logger) *CounterHandler {
	return &CounterHandler{
		counters: counters,
		logger:   logger,
	}
}

type viewsError struct {
	Error string `json:"error"`
	Views int64  `json:"views"`
}

type likesError struct {
	Error    string `json:"error"`
	Likes    int64  `json:"likes"`
	HasLiked bool   `json:"hasLiked"`
}

// HandleGetViews returns the view count.
//
// HTTP: GET /api/visits/{slug}
func (h *CounterHandler) HandleGetViews(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	slug, err := slugParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	views, err := h.counters.GetViewCount(r.Context(), slug)
	if err != nil {
		h.writeViewsError(w, err, "Failed to get view count")
		return
	}
	writeJSON(w, http.StatusOK, model.ViewCount{Views: views})
}

// HandleIncrementViews records one view and returns the new count.
//
// HTTP: POST /api/visits/{slug}
func (h *CounterHandler) HandleIncrementViews(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	slug, err := slugParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	views, err := h.counters.IncrementViewCount(r.Context(), slug)
	if err != nil {
		h.writeViewsError(w, err, "Failed to increment view count")
		return
	}
	writeJSON(w, http.StatusOK, model.ViewCount{Views: views})
}

// HandleViewsPreflight answers CORS preflight for the visits endpoint.
//
// HTTP: OPTIONS /api/visits/{slug}
func (h *CounterHandler) HandleViewsPreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetLikes returns the like count and whether the caller liked the post.
// Anonymous callers, and callers whose token is expired or invalid, get
// hasLiked=false.
//
// HTTP: GET /api/likes/{slug}
func (h *CounterHandler) HandleGetLikes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	slug, err := slugParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.counters.GetLikeState(r.Context(), slug, callerID(r))
	if err != nil {
		h.writeLikesError(w, err, "Failed to get likes")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleToggleLike flips the caller's like. Without a valid session it
// answers 401 with the login URL and touches nothing.
//
// HTTP: POST /api/likes/{slug}
func (h *CounterHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	slug, err := slugParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.counters.ToggleLike(r.Context(), slug, callerID(r))
	if err != nil {
		h.writeLikesError(w, err, "Failed to toggle like")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// slugParam returns the {slug} path segment decoded. chi matches on RawPath
// when the request has one, which leaves that segment percent-encoded.
func slugParam(r *http.Request) (string, error) {
	slug := chi.URLParam(r, "slug")
	if r.URL.RawPath == "" {
		return slug, nil
	}
	decoded, err := url.PathUnescape(slug)
	if err != nil {
		return "", apperror.ValidationFailed("slug", "slug is not a valid path segment")
	}
	return decoded, nil
}

// callerID is the session's user ID, or 0 for an anonymous caller.
func callerID(r *http.Request) int64 {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return 0
	}
	return user.UserID
}

func (h *CounterHandler) writeViewsError(w http.ResponseWriter, err error, message string) {
	if !errors.Is(err, apperror.ErrStoreUnavailable) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusInternalServerError, viewsError{Error: message})
}

func (h *CounterHandler) writeLikesError(w http.ResponseWriter, err error, message string) {
	if !errors.Is(err, apperror.ErrStoreUnavailable) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusInternalServerError, likesError{Error: message})
}
