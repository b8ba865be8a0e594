package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/blog-edge/internal/auth"
	"github.com/sakif/blog-edge/internal/model"
	"github.com/sakif/blog-edge/internal/service"
)

// AuthHandler manages the GitHub OAuth login flow and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → set the state cookie, redirect to GitHub
//   - HandleCallback → check state, exchange the code, set the session cookie
//   - HandleLogout   → clear the session cookie
//   - HandleUser     → report the caller's identity from the session token
//
// HandleUser reads the session attached by auth.OptionalAuth, so that
// middleware must run in front of it.
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.CookieOptions
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, cookies auth.CookieOptions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    svc,
		cookies: cookies,
		logger:  logger,
	}
}

// UserResponse is the body of GET /api/auth/user. User is null when the
// caller has no valid session.
type UserResponse struct {
	User *model.User `json:"user"`
}

// HandleLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/login
//
// The state lives only in the caller's oauth_state cookie (10 minutes); the
// server keeps nothing between login and callback.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, redirectURL, err := h.auth.BeginLogin()
	if err != nil {
		h.logger.Error("auth login: generating state", slog.String("error", err.Error()))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetStateCookie(w, state, h.cookies)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /api/auth/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Compare the state parameter with the oauth_state cookie (no network yet)
//  2. Exchange the code for the GitHub profile
//  3. Sign a session token for it
//  4. Set auth_token, clear oauth_state, redirect to /
//
// This endpoint is hit by a browser navigation, so failures answer in plain
// text rather than JSON.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var cookieState string
	if c, err := r.Cookie(auth.StateCookieName); err == nil {
		cookieState = c.Value
	}

	if err := h.auth.CheckCallback(q.Get("code"), q.Get("state"), cookieState); err != nil {
		h.logger.Warn("auth callback rejected",
			slog.String("reason", err.Error()),
			slog.String("githubError", q.Get("error")),
		)
		http.Error(w, "Invalid OAuth callback", http.StatusBadRequest)
		return
	}

	res, err := h.auth.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		// CompleteLogin has logged the upstream cause.
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookies)
	auth.ClearStateCookie(w, h.cookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout clears the session cookie. It always succeeds.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleUser returns the identity carried by a valid session token, or null.
// Expired and invalid tokens are indistinguishable from no token here.
//
// HTTP: GET /api/auth/user
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, UserResponse{User: nil})
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: &user})
}
