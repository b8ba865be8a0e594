package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "auth_token"
	// StateCookieName carries the OAuth state between login and callback.
	StateCookieName = "oauth_state"

	// StateTTL bounds how long a login attempt may take.
	StateTTL = 600 * time.Second
)

// CookieOptions defines how auth cookies are issued. Secure is on in
// production; local development over plain HTTP turns it off.
type CookieOptions struct {
	Secure bool
}

// NewState returns a random OAuth state value (UUIDv4 from crypto/rand).
func NewState() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SetStateCookie stores the OAuth state for the callback to compare against.
func SetStateCookie(w http.ResponseWriter, state string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie removes the single-use OAuth state cookie.
func ClearStateCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSessionCookie issues the session token cookie for the full session TTL.
func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie logs the browser out. The token itself stays valid until
// exp; without the cookie the browser simply stops presenting it.
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
