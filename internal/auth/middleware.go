package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/blog-edge/internal/model"
)

// SessionState is where a request's session cookie landed after verification.
type SessionState int

const (
	// SessionAbsent: no auth_token cookie.
	SessionAbsent SessionState = iota
	// SessionValid: signature verifies and the token is unexpired.
	SessionValid
	// SessionExpired: correctly signed, past exp.
	SessionExpired
	// SessionInvalid: malformed, badly signed or of the wrong shape.
	SessionInvalid
)

func (s SessionState) String() string {
	switch s {
	case SessionAbsent:
		return "absent"
	case SessionValid:
		return "valid"
	case SessionExpired:
		return "expired"
	case SessionInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// LoginPath is where clients are sent to start a new session.
const LoginPath = "/api/auth/login"

type contextKey string

const sessionKey contextKey = "session"

// Session is the verification outcome attached to the request context.
type Session struct {
	State SessionState
	User  model.User // zero unless State == SessionValid
}

// ResolveSession reads the session cookie and classifies it. It never fails:
// every problem collapses into a non-valid state.
func ResolveSession(r *http.Request, tokens *TokenService) (Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Session{State: SessionAbsent}, nil
	}

	claims, err := tokens.Verify(cookie.Value)
	switch {
	case err == nil:
		return Session{State: SessionValid, User: claims.User()}, nil
	case errors.Is(err, ErrExpiredToken):
		return Session{State: SessionExpired}, err
	default:
		return Session{State: SessionInvalid}, err
	}
}

// OptionalAuth attaches the caller's session to the request context and always
// lets the request through. Expired and invalid tokens look exactly like an
// anonymous visitor to the handler; the reason is only logged at debug level.
func OptionalAuth(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := ResolveSession(r, tokens)
			if err != nil {
				logger.Debug("session rejected",
					slog.String("state", sess.State.String()),
					slog.String("error", err.Error()),
				)
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the session OptionalAuth attached, or an absent
// session if none was attached.
func SessionFromContext(ctx context.Context) Session {
	sess, ok := ctx.Value(sessionKey).(Session)
	if !ok {
		return Session{State: SessionAbsent}
	}
	return sess
}

// UserFromContext returns the authenticated user, if any.
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserFromContext(ctx context.Context) (model.User, bool) {
	sess := SessionFromContext(ctx)
	if sess.State != SessionValid {
		return model.User{}, false
	}
	return sess.User, true
}
