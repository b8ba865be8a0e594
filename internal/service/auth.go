package service

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/sakif/blog-edge/internal/apperror"
	"github.com/sakif/blog-edge/internal/auth"
	"github.com/sakif/blog-edge/internal/model"
)

// OAuthProvider is the identity provider side of the login flow.
// *auth.GitHubProvider implements it; tests use a fake.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*model.GitHubProfile, error)
}

// AuthService handles the login flow business logic.
//
//	AuthHandler (HTTP) → AuthService → OAuthProvider (GitHub)
//	                                 ↘ TokenService (JWT)
//
// There is no user table: the session token is the only record of a login,
// so completing a login is exchange, map, sign.
type AuthService struct {
	provider OAuthProvider
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(provider OAuthProvider, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		provider: provider,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the identity and the signed token so the handler can set
// the cookie and redirect in one step.
type AuthResult struct {
	User  model.User
	Token string
}

// BeginLogin creates a fresh state value and the provider URL that carries it.
func (s *AuthService) BeginLogin() (state, redirectURL string, err error) {
	state, err = auth.NewState()
	if err != nil {
		return "", "", err
	}
	return state, s.provider.AuthURL(state), nil
}

// CheckCallback validates the callback parameters against the state cookie.
// It runs before any network call: a missing code, a missing state on either
// side, or a mismatch is a CSRF error.
func (s *AuthService) CheckCallback(code, state, cookieState string) error {
	if state == "" || cookieState == "" {
		return apperror.CSRFMismatch("missing OAuth state")
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		return apperror.CSRFMismatch("OAuth state mismatch")
	}
	if code == "" {
		return apperror.CSRFMismatch("missing OAuth code")
	}
	return nil
}

// CompleteLogin exchanges the authorization code for the caller's profile
// and signs a session token for it. Provider failures come back as
// apperror.ErrUpstream with the cause attached for logging only.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*AuthResult, error) {
	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("oauth exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Upstream("authentication failed", err)
	}

	user := profile.ToUser()
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperror.Upstream("authentication failed", err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.UserID),
		slog.String("username", user.Username),
	)
	return &AuthResult{User: user, Token: token}, nil
}
