package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog-edge/internal/auth"
	"github.com/sakif/blog-edge/internal/handler"
	"github.com/sakif/blog-edge/internal/model"
	"github.com/sakif/blog-edge/internal/repository"
	"github.com/sakif/blog-edge/internal/repository/sqlite"
	"github.com/sakif/blog-edge/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

var octocat = model.User{
	UserID:   583231,
	Username: "octocat",
	Avatar:   "https://avatars.example/u/583231",
	Name:     "The Octocat",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider stands in for GitHub.
type fakeProvider struct {
	profile     *model.GitHubProfile
	exchangeErr error
	calls       int
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?client_id=test&scope=read%3Auser&state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(context.Context, string) (*model.GitHubProfile, error) {
	f.calls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.profile, nil
}

// brokenStore fails every call.
type brokenStore struct{}

var errStoreDown = errors.New("dial tcp: connection refused")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (brokenStore) Put(context.Context, string, string) error          { return errStoreDown }
func (brokenStore) Delete(context.Context, string) error               { return errStoreDown }
func (brokenStore) Incr(context.Context, string, int64) (int64, error) { return 0, errStoreDown }
func (brokenStore) Keys(context.Context, string) ([]string, error)     { return nil, errStoreDown }
func (brokenStore) Ping(context.Context) error                         { return errStoreDown }
func (brokenStore) Close() error                                       { return nil }

func newMemoryStore(t *testing.T) repository.KeyValueStore {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type testEnv struct {
	router   http.Handler
	tokens   *auth.TokenService
	provider *fakeProvider
	store    repository.KeyValueStore
}

// newTestEnv wires the handlers onto a chi router the same way the server
// does, minus logging and rate limiting.
func newTestEnv(t *testing.T, store repository.KeyValueStore) *testEnv {
	t.Helper()
	logger := testLogger()

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	provider := &fakeProvider{profile: &model.GitHubProfile{
		ID:        octocat.UserID,
		Login:     octocat.Username,
		AvatarURL: octocat.Avatar,
		Name:      octocat.Name,
	}}

	counters := service.NewCounterService(store, time.Second, logger)
	authH := handler.NewAuthHandler(service.NewAuthService(provider, tokens, logger), auth.CookieOptions{Secure: true}, logger)
	counterH := handler.NewCounterHandler(counters, logger)
	healthH := handler.NewHealthHandler(counters, logger)

	r := chi.NewRouter()
	r.Get("/healthz", healthH.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens, logger))
		r.Get("/auth/login", authH.HandleLogin)
		r.Get("/auth/callback", authH.HandleCallback)
		r.Post("/auth/logout", authH.HandleLogout)
		r.Get("/auth/user", authH.HandleUser)

		r.Get("/visits/{slug}", counterH.HandleGetViews)
		r.Post("/visits/{slug}", counterH.HandleIncrementViews)
		r.Options("/visits/{slug}", counterH.HandleViewsPreflight)
		r.Get("/likes/{slug}", counterH.HandleGetLikes)
		r.Post("/likes/{slug}", counterH.HandleToggleLike)
	})

	return &testEnv{router: r, tokens: tokens, provider: provider, store: store}
}

// sessionCookie returns a valid auth_token cookie for user.
func (e *testEnv) sessionCookie(t *testing.T, user model.User) *http.Cookie {
	t.Helper()
	token, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

// expiredCookie returns an auth_token signed with the right secret that
// expired a day ago.
func expiredCookie(t *testing.T, user model.User) *http.Cookie {
	t.Helper()
	past := time.Now().Add(-auth.SessionTTL - 24*time.Hour)
	old, err := auth.NewTokenService(testSecret, auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	token, err := old.Issue(user)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

// findCookie returns the Set-Cookie with the given name, or nil.
func findCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
