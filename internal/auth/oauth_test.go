package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the two endpoints Exchange talks to.
type fakeGitHub struct {
	tokenBody   string
	userStatus  int
	userBody    string
	userDelay   time.Duration
	gotBearer   string
	tokenCalled int
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalled++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.gotBearer = r.Header.Get("Authorization")
		if f.userDelay > 0 {
			select {
			case <-time.After(f.userDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userStatus)
		_, _ = w.Write([]byte(f.userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server, timeout time.Duration) *GitHubProvider {
	return NewGitHubProvider(GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://blog.example/api/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/login/oauth/authorize",
			TokenURL:  srv.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserURL: srv.URL + "/user",
		Timeout: timeout,
	})
}

func TestAuthURL(t *testing.T) {
	p := NewGitHubProvider(GitHubConfig{
		ClientID:    "client-id",
		CallbackURL: "https://blog.example/api/auth/callback",
	})

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "github.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://blog.example/api/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "read:user", q.Get("scope"))
	assert.Equal(t, "state-123", q.Get("state"))
}

func TestExchange_Success(t *testing.T) {
	gh := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_abc","token_type":"bearer","scope":"read:user"}`,
		userStatus: http.StatusOK,
		userBody:   `{"id":583231,"login":"octocat","avatar_url":"https://a/1","name":null}`,
	}
	p := newTestProvider(gh.server(t), time.Second)

	profile, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)

	assert.Equal(t, int64(583231), profile.ID)
	assert.Equal(t, "octocat", profile.Login)
	assert.Equal(t, "Bearer gho_abc", gh.gotBearer)

	user := profile.ToUser()
	assert.Equal(t, "octocat", user.Name, "null name falls back to login")
}

func TestExchange_Failures(t *testing.T) {
	cases := []struct {
		name string
		gh   *fakeGitHub
	}{
		{"no access token", &fakeGitHub{
			tokenBody: `{"token_type":"bearer"}`, userStatus: http.StatusOK, userBody: `{"id":1,"login":"x"}`,
		}},
		{"provider error", &fakeGitHub{
			tokenBody: `{"error":"bad_verification_code"}`, userStatus: http.StatusOK, userBody: `{"id":1,"login":"x"}`,
		}},
		{"profile non-200", &fakeGitHub{
			tokenBody: `{"access_token":"gho_abc","token_type":"bearer"}`, userStatus: http.StatusBadGateway, userBody: `{}`,
		}},
		{"profile without id", &fakeGitHub{
			tokenBody: `{"access_token":"gho_abc","token_type":"bearer"}`, userStatus: http.StatusOK, userBody: `{"login":"x"}`,
		}},
		{"profile not json", &fakeGitHub{
			tokenBody: `{"access_token":"gho_abc","token_type":"bearer"}`, userStatus: http.StatusOK, userBody: `<html>`,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProvider(tc.gh.server(t), time.Second)
			_, err := p.Exchange(context.Background(), "code-1")
			assert.Error(t, err)
		})
	}
}

func TestExchange_Timeout(t *testing.T) {
	gh := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_abc","token_type":"bearer"}`,
		userStatus: http.StatusOK,
		userBody:   `{"id":1,"login":"slow"}`,
		userDelay:  2 * time.Second,
	}
	p := newTestProvider(gh.server(t), 100*time.Millisecond)

	start := time.Now()
	_, err := p.Exchange(context.Background(), "code-1")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
