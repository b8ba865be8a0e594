package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/blog-edge/internal/model"
)

const defaultGitHubUserURL = "https://api.github.com/user"

// GitHubConfig configures a GitHubProvider. Endpoint and UserURL default to
// GitHub's public endpoints; tests point them at an httptest server.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Endpoint     oauth2.Endpoint
	UserURL      string
	// Timeout bounds each upstream call (token exchange, profile fetch).
	Timeout time.Duration
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
//  1. Login redirects the browser to GitHub with client_id, redirect_uri,
//     scope read:user and a random state.
//  2. GitHub redirects back to the callback with a short-lived code.
//  3. Exchange trades the code for an access token (server to server, using
//     the client secret) and reads the profile with it.
//
// The access token never reaches the browser and is not kept after Exchange.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
	client  *http.Client
}

// NewGitHubProvider creates a GitHubProvider. Only the read:user scope is
// requested: the session needs the public profile and nothing else.
func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = github.Endpoint
	}
	userURL := cfg.UserURL
	if userURL == "" {
		userURL = defaultGitHubUserURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     endpoint,
		},
		userURL: userURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// AuthURL returns the GitHub authorization URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// GitHub profile.
//
// A token response without an access token, a transport error, a non-200
// profile response or a profile without an ID are all errors. The caller
// must not forward their text to the browser.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*model.GitHubProfile, error) {
	// x/oauth2 picks the HTTP client for the token request out of the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("auth: token response has no access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var profile model.GitHubProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &profile, nil
}
