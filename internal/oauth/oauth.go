// Package oauth runs the GitHub OAuth web flow for the browser client: it builds
// the authorize URL and trades the returned code for an access token.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	ErrNotConfigured = errors.New("GitHub OAuth is not configured on the server.")
	scopes           = []string{"repo", "read:user"}
)

type Exchanger struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
}

// New returns an Exchanger for the GitHub endpoint. Either credential may be empty,
// in which case Configured reports false.
func New(clientID, clientSecret string) *Exchanger {
	return NewWithEndpoint(clientID, clientSecret, github.Endpoint)
}

// NewWithEndpoint is New with a custom endpoint (GitHub Enterprise, tests).
func NewWithEndpoint(clientID, clientSecret string, endpoint oauth2.Endpoint) *Exchanger {
	return &Exchanger{clientID: clientID, clientSecret: clientSecret, endpoint: endpoint}
}

func (e *Exchanger) Configured() bool {
	return e.clientID != "" && e.clientSecret != ""
}

func (e *Exchanger) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		Endpoint:     e.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}
}

// NormalizeRedirectURI accepts only absolute http(s) URLs.
func NormalizeRedirectURI(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// AuthURL returns the authorize URL and the random state embedded in it. The
// redirect URI must already be normalized.
func (e *Exchanger) AuthURL(redirectURI string) (string, string, error) {
	if !e.Configured() {
		return "", "", ErrNotConfigured
	}
	state := uuid.NewString()
	u := e.config(redirectURI).AuthCodeURL(state, oauth2.SetAuthURLParam("allow_signup", "true"))
	return u, state, nil
}

// Exchange trades an authorization code for an access token with one POST.
func (e *Exchanger) Exchange(ctx context.Context, code, redirectURI string) (string, error) {
	if !e.Configured() {
		return "", ErrNotConfigured
	}
	tok, err := e.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("GitHub OAuth error: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("GitHub OAuth error: empty access token")
	}
	return tok.AccessToken, nil
}
