// Package auth provides Google OAuth2 authentication for mailpurge.
//
// The client secret comes from credentials.json (an "installed app" OAuth
// client). The resulting token is kept in a token.json file in the layout used
// by Google's own auth libraries, refreshed when it expires, and re-acquired
// through a browser consent flow when no usable token exists.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultScopes grants full mailbox access; users.messages.batchDelete
// rejects narrower scopes.
var DefaultScopes = []string{gmail.MailGoogleComScope}

// Authenticator turns a stored token (or a fresh consent) into an
// authenticated Gmail client.
type Authenticator struct {
	Config *oauth2.Config
	Store  Store
	Logger *slog.Logger

	// Out receives the consent URL during the browser flow.
	Out io.Writer
	// OpenBrowser launches the consent URL automatically when true.
	OpenBrowser bool

	openURL func(string) error
}

// New returns an Authenticator that opens the system browser for consent.
func New(config *oauth2.Config, store Store, out io.Writer, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if out == nil {
		out = os.Stdout
	}
	return &Authenticator{
		Config:      config,
		Store:       store,
		Logger:      logger,
		Out:         out,
		OpenBrowser: true,
		openURL:     browser.OpenURL,
	}
}

// LoadConfig reads credentials.json and returns an OAuth2 config.
func LoadConfig(credentialsPath string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

// Token returns a valid token. It loads the stored one, refreshes it when it
// has expired, and falls back to the browser flow when there is nothing usable.
// Any newly acquired or refreshed token is saved before returning.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.Store.Load()
	switch {
	case err == nil:
	case errors.Is(err, ErrNoToken):
		tok = nil
	default:
		a.Logger.WarnContext(ctx, "ignoring unreadable token", "error", err)
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		fresh, err := a.Config.TokenSource(ctx, tok).Token()
		if err == nil {
			a.save(ctx, fresh)
			return fresh, nil
		}
		a.Logger.WarnContext(ctx, "token refresh failed, requesting new consent", "error", err)
	}

	fresh, err := a.authorize(ctx)
	if err != nil {
		return nil, err
	}
	a.save(ctx, fresh)
	return fresh, nil
}

// HTTPClient returns an HTTP client that authorizes requests and saves every
// token it refreshes during the session.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	src := &persistingSource{
		src:    a.Config.TokenSource(ctx, tok),
		store:  a.Store,
		logger: a.Logger,
		last:   tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// NewGmailService returns an authenticated Gmail API service.
func (a *Authenticator) NewGmailService(ctx context.Context) (*gmail.Service, error) {
	client, err := a.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

func (a *Authenticator) save(ctx context.Context, tok *oauth2.Token) {
	if err := a.Store.Save(tok); err != nil {
		// The session still works; only the next run will need to re-auth.
		a.Logger.WarnContext(ctx, "could not save token", "error", err)
	}
}

// persistingSource saves tokens whose access token changed since the last
// call.
type persistingSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	store  Store
	logger *slog.Logger
	last   string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(tok); err != nil {
			p.logger.Warn("could not save refreshed token", "error", err)
		}
	}
	return tok, nil
}
