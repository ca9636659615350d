package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const credentialsJSON = `{
  "installed": {
    "client_id": "client-123.apps.googleusercontent.com",
    "client_secret": "secret-xyz",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

// tokenServer answers OAuth2 token requests and records their form values.
type tokenServer struct {
	mu       sync.Mutex
	requests []url.Values
	access   string
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.requests = append(s.requests, r.PostForm)
	access := s.access
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"refresh_token": "refresh-from-server",
		"expires_in":    3600,
	})
}

func (s *tokenServer) grants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Get("grant_type"))
	}
	return out
}

func newTestAuthenticator(t *testing.T, store Store, access string) (*Authenticator, *tokenServer) {
	t.Helper()
	ts := &tokenServer{access: access}
	srv := httptest.NewServer(ts)
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       DefaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: srv.URL + "/token",
		},
	}
	a := New(cfg, store, io.Discard, slogDiscard())
	a.openURL = func(string) error {
		t.Errorf("browser flow not expected")
		return nil
	}
	return a, ts
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(credentialsJSON), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "client-123.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	cfg := &oauth2.Config{ClientID: "cid", ClientSecret: "cs", Scopes: DefaultScopes,
		Endpoint: oauth2.Endpoint{TokenURL: "https://oauth2.googleapis.com/token"}}
	store := NewFileStore(path, cfg)

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoToken)

	expiry := time.Date(2026, time.March, 1, 12, 30, 0, 123456000, time.UTC)
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: expiry}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var tf tokenFile
	require.NoError(t, json.Unmarshal(raw, &tf))
	assert.Equal(t, "cid", tf.ClientID)
	assert.Equal(t, "https://oauth2.googleapis.com/token", tf.TokenURI)
	assert.Equal(t, "2026-03-01T12:30:00.123456Z", tf.Expiry)

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestFileStoreReadsGoogleAuthLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	body := `{"token": "ya29.a0", "refresh_token": "1//0g", "token_uri": "https://oauth2.googleapis.com/token",
"client_id": "x", "client_secret": "y", "scopes": ["https://mail.google.com/"], "expiry": "2025-01-02T03:04:05.678901Z"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tok, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "ya29.a0", tok.AccessToken)
	assert.Equal(t, "1//0g", tok.RefreshToken)
	assert.Equal(t, 2025, tok.Expiry.Year())
	assert.False(t, tok.Valid(), "token from 2025 has expired")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path, nil).Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoToken))
}

func TestTokenUsesValidStoredToken(t *testing.T) {
	store := NewMemoryStore(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)})
	a, ts := newTestAuthenticator(t, store, "unused")

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok.AccessToken)
	assert.Empty(t, ts.grants())
	assert.Zero(t, store.Saves())
}

func TestTokenRefreshesExpiredToken(t *testing.T) {
	store := NewMemoryStore(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(-time.Hour),
	})
	a, ts := newTestAuthenticator(t, store, "fresh")

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, []string{"refresh_token"}, ts.grants())
	assert.Equal(t, 1, store.Saves())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestTokenRunsBrowserFlowWithoutToken(t *testing.T) {
	store := NewMemoryStore(nil)
	a, ts := newTestAuthenticator(t, store, "granted")
	var out bytes.Buffer
	a.Out = &out

	a.openURL = func(raw string) error {
		u, err := url.Parse(raw)
		if err != nil {
			return err
		}
		q := u.Query()
		assert.Equal(t, "offline", q.Get("access_type"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))

		cb := q.Get("redirect_uri") + "?" + url.Values{"code": {"abc"}, "state": {q.Get("state")}}.Encode()
		go func() {
			resp, err := http.Get(cb)
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "granted", tok.AccessToken)
	assert.Equal(t, 1, store.Saves())
	assert.Contains(t, out.String(), "https://accounts.example.com/auth")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.requests, 1)
	assert.Equal(t, "authorization_code", ts.requests[0].Get("grant_type"))
	assert.Equal(t, "abc", ts.requests[0].Get("code"))
	assert.NotEmpty(t, ts.requests[0].Get("code_verifier"))
}

func TestTokenBrowserFlowCanceled(t *testing.T) {
	a, _ := newTestAuthenticator(t, NewMemoryStore(nil), "granted")
	a.OpenBrowser = false
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Token(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantStatus int
		wantCode   string
		wantErr    bool
		delivered  bool
	}{
		{name: "ok", query: url.Values{"state": {"s"}, "code": {"c"}}, wantStatus: http.StatusOK, wantCode: "c", delivered: true},
		{name: "state-mismatch", query: url.Values{"state": {"other"}, "code": {"c"}}, wantStatus: http.StatusBadRequest},
		{name: "denied", query: url.Values{"state": {"s"}, "error": {"access_denied"}}, wantStatus: http.StatusForbidden, wantErr: true, delivered: true},
		{name: "missing-code", query: url.Values{"state": {"s"}}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query.Encode(), nil)
			callbackHandler("s", results).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			select {
			case res := <-results:
				require.True(t, tc.delivered, "unexpected result")
				assert.Equal(t, tc.wantCode, res.code)
				assert.Equal(t, tc.wantErr, res.err != nil)
			default:
				assert.False(t, tc.delivered, "expected a result")
			}
		})
	}
}

func TestHTTPClientAuthorizesAndPersistsRefresh(t *testing.T) {
	store := NewMemoryStore(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(-time.Hour),
	})
	a, _ := newTestAuthenticator(t, store, "fresh")

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer api.Close()

	client, err := a.HTTPClient(context.Background())
	require.NoError(t, err)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer fresh", gotAuth)
	assert.Equal(t, 1, store.Saves(), "refresh saved once, not again by the session source")
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
