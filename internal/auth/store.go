package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken reports that nothing has been persisted yet.
var ErrNoToken = errors.New("no stored token")

// Store persists the OAuth2 token between runs.
type Store interface {
	Load() (*oauth2.Token, error)
	Save(*oauth2.Token) error
}

// tokenFile is the token.json layout written by Google's auth libraries, so a
// token obtained by other Gmail tooling can be reused as is.
type tokenFile struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

const expiryLayout = "2006-01-02T15:04:05.999999Z"

// FileStore keeps the token in a JSON file. Config is optional and only used
// to fill the client fields of the file.
type FileStore struct {
	Path   string
	Config *oauth2.Config
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string, config *oauth2.Config) *FileStore {
	return &FileStore{Path: path, Config: config}
}

// Load reads the token file. A missing file yields ErrNoToken.
func (f *FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", f.Path, err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", f.Path, err)
	}
	if tf.Token == "" && tf.RefreshToken == "" {
		return nil, ErrNoToken
	}

	return &oauth2.Token{
		AccessToken:  tf.Token,
		RefreshToken: tf.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       parseExpiry(tf.Expiry),
	}, nil
}

// Save writes the token with owner-only permissions.
func (f *FileStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("save token: nil token")
	}
	tf := tokenFile{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		tf.Expiry = tok.Expiry.UTC().Format(expiryLayout)
	}
	if f.Config != nil {
		tf.TokenURI = f.Config.Endpoint.TokenURL
		tf.ClientID = f.Config.ClientID
		tf.ClientSecret = f.Config.ClientSecret
		tf.Scopes = f.Config.Scopes
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token %s: %w", f.Path, err)
	}
	return nil
}

// parseExpiry accepts the microsecond layout Google's libraries write as well
// as plain RFC 3339.
func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		expiryLayout,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.999999",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MemoryStore holds a token in memory.
type MemoryStore struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	saves int
}

// NewMemoryStore returns a store preloaded with tok (which may be nil).
func NewMemoryStore(tok *oauth2.Token) *MemoryStore {
	return &MemoryStore{tok: tok}
}

func (m *MemoryStore) Load() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, ErrNoToken
	}
	cp := *m.tok
	return &cp, nil
}

func (m *MemoryStore) Save(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.tok = &cp
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
