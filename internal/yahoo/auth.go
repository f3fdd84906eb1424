package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Endpoint is Yahoo's OAuth2 endpoint. Yahoo wants client credentials in a
// Basic auth header.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://api.login.yahoo.com/oauth2/request_auth",
	TokenURL:  "https://api.login.yahoo.com/oauth2/get_token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// refreshEarly renews the access token this long before it expires.
const refreshEarly = 5 * time.Minute

var ErrNoToken = errors.New("no saved yahoo token")

type Auth struct {
	Config    *oauth2.Config
	TokenFile string
}

func NewAuth(clientID, clientSecret, redirectURI, tokenFile string) *Auth {
	if redirectURI == "" {
		redirectURI = "oob"
	}
	return &Auth{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
			RedirectURL:  redirectURI,
		},
		TokenFile: tokenFile,
	}
}

// AuthCodeURL is the page the user opens to grant access.
func (a *Auth) AuthCodeURL() string {
	return a.Config.AuthCodeURL("")
}

// Exchange trades an authorization code for a token and saves it.
func (a *Auth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	if err := SaveToken(a.TokenFile, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Client returns an HTTP client that refreshes the saved token as needed and
// writes refreshed tokens back to TokenFile.
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	tok, err := LoadToken(a.TokenFile)
	if err != nil {
		return nil, err
	}
	src := &refreshingSource{
		ctx:     ctx,
		conf:    a.Config,
		path:    a.TokenFile,
		refresh: tok.RefreshToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSourceWithExpiry(tok, src, refreshEarly)), nil
}

// refreshingSource always trades the refresh token for a new access token
// and persists the result. Caching is left to ReuseTokenSourceWithExpiry.
type refreshingSource struct {
	ctx  context.Context
	conf *oauth2.Config
	path string

	mu      sync.Mutex
	refresh string
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh == "" {
		return nil, ErrNoToken
	}
	tok, err := s.conf.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.refresh}).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing yahoo token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = s.refresh
	}
	s.refresh = tok.RefreshToken
	if err := SaveToken(s.path, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// tokenFile matches the on-disk layout of oauth_token.json.
type tokenFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenExpiry  string `json:"token_expiry,omitempty"`
}

func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if tf.RefreshToken == "" && tf.AccessToken == "" {
		return nil, ErrNoToken
	}

	tok := &oauth2.Token{
		AccessToken:  tf.AccessToken,
		RefreshToken: tf.RefreshToken,
		TokenType:    "Bearer",
	}
	if tf.TokenExpiry != "" {
		// written without a zone offset by older tooling
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			if t, err := time.ParseInLocation(layout, tf.TokenExpiry, time.Local); err == nil {
				tok.Expiry = t
				break
			}
		}
	}
	return tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	tf := tokenFile{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		tf.TokenExpiry = tok.Expiry.Format(time.RFC3339Nano)
	}
	b, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
