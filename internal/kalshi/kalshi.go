// Package kalshi is a small client for the Kalshi prediction-markets API.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ProdBaseURL = "https://api.elections.kalshi.com"
	DemoBaseURL = "https://demo-api.kalshi.co"

	apiPrefix = "/trade-api/v2"
)

var ErrNoCredentials = errors.New("kalshi api key id and private key required")

type Client struct {
	HTTP    *http.Client
	BaseURL string
	KeyID   string
	Key     *rsa.PrivateKey
	Now     func() time.Time
	Log     logrus.FieldLogger
}

func NewClient(baseURL, keyID string, key *rsa.PrivateKey, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = ProdBaseURL
	}
	return &Client{
		HTTP:    &http.Client{Timeout: 20 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
		KeyID:   keyID,
		Key:     key,
		Now:     time.Now,
		Log:     log,
	}
}

// BaseURLFor picks the demo or production host.
func BaseURLFor(demo bool) string {
	if demo {
		return DemoBaseURL
	}
	return ProdBaseURL
}

func (c *Client) HasCredentials() bool {
	return c.KeyID != "" && c.Key != nil
}

func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return ParsePrivateKey(b)
}

// ParsePrivateKey accepts PKCS#1 or PKCS#8 PEM.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("private key: no PEM block")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rk, nil
}

// Sign produces the RSA-PSS SHA-256 signature over timestamp+method+path,
// with any query string removed from path.
func (c *Client) Sign(timestamp, method, path string) (string, error) {
	if c.Key == nil {
		return "", ErrNoCredentials
	}
	path, _, _ = strings.Cut(path, "?")
	digest := sha256.Sum256([]byte(timestamp + method + path))
	sig, err := rsa.SignPSS(rand.Reader, c.Key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, auth bool) error {
	path = apiPrefix + path
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if auth {
		if !c.HasCredentials() {
			return ErrNoCredentials
		}
		ts := strconv.FormatInt(c.Now().UnixMilli(), 10)
		sig, err := c.Sign(ts, method, path)
		if err != nil {
			return err
		}
		req.Header.Set("KALSHI-ACCESS-KEY", c.KeyID)
		req.Header.Set("KALSHI-ACCESS-SIGNATURE", sig)
		req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed: %d body=%s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
