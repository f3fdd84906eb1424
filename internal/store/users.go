package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a wagers login lasts.
const DefaultSessionTTL = 30 * 24 * time.Hour

type User struct {
	ID        int64
	YahooGUID string
	Email     string
	Name      string
	CreatedAt time.Time
}

// UpsertUser returns the user for guid, creating it when missing. Non-empty
// email and name overwrite the stored values.
func (s *Store) UpsertUser(ctx context.Context, guid, email, name string) (*User, error) {
	const q = `
    INSERT INTO users (yahoo_guid, yahoo_email, yahoo_name)
    VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
    ON CONFLICT (yahoo_guid) DO UPDATE SET
      yahoo_email = COALESCE(NULLIF($2, ''), users.yahoo_email),
      yahoo_name  = COALESCE(NULLIF($3, ''), users.yahoo_name)
    RETURNING id, yahoo_guid, COALESCE(yahoo_email, ''), COALESCE(yahoo_name, ''), created_at
    `
	u := &User{}
	err := s.DB.QueryRowContext(ctx, q, guid, email, name).
		Scan(&u.ID, &u.YahooGUID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting user %s: %w", guid, err)
	}
	return u, nil
}

// CreateSession issues a new random token for the user.
func (s *Store) CreateSession(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	token := newToken()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (user_id, session_token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, time.Now().Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// UserBySession resolves an unexpired token. Unknown or expired tokens give
// ErrNotFound.
func (s *Store) UserBySession(ctx context.Context, token string) (*User, error) {
	const q = `
    SELECT u.id, u.yahoo_guid, COALESCE(u.yahoo_email, ''), COALESCE(u.yahoo_name, ''), u.created_at
    FROM sessions s
    JOIN users u ON u.id = s.user_id
    WHERE s.session_token = $1 AND s.expires_at > now()
    `
	u := &User{}
	err := s.DB.QueryRowContext(ctx, q, token).
		Scan(&u.ID, &u.YahooGUID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	return u, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE session_token = $1`, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions deletes expired sessions and reports how many went.
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return res.RowsAffected()
}

// SaveKalshiCredentials encrypts both values under one IV and replaces any
// credentials the user already had.
func (s *Store) SaveKalshiCredentials(ctx context.Context, userID int64, apiKeyID, privateKeyPEM string) error {
	if s.Vault == nil {
		return errors.New("saving credentials: no encryption key configured")
	}
	encKey, iv, err := s.Vault.Encrypt(apiKeyID, nil)
	if err != nil {
		return fmt.Errorf("encrypting api key: %w", err)
	}
	rawIV, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return err
	}
	encPEM, _, err := s.Vault.Encrypt(privateKeyPEM, rawIV)
	if err != nil {
		return fmt.Errorf("encrypting private key: %w", err)
	}

	const q = `
    INSERT INTO kalshi_credentials (user_id, encrypted_api_key, encrypted_private_key, encryption_iv)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (user_id) DO UPDATE SET
      encrypted_api_key     = EXCLUDED.encrypted_api_key,
      encrypted_private_key = EXCLUDED.encrypted_private_key,
      encryption_iv         = EXCLUDED.encryption_iv,
      created_at            = now()
    `
	if _, err := s.DB.ExecContext(ctx, q, userID, encKey, encPEM, iv); err != nil {
		return fmt.Errorf("saving credentials for user %d: %w", userID, err)
	}
	return nil
}

// KalshiCredentials returns the decrypted key id and private key PEM.
func (s *Store) KalshiCredentials(ctx context.Context, userID int64) (apiKeyID, privateKeyPEM string, err error) {
	if s.Vault == nil {
		return "", "", errors.New("loading credentials: no encryption key configured")
	}
	var encKey, encPEM, iv string
	err = s.DB.QueryRowContext(ctx,
		`SELECT encrypted_api_key, encrypted_private_key, encryption_iv FROM kalshi_credentials WHERE user_id = $1`,
		userID,
	).Scan(&encKey, &encPEM, &iv)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("querying credentials: %w", err)
	}

	if apiKeyID, err = s.Vault.Decrypt(encKey, iv); err != nil {
		return "", "", fmt.Errorf("decrypting api key: %w", err)
	}
	if privateKeyPEM, err = s.Vault.Decrypt(encPEM, iv); err != nil {
		return "", "", fmt.Errorf("decrypting private key: %w", err)
	}
	return apiKeyID, privateKeyPEM, nil
}

func (s *Store) DeleteKalshiCredentials(ctx context.Context, userID int64) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kalshi_credentials WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting credentials for user %d: %w", userID, err)
	}
	return nil
}

func newToken() string {
	// two v4 uuids give 244 random bits, hex without dashes
	a, b := uuid.New(), uuid.New()
	return fmt.Sprintf("%x%x", a[:], b[:])
}
