package wagers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warriorpoets/league-stats/internal/store"
)

// ErrNoSession is returned for unknown or expired session tokens.
var ErrNoSession = errors.New("no such session")

// Credentials are a user's own exchange API key.
type Credentials struct {
	APIKeyID      string
	PrivateKeyPEM string
}

// Sessions maps login tokens to the credentials supplied at login.
type Sessions interface {
	Create(ctx context.Context, creds Credentials) (string, error)
	Get(ctx context.Context, token string) (Credentials, error)
	Delete(ctx context.Context, token string) error
}

type memEntry struct {
	creds   Credentials
	expires time.Time
}

// MemorySessions keeps sessions in process memory; they are lost on restart.
type MemorySessions struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]memEntry
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{TTL: ttl, Now: time.Now, sessions: make(map[string]memEntry)}
}

func (m *MemorySessions) Create(_ context.Context, creds Credentials) (string, error) {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = memEntry{creds: creds, expires: m.Now().Add(m.TTL)}
	return token, nil
}

func (m *MemorySessions) Get(_ context.Context, token string) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[token]
	if !ok {
		return Credentials{}, ErrNoSession
	}
	if !m.Now().Before(e.expires) {
		delete(m.sessions, token)
		return Credentials{}, ErrNoSession
	}
	return e.creds, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// StoreSessions persists sessions in Postgres. Each API key id gets its own
// user row and the credentials are stored encrypted.
type StoreSessions struct {
	Store *store.Store
	TTL   time.Duration
}

func (s *StoreSessions) Create(ctx context.Context, creds Credentials) (string, error) {
	u, err := s.Store.UpsertUser(ctx, "kalshi:"+creds.APIKeyID, "", "")
	if err != nil {
		return "", err
	}
	if err := s.Store.SaveKalshiCredentials(ctx, u.ID, creds.APIKeyID, creds.PrivateKeyPEM); err != nil {
		return "", err
	}
	return s.Store.CreateSession(ctx, u.ID, s.TTL)
}

func (s *StoreSessions) Get(ctx context.Context, token string) (Credentials, error) {
	u, err := s.Store.UserBySession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, err
	}
	id, pem, err := s.Store.KalshiCredentials(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{APIKeyID: id, PrivateKeyPEM: pem}, nil
}

func (s *StoreSessions) Delete(ctx context.Context, token string) error {
	return s.Store.DeleteSession(ctx, token)
}
