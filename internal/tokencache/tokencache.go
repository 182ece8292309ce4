// Package tokencache provides storage for carrier OAuth tokens.
package tokencache

import (
	"context"
	"sync"
	"time"
)

// Token is a carrier access token with its absolute expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidFor reports whether the token remains valid for at least margin
// beyond now. A token within the margin of expiry counts as expired.
func (t Token) ValidFor(now time.Time, margin time.Duration) bool {
	return t.AccessToken != "" && t.ExpiresAt.Sub(now) > margin
}

// Store is the port for token storage. Implementations must tolerate
// concurrent refreshes: the exchange is idempotent, last write wins.
type Store interface {
	// Get returns the cached token and whether one is present.
	Get(ctx context.Context) (Token, bool, error)

	// Set replaces the cached token wholesale.
	Set(ctx context.Context, token Token) error
}

// Memory is an in-process Store, one token per adapter instance.
type Memory struct {
	mu    sync.RWMutex
	token Token
	set   bool
}

// NewMemory creates an empty in-memory token store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get returns the cached token.
func (m *Memory) Get(_ context.Context) (Token, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.set, nil
}

// Set replaces the cached token.
func (m *Memory) Set(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}
