package cluster

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// JoinToken authorizes one Join call within its validity window, handed
// out by the leader out of band (operator copies it onto the new
// agent's command line) and consumed once by Cluster.Join.
type JoinToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// tokenManager issues and validates JoinTokens. It is leader-local,
// in-memory state: a token generated by one leader does not survive a
// leadership change, so a stalled join simply asks the new leader for
// a fresh one.
type tokenManager struct {
	mu     sync.RWMutex
	tokens map[string]*JoinToken
}

func newTokenManager() *tokenManager {
	return &tokenManager{tokens: make(map[string]*JoinToken)}
}

// Generate mints a random join token valid for ttl.
func (tm *tokenManager) Generate(ttl time.Duration) (*JoinToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cluster: generate token: %w", err)
	}

	jt := &JoinToken{
		Token:     hex.EncodeToString(buf),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// Validate reports whether token is live and not expired.
func (tm *tokenManager) Validate(token string) error {
	tm.mu.RLock()
	jt, ok := tm.tokens[token]
	tm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("cluster: invalid join token")
	}
	if time.Now().After(jt.ExpiresAt) {
		return fmt.Errorf("cluster: join token expired")
	}
	return nil
}

// Revoke invalidates token immediately, regardless of its expiry.
func (tm *tokenManager) Revoke(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}
