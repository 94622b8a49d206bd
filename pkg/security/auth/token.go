package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"
)

// ErrInvalidToken is returned for unknown tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator validates bearer tokens against the configured allow-list.
// The list can be replaced at runtime when configuration reloads.
type TokenValidator struct {
	mu     sync.RWMutex
	tokens map[[sha256.Size]byte]*TokenInfo
}

var _ TokenStore = (*TokenValidator)(nil)

// NewTokenValidator creates a validator from token -> description.
func NewTokenValidator(tokens map[string]string) *TokenValidator {
	v := &TokenValidator{}
	v.Replace(tokens)
	return v
}

// Validate checks the token and returns its info.
func (v *TokenValidator) Validate(token string) (*TokenInfo, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	sum := sha256.Sum256([]byte(token))

	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.tokens[sum]
	if !ok || subtle.ConstantTimeCompare([]byte(info.Token), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}
	return info, nil
}

// Open reports whether the allow-list is empty.
func (v *TokenValidator) Open() bool {
	return v.Len() == 0
}

// Len returns the number of configured tokens.
func (v *TokenValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.tokens)
}

// Replace swaps the whole allow-list.
func (v *TokenValidator) Replace(tokens map[string]string) {
	next := make(map[[sha256.Size]byte]*TokenInfo, len(tokens))
	for token, description := range tokens {
		if token == "" {
			continue
		}
		next[sha256.Sum256([]byte(token))] = &TokenInfo{Token: token, Description: description}
	}

	v.mu.Lock()
	v.tokens = next
	v.mu.Unlock()
}
