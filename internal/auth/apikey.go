package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrWeakAPIKey    = errors.New("API key must be at least 32 characters")
)

// APIKeyVerifier checks the scheduler's static API key against a bcrypt hash,
// so the plaintext key never sits in configuration.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a verifier for a bcrypt hash. An empty hash
// disables API key authentication.
func NewAPIKeyVerifier(hash string) *APIKeyVerifier {
	return &APIKeyVerifier{hash: []byte(hash)}
}

// Enabled reports whether a key hash is configured.
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify compares key with the configured hash.
func (v *APIKeyVerifier) Verify(key string) error {
	if !v.Enabled() || key == "" {
		return ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey produces the bcrypt hash to put in configuration.
func HashAPIKey(key string) (string, error) {
	if len(key) < 32 {
		return "", ErrWeakAPIKey
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hashed), nil
}
