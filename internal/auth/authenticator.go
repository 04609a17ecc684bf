package auth

import (
	"context"
	"net/http"
	"strings"
)

// APIKeyHeader carries the scheduler's static key.
const APIKeyHeader = "X-Api-Key"

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Role    Role
}

// Authenticator defines the interface for caller authentication.
// This abstraction allows swapping between different auth methods (JWT, API keys, mTLS, etc.)
// without changing the middleware.
type Authenticator interface {
	// Authenticate identifies the caller from request headers.
	Authenticate(ctx context.Context, headers http.Header) (*Principal, error)
}

// CallerAuthenticator accepts a Bearer JWT or, failing that, the scheduler
// API key.
type CallerAuthenticator struct {
	jwt     *JWTManager
	apiKeys *APIKeyVerifier
}

// NewCallerAuthenticator creates an authenticator. Either argument may be nil
// to disable that method.
func NewCallerAuthenticator(jwtManager *JWTManager, apiKeys *APIKeyVerifier) *CallerAuthenticator {
	return &CallerAuthenticator{jwt: jwtManager, apiKeys: apiKeys}
}

// Authenticate implements Authenticator.
func (a *CallerAuthenticator) Authenticate(ctx context.Context, headers http.Header) (*Principal, error) {
	if authHeader := headers.Get("Authorization"); authHeader != "" {
		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || a.jwt == nil {
			return nil, ErrInvalidToken
		}
		claims, err := a.jwt.Validate(parts[1])
		if err != nil {
			return nil, err
		}
		return &Principal{Subject: claims.Subject, Role: claims.Role}, nil
	}

	if key := headers.Get(APIKeyHeader); key != "" {
		if err := a.apiKeys.Verify(key); err != nil {
			return nil, err
		}
		return &Principal{Subject: "scheduler", Role: RoleScheduler}, nil
	}

	return nil, ErrMissingToken
}

// Ensure CallerAuthenticator implements Authenticator
var _ Authenticator = (*CallerAuthenticator)(nil)
