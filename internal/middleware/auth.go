package middleware

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/ajo/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PrincipalKey is the context key for storing the authenticated caller.
const PrincipalKey contextKey = "principal"

// ErrForbidden is returned when the caller's role is not enough.
var ErrForbidden = errors.New("caller role not permitted")

// GetPrincipal extracts the authenticated caller from the context.
// Returns nil if not found.
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(PrincipalKey).(*auth.Principal)
	return p
}

// GetSubject returns the caller's subject, or empty string before auth.
func GetSubject(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.Subject
	}
	return ""
}

// RequireAuth returns a middleware that authenticates every call and adds the
// caller to the request context.
func RequireAuth(authenticator auth.Authenticator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			principal, err := authenticator.Authenticate(ctx, req.Header())
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			// Call the next handler with enriched context
			return next(context.WithValue(ctx, PrincipalKey, principal), req)
		}
	}
}

// RequireRole returns a middleware that checks the caller's role against the
// role required by the procedure. Procedures missing from required need
// fallback.
func RequireRole(required map[string]auth.Role, fallback auth.Role) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			principal := GetPrincipal(ctx)
			if principal == nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			role, ok := required[req.Spec().Procedure]
			if !ok {
				role = fallback
			}
			if !principal.Role.Allows(role) {
				return nil, connect.NewError(connect.CodePermissionDenied, ErrForbidden)
			}
			return next(ctx, req)
		}
	}
}
