// ABOUTME: Request-scoped identity for the REST and realtime handlers
// ABOUTME: The middleware attaches the verified subject; handlers read it back as the row actor

package auth

import "context"

// AuthContext is the verified identity behind a request.
type AuthContext struct {
	PrincipalID string
	Email       string
}

type authContextKey struct{}

// WithAuth attaches a to ctx.
func WithAuth(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

// FromContext returns the AuthContext attached to ctx, or nil.
func FromContext(ctx context.Context) *AuthContext {
	a, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return a
}

// ActorFromContext returns the principal id row policies are checked
// against, or "" for an anonymous request.
func ActorFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.PrincipalID
	}
	return ""
}
