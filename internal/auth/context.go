package auth

import "context"

type ctxKey string

const principalKey ctxKey = "auth_principal"

// FromContext extracts the Principal stored by Middleware.
func FromContext(ctx context.Context) (*Principal, bool) {
	pr, ok := ctx.Value(principalKey).(*Principal)
	return pr, ok
}

// ContextWithPrincipal adds a principal to the context. Middleware uses it
// after validating a token; tests use it to build authenticated requests.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}
