package model

import "context"

// Principal is the authenticated caller. Every cluster, flavor and network lookup is scoped to its
// project.
type Principal struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	ProjectID string `json:"projectId"`
}

type ctxKey int

var principalKey ctxKey

// NewContextWithPrincipal returns a new [context.Context] that carries the principal.
func NewContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// GetPrincipalFromContext returns the principal stored in ctx, if any.
func GetPrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	return principal, ok
}
