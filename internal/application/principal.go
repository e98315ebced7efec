package application

import (
	"context"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying the authenticated caller.
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}
