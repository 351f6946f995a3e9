package identity

import "context"

type ResolverInterface interface {
	Resolve(ctx context.Context, sessionToken string) (string, error)
}

var _ ResolverInterface = (*Resolver)(nil)
