// ABOUTME: Caller identity carried through request handlers
// ABOUTME: Provides WithPrincipal/PrincipalFrom for propagating the token subject via context

package auth

import "context"

type principalKey struct{}

// WithPrincipal returns a new context carrying the authenticated subject.
func WithPrincipal(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, principalKey{}, subject)
}

// PrincipalFrom returns the subject stored by WithPrincipal, or "" for
// unauthenticated requests.
func PrincipalFrom(ctx context.Context) string {
	subject, _ := ctx.Value(principalKey{}).(string)
	return subject
}
