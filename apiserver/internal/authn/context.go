package authn

import "context"

type sessionContextKey struct{}

// ContextWithSession returns a context that carries the provided Session.
func ContextWithSession(
	ctx context.Context,
	session Session,
) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext extracts a Session from the provided context. The
// second return value is false if no Session was attached, i.e. the request
// did not pass through the session auth filter.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}
