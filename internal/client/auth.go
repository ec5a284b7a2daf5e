package client

import "context"

type authTokenKey struct{}

// AuthTokenHeader carries the keystone token to peer services
const AuthTokenHeader = "X-Auth-Token"

// WithAuthToken returns a context carrying token for outgoing calls
func WithAuthToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, authTokenKey{}, token)
}

// AuthToken returns the token stored in ctx, if any
func AuthToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}
