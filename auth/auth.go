// Package auth authenticates MCP callers from bearer tokens.
//
// A Provider turns a token into a User. The middleware.Auth middleware reads
// the token from request metadata, and the server threads the resulting
// User into every tool invocation's context.
package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// ErrUnauthorized is returned when a token is missing, malformed or rejected.
var ErrUnauthorized = errors.New("auth: unauthorized")

// User is an authenticated caller.
type User struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Email  string         `json:"email,omitempty"`
	Roles  []string       `json:"roles,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// Provider authenticates a bearer token.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, token string) (*User, error)

// Authenticate implements Provider.
func (f ProviderFunc) Authenticate(ctx context.Context, token string) (*User, error) {
	return f(ctx, token)
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" unless the value uses the Bearer scheme.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Chain tries providers in order and returns the first user one of them
// accepts. It fails with ErrUnauthorized when all of them reject the token.
func Chain(providers ...Provider) Provider {
	return ProviderFunc(func(ctx context.Context, token string) (*User, error) {
		var errs []error
		for _, p := range providers {
			u, err := p.Authenticate(ctx, token)
			if err == nil && u != nil {
				return u, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return nil, errors.Join(append([]error{ErrUnauthorized}, errs...)...)
	})
}
