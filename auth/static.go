package auth

import (
	"context"
	"crypto/subtle"
	"slices"
)

type staticProvider struct {
	tokens map[string]User
}

// NewStaticProvider accepts a fixed set of tokens, typically API keys from
// configuration.
func NewStaticProvider(tokens map[string]User) Provider {
	p := &staticProvider{tokens: make(map[string]User, len(tokens))}
	for token, u := range tokens {
		p.tokens[token] = u
	}
	return p
}

func (p *staticProvider) Authenticate(_ context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	for known, u := range p.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			user := u
			user.Roles = slices.Clone(u.Roles)
			return &user, nil
		}
	}
	return nil, ErrUnauthorized
}
