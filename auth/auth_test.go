package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":    "abc",
		"bearer  abc ":  "abc",
		"Basic abc":     "",
		"":              "",
		"Bearer":        "",
		"  Bearer xyz ": "xyz",
	}
	for in, want := range cases {
		assert.Equal(t, want, BearerToken(in), "header %q", in)
	}
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UserFromContext(ctx))

	u := &User{ID: "u1", Roles: []string{"admin"}}
	ctx = WithUser(ctx, u)
	assert.Same(t, u, UserFromContext(ctx))
	assert.True(t, u.HasRole("admin"))
	assert.False(t, u.HasRole("viewer"))

	var nilUser *User
	assert.False(t, nilUser.HasRole("admin"))
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[string]User{
		"key-1": {ID: "alice", Roles: []string{"admin"}},
	})

	u, err := p.Authenticate(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)

	u.Roles[0] = "mutated"
	again, err := p.Authenticate(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, again.Roles)

	_, err = p.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = p.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChain(t *testing.T) {
	failing := ProviderFunc(func(context.Context, string) (*User, error) {
		return nil, errors.New("backend down")
	})
	static := NewStaticProvider(map[string]User{"k": {ID: "bob"}})

	u, err := Chain(failing, static).Authenticate(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.ID)

	_, err = Chain(failing, static).Authenticate(context.Background(), "other")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "backend down")
}
