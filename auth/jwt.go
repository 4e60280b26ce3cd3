package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig controls token validation.
type JWTConfig struct {
	// Issuer, when set, must equal the iss claim.
	Issuer string
	// Audiences, when set, must intersect the aud claim.
	Audiences []string
	// AllowedAlgs restricts signing algorithms.
	AllowedAlgs []string
	Leeway      time.Duration
	// RolesClaim names the claim holding roles. Defaults to "roles"; a
	// space-separated "scope" claim is used when it is absent.
	RolesClaim string
}

type jwtProvider struct {
	cfg     JWTConfig
	keyfunc jwt.Keyfunc
}

// NewJWTProvider validates HMAC-signed tokens with a shared secret.
func NewJWTProvider(secret []byte, cfg JWTConfig) (Provider, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"HS256", "HS384", "HS512"}
	}
	return &jwtProvider{cfg: cfg, keyfunc: func(*jwt.Token) (any, error) {
		return secret, nil
	}}, nil
}

// NewJWKSProvider validates tokens signed by keys from a JWK Set.
func NewJWKSProvider(kf keyfunc.Keyfunc, cfg JWTConfig) (Provider, error) {
	if kf == nil {
		return nil, errors.New("auth: keyfunc is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256", "ES256", "EdDSA"}
	}
	return &jwtProvider{cfg: cfg, keyfunc: kf.Keyfunc}, nil
}

// NewJWKSProviderFromJSON validates tokens against a static JWK Set.
func NewJWKSProviderFromJSON(raw json.RawMessage, cfg JWTConfig) (Provider, error) {
	kf, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: parse jwks: %w", err)
	}
	return NewJWKSProvider(kf, cfg)
}

// NewJWKSProviderFromURL validates tokens against a remote JWK Set that is
// refreshed in the background until ctx ends.
func NewJWKSProviderFromURL(ctx context.Context, url string, cfg JWTConfig) (Provider, error) {
	if url == "" {
		return nil, errors.New("auth: jwks url is required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("auth: jwks init: %w", err)
	}
	return NewJWKSProvider(kf, cfg)
}

func (p *jwtProvider) Authenticate(_ context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(p.cfg.AllowedAlgs),
		jwt.WithLeeway(p.cfg.Leeway),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}
	parsed, err := jwt.NewParser(opts...).Parse(token, p.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrUnauthorized)
	}
	if len(p.cfg.Audiences) > 0 {
		aud, _ := claims.GetAudience()
		if !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(p.cfg.Audiences, a) }) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
		}
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return userFromClaims(sub, claims, p.cfg.RolesClaim), nil
}

func userFromClaims(sub string, claims jwt.MapClaims, rolesClaim string) *User {
	u := &User{ID: sub, Claims: map[string]any(claims)}
	u.Name, _ = claims["name"].(string)
	u.Email, _ = claims["email"].(string)

	if rolesClaim == "" {
		rolesClaim = "roles"
	}
	switch roles := claims[rolesClaim].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				u.Roles = append(u.Roles, s)
			}
		}
	case string:
		u.Roles = strings.Fields(roles)
	case nil:
		if scope, ok := claims["scope"].(string); ok {
			u.Roles = strings.Fields(scope)
		}
	}
	return u
}
