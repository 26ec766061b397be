package auth

import (
	"context"
	"strings"

	"birdwatch-support/internal/common/errors"
)

// Actor is the authenticated user on whose behalf a request runs.
type Actor struct {
	ID    string
	Email string
}

type actorKey struct{}
type tokenKey struct{}

// WithActor attaches an already-resolved actor to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor attached to ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}

// WithBearerToken attaches a raw access token to ctx for later resolution.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerTokenFrom returns the token attached by WithBearerToken.
func BearerTokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// ActorResolver yields the current actor or an AuthenticationError.
type ActorResolver interface {
	Resolve(ctx context.Context) (Actor, error)
}

// TokenValidator is satisfied by *KeycloakClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)
}

// TokenResolver prefers an actor already on the context, then introspects
// the bearer token.
type TokenResolver struct {
	validator TokenValidator
}

func NewTokenResolver(v TokenValidator) *TokenResolver {
	return &TokenResolver{validator: v}
}

func (r *TokenResolver) Resolve(ctx context.Context) (Actor, error) {
	if a, ok := ActorFrom(ctx); ok {
		return a, nil
	}

	token := BearerTokenFrom(ctx)
	if token == "" || r.validator == nil {
		return Actor{}, errors.NewAuthenticationError("no session")
	}

	info, err := r.validator.ValidateToken(ctx, token)
	if err != nil {
		return Actor{}, err
	}
	if info.Sub == "" {
		return Actor{}, errors.NewAuthenticationError("token has no subject")
	}
	return Actor{ID: info.Sub, Email: info.Email}, nil
}
