// Package resolve picks which identity provider should handle a given
// credential. Classification prefers an explicit provider tag from the
// client; when none is given it sniffs token headers and falls back from
// the user's current provider to the primary, then to every remaining
// provider in registration order.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/pkg/jwtx"
)

var ErrNoProvider = errors.New("resolve: no provider can handle this credential")

// issuerProvider is implemented by providers whose tokens carry a stable
// iss claim we can classify on.
type issuerProvider interface {
	Issuer() string
}

type Resolver struct {
	primary   provider.Type
	order     []provider.Type
	providers map[provider.Type]provider.IdentityProvider
}

// New registers the given providers. primary is the provider new identities
// are created against and the last-resort classification fallback.
func New(primary provider.Type, providers ...provider.IdentityProvider) *Resolver {
	r := &Resolver{
		primary:   primary,
		providers: make(map[provider.Type]provider.IdentityProvider, len(providers)),
	}
	for _, p := range providers {
		r.providers[p.Type()] = p
		r.order = append(r.order, p.Type())
	}
	return r
}

// Get returns the provider registered under t.
func (r *Resolver) Get(t provider.Type) (provider.IdentityProvider, error) {
	p, ok := r.providers[t]
	if !ok {
		return nil, ErrNoProvider
	}
	return p, nil
}

// Primary returns the provider new identities are provisioned against.
func (r *Resolver) Primary() provider.IdentityProvider {
	return r.providers[r.primary]
}

// PrimaryType returns the primary provider's tag.
func (r *Resolver) PrimaryType() provider.Type { return r.primary }

// ByToken classifies a bearer token by its unverified header and issuer.
// RS256 tokens whose issuer matches a registered pool belong to that pool;
// HS256 tokens belong to the local provider. The result still has to pass
// real verification, this is routing only.
func (r *Resolver) ByToken(raw string) (provider.IdentityProvider, error) {
	alg, issuer, err := jwtx.PeekHeader(raw)
	if err != nil {
		return nil, ErrNoProvider
	}

	switch {
	case strings.HasPrefix(alg, "RS"):
		for _, t := range r.order {
			p := r.providers[t]
			if ip, ok := p.(issuerProvider); ok && ip.Issuer() == issuer {
				return p, nil
			}
		}
	case strings.HasPrefix(alg, "HS"):
		if p, ok := r.providers[provider.TypeLocal]; ok {
			return p, nil
		}
	}
	return nil, ErrNoProvider
}

// ForEmail returns the ordered list of providers to try for a credential
// login: the user's current provider first, then the primary, then the
// rest. Unknown or empty current falls straight to the primary ordering.
func (r *Resolver) ForEmail(current provider.Type) []provider.IdentityProvider {
	var out []provider.IdentityProvider
	seen := make(map[provider.Type]bool, len(r.order))

	appendOnce := func(t provider.Type) {
		if seen[t] {
			return
		}
		if p, ok := r.providers[t]; ok {
			out = append(out, p)
			seen[t] = true
		}
	}

	appendOnce(current)
	appendOnce(r.primary)
	for _, t := range r.order {
		appendOnce(t)
	}
	return out
}

// VerifyAny verifies a token with whichever provider it classifies to. A
// token that classifies to a provider gets that provider's verdict. Failing
// to classify is only a fallback trigger, not a rejection: opaque provider
// access tokens carry no JOSE header, so every configured provider gets a
// chance to verify them in resolution order.
func (r *Resolver) VerifyAny(ctx context.Context, raw string) (provider.Principal, provider.Type, error) {
	if p, err := r.ByToken(raw); err == nil {
		principal, err := p.VerifyToken(ctx, raw)
		if err != nil {
			return provider.Principal{}, p.Type(), err
		}
		return principal, p.Type(), nil
	}

	var lastErr error
	for _, p := range r.ForEmail("") {
		principal, err := p.VerifyToken(ctx, raw)
		if err == nil {
			return principal, p.Type(), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return provider.Principal{}, "", ErrNoProvider
	}
	return provider.Principal{}, "", lastErr
}
