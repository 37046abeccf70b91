package userpool

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/pkg/jwtx"
)

// jwksCacheTTL bounds how stale the key set may get. A miss on an unknown
// kid forces an early refresh so pool-side rotation picks up immediately.
const jwksCacheTTL = time.Hour

// idTokenClaims are the pool's ID token claims we care about.
type idTokenClaims struct {
	jwt.RegisteredClaims

	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"custom:role"`
	EmailVerified bool   `json:"email_verified"`
}

type verifier struct {
	jwksURL string
	issuer  string
	http    *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newVerifier(endpoint, poolID string, client *http.Client) *verifier {
	return &verifier{
		jwksURL: endpoint + "/" + poolID + "/.well-known/jwks.json",
		issuer:  endpoint + "/" + poolID,
		http:    client,
	}
}

func (v *verifier) verify(ctx context.Context, raw string) (provider.Principal, error) {
	var claims idTokenClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return v.keyFor(ctx, kid)
	})
	if err != nil || !tok.Valid {
		return provider.Principal{}, provider.NewError(provider.TypeUserPool, provider.CodeInvalidCredentials, "token verification failed", err)
	}
	if claims.Issuer != v.issuer {
		return provider.Principal{}, provider.NewError(provider.TypeUserPool, provider.CodeInvalidCredentials, "unexpected token issuer", nil)
	}

	return provider.Principal{
		UID:           claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		RoleHint:      claims.Role,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// keyFor resolves a kid, refreshing the JWKS if the kid is unknown or the
// cache has aged out.
func (v *verifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < jwksCacheTTL
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		// A stale key beats no key when the pool is briefly unreachable.
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no key for kid %q", kid)
	}
	return key, nil
}

func (v *verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: HTTP %d", resp.StatusCode)
	}

	var set jwtx.JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		pub, err := jwk.RSAPublicKey()
		if err != nil {
			continue // skip non-RSA or malformed entries
		}
		keys[jwk.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}
