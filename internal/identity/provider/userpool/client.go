// Package userpool implements the hosted user-pool identity provider. The
// pool exposes a JSON API scoped by pool ID; ID tokens are RS256-signed and
// verified against the pool's published JWKS.
package userpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clearmind-health/identity/internal/identity/provider"
)

type Config struct {
	// Endpoint is the pool service base URL, without the pool ID.
	Endpoint string

	// PoolID scopes every request and forms part of the token issuer.
	PoolID string

	// ClientID identifies this application to the pool.
	ClientID string

	// Timeout bounds each HTTP call. Defaults to 10s.
	Timeout time.Duration
}

type Provider struct {
	cfg      Config
	http     *http.Client
	verifier *verifier
}

func New(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")

	client := &http.Client{Timeout: cfg.Timeout}
	return &Provider{
		cfg:      cfg,
		http:     client,
		verifier: newVerifier(cfg.Endpoint, cfg.PoolID, client),
	}
}

func (p *Provider) Type() provider.Type { return provider.TypeUserPool }

// Issuer returns the iss value the pool stamps on its tokens.
func (p *Provider) Issuer() string {
	return p.cfg.Endpoint + "/" + p.cfg.PoolID
}

type signUpResponse struct {
	UID       string `json:"uid"`
	Confirmed bool   `json:"confirmed"`
}

func (p *Provider) SignUp(ctx context.Context, in provider.SignUpInput) (string, bool, error) {
	var resp signUpResponse
	err := p.post(ctx, "/signup", map[string]any{
		"clientId":   p.cfg.ClientID,
		"email":      in.Email,
		"password":   in.Password,
		"attributes": in.Attributes,
	}, &resp)
	if err != nil {
		return "", false, err
	}
	return resp.UID, resp.Confirmed, nil
}

type signInResponse struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
	AccessToken   string `json:"accessToken"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     int    `json:"expiresIn"`
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (provider.Principal, provider.Tokens, error) {
	var resp signInResponse
	err := p.post(ctx, "/signin", map[string]any{
		"clientId": p.cfg.ClientID,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return provider.Principal{}, provider.Tokens{}, err
	}

	principal := provider.Principal{
		UID:           resp.UID,
		Email:         resp.Email,
		Name:          resp.Name,
		RoleHint:      resp.Role,
		EmailVerified: resp.EmailVerified,
	}
	tokens := provider.Tokens{
		AccessToken:  resp.AccessToken,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}
	return principal, tokens, nil
}

// VerifyToken checks an RS256 ID token against the pool's JWKS without a
// network round trip to the pool's verify endpoint.
func (p *Provider) VerifyToken(ctx context.Context, token string) (provider.Principal, error) {
	return p.verifier.verify(ctx, token)
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	return p.post(ctx, "/confirm", map[string]any{
		"clientId": p.cfg.ClientID,
		"email":    email,
		"code":     code,
	}, nil)
}

func (p *Provider) ResendCode(ctx context.Context, email string) error {
	return p.post(ctx, "/resend-code", map[string]any{
		"clientId": p.cfg.ClientID,
		"email":    email,
	}, nil)
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	return p.post(ctx, "/forgot-password", map[string]any{
		"clientId": p.cfg.ClientID,
		"email":    email,
	}, nil)
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	return p.post(ctx, "/confirm-forgot-password", map[string]any{
		"clientId":    p.cfg.ClientID,
		"email":       email,
		"code":        code,
		"newPassword": newPassword,
	}, nil)
}

func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (provider.Tokens, error) {
	var resp signInResponse
	err := p.post(ctx, "/refresh", map[string]any{
		"clientId":     p.cfg.ClientID,
		"refreshToken": refreshToken,
	}, &resp)
	if err != nil {
		return provider.Tokens{}, err
	}
	return provider.Tokens{
		AccessToken:  resp.AccessToken,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return p.post(ctx, "/signout", map[string]any{
		"clientId":    p.cfg.ClientID,
		"accessToken": accessToken,
	}, nil)
}

// url builds a pool-scoped URL.
func (p *Provider) url(path string) string {
	return p.cfg.Endpoint + "/" + p.cfg.PoolID + path
}

// post sends a JSON request and decodes the response into out (when out is
// non-nil). Non-2xx responses become normalized provider errors.
func (p *Provider) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return provider.NewError(provider.TypeUserPool, provider.CodeUnknown, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(path), bytes.NewReader(payload))
	if err != nil {
		return provider.NewError(provider.TypeUserPool, provider.CodeUnknown, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return provider.NewError(provider.TypeUserPool, provider.CodeUnavailable, "pool unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.NewError(provider.TypeUserPool, provider.CodeUnavailable, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.mapAPIError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return provider.NewError(provider.TypeUserPool, provider.CodeUnknown, "decode response", err)
		}
	}
	return nil
}

type apiError struct {
	Error       string `json:"error"`
	Description string `json:"errorDescription"`
}

// mapAPIError folds the pool's error vocabulary into the normalized codes.
// Anything unrecognized falls back on the HTTP status.
func (p *Provider) mapAPIError(status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	code := provider.CodeUnknown
	switch ae.Error {
	case "user_not_found":
		code = provider.CodeNotFound
	case "not_authorized", "invalid_password":
		code = provider.CodeInvalidCredentials
	case "user_not_confirmed":
		code = provider.CodeNotConfirmed
	case "username_exists", "alias_exists":
		code = provider.CodeAlreadyExists
	case "code_mismatch", "expired_code":
		code = provider.CodeInvalidCode
	case "too_many_requests", "limit_exceeded":
		code = provider.CodeRateLimited
	default:
		switch status {
		case http.StatusNotFound:
			code = provider.CodeNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			code = provider.CodeInvalidCredentials
		case http.StatusConflict:
			code = provider.CodeAlreadyExists
		case http.StatusTooManyRequests:
			code = provider.CodeRateLimited
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			code = provider.CodeUnavailable
		}
	}

	msg := ae.Description
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return provider.NewError(provider.TypeUserPool, code, msg, nil)
}
