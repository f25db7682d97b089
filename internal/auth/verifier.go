// Package auth authenticates gallery callers. Two paths exist: a bearer
// token checked by a Verifier, and a static API key checked by the AccessGate.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gallery/internal/config"
	"gallery/internal/model"
)

// Verifier turns a raw Authorization header value into a caller identity.
// Every failure wraps model.ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, rawHeader string) (model.CallerIdentity, error)
}

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrUnauthorized, reason)
}

// bearerToken extracts the token from "Bearer <token>". The scheme is case-insensitive.
func bearerToken(rawHeader string) (string, error) {
	if rawHeader == "" {
		return "", unauthorized("authorization header required")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(rawHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", unauthorized("invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", unauthorized("empty bearer token")
	}
	return token, nil
}

func tokenIdentity(subject string) (model.CallerIdentity, error) {
	if subject == "" {
		return model.CallerIdentity{}, unauthorized("token has no subject")
	}
	return model.CallerIdentity{Subject: subject, Method: model.AuthMethodToken}, nil
}

// NewVerifier builds the verifier selected by cfg.Verifier. client is used
// for JWKS fetches only.
func NewVerifier(cfg config.AuthConfig, client *http.Client) (Verifier, error) {
	switch cfg.Verifier {
	case config.VerifierStructural:
		return StructuralVerifier{}, nil
	case config.VerifierHMAC:
		if cfg.HMACSecret == "" {
			return nil, fmt.Errorf("hmac verifier requires a secret")
		}
		return NewSignatureVerifier(HMACKey(cfg.HMACSecret), cfg.Issuer, cfg.Audience), nil
	case config.VerifierJWKS:
		if cfg.JWKSURL == "" {
			return nil, fmt.Errorf("jwks verifier requires a key set url")
		}
		keys := NewJWKSKeySource(cfg.JWKSURL, client, cfg.JWKSCacheTTL)
		return NewSignatureVerifier(keys, cfg.Issuer, cfg.Audience), nil
	default:
		return nil, fmt.Errorf("unknown identity verifier %q", cfg.Verifier)
	}
}
