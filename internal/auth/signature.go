package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gallery/internal/model"
)

// KeySource resolves the verification key for a parsed (not yet verified) token.
type KeySource interface {
	Key(ctx context.Context, token *jwt.Token) (any, error)
	// Methods lists the signing algorithms this source accepts.
	Methods() []string
}

// SignatureVerifier validates signature, expiry and, when configured, issuer
// and audience before trusting the subject claim.
type SignatureVerifier struct {
	keys     KeySource
	issuer   string
	audience string
	leeway   time.Duration
}

// NewSignatureVerifier returns a verifier over keys. Empty issuer or audience
// disables that check.
func NewSignatureVerifier(keys KeySource, issuer, audience string) *SignatureVerifier {
	return &SignatureVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}
}

func (v *SignatureVerifier) Verify(ctx context.Context, rawHeader string) (model.CallerIdentity, error) {
	raw, err := bearerToken(rawHeader)
	if err != nil {
		return model.CallerIdentity{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.keys.Methods()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.keys.Key(ctx, t)
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return model.CallerIdentity{}, unauthorized("token expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return model.CallerIdentity{}, unauthorized("invalid token signature")
		default:
			return model.CallerIdentity{}, unauthorized("invalid token: " + err.Error())
		}
	}
	if !token.Valid {
		return model.CallerIdentity{}, unauthorized("invalid token")
	}

	return tokenIdentity(claims.Subject)
}

// HMACKey is a shared-secret KeySource for HS256/384/512 tokens.
type HMACKey string

func (k HMACKey) Key(context.Context, *jwt.Token) (any, error) {
	return []byte(k), nil
}

func (HMACKey) Methods() []string {
	return []string{"HS256", "HS384", "HS512"}
}
